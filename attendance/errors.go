package attendance

import "errors"

var (
	// ErrInvalidPayload is returned when the decoded text carries no usable student ID.
	ErrInvalidPayload = errors.New("invalid QR payload")
	// ErrStoreUnavailable wraps store failures during the existence check.
	ErrStoreUnavailable = errors.New("attendance store unavailable")
	// ErrInsertFailed wraps any failure to create the attendance record.
	ErrInsertFailed = errors.New("failed to insert attendance record")
	// ErrDuplicateRecord is reported by stores when the (student, host) pair already exists.
	ErrDuplicateRecord = errors.New("attendance record already exists")
	// ErrDecoderFault halts the scanning session until it is restarted.
	ErrDecoderFault = errors.New("decoder fault")
)
