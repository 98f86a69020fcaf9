package attendance

import (
	"errors"
	"fmt"
)

// Kind is the terminal outcome of one scan.
type Kind int

const (
	KindMarked Kind = iota
	KindAlreadyMarked
	KindInvalidPayload
	KindStoreUnavailable
	KindInsertFailed
	KindDecoderFault
)

func (k Kind) String() string {
	switch k {
	case KindMarked:
		return "marked"
	case KindAlreadyMarked:
		return "already_marked"
	case KindInvalidPayload:
		return "invalid_payload"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindInsertFailed:
		return "insert_failed"
	case KindDecoderFault:
		return "decoder_fault"
	default:
		return "unknown"
	}
}

// State is a step of the marker state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateChecking
	StateInserting
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateChecking:
		return "checking"
	case StateInserting:
		return "inserting"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Status is the operator-facing result of a scan.
type Status struct {
	Kind      Kind
	StudentID string
	// Duplicate is set when an insert lost against the store's uniqueness constraint.
	Duplicate bool
	Err       error
}

// OK reports whether a new record was created.
func (s Status) OK() bool {
	return s.Kind == KindMarked
}

// Message is the human-readable status line.
func (s Status) Message() string {
	switch s.Kind {
	case KindMarked:
		return fmt.Sprintf("Attendance marked for Student ID: %s", s.StudentID)
	case KindAlreadyMarked:
		return fmt.Sprintf("Student ID %s already marked!", s.StudentID)
	case KindInvalidPayload:
		return "Invalid QR code format"
	case KindStoreUnavailable:
		return "Attendance service unavailable, please rescan"
	case KindInsertFailed:
		if s.Duplicate {
			return fmt.Sprintf("Student ID %s already marked!", s.StudentID)
		}
		return "Failed to mark attendance"
	case KindDecoderFault:
		return "Failed to start scanner. Check camera permissions."
	default:
		return ""
	}
}

func (s Status) String() string {
	return s.Kind.String() + ": " + s.Message()
}

// statusForInsertError classifies an insert failure.
func statusForInsertError(studentID string, err error) Status {
	return Status{
		Kind:      KindInsertFailed,
		StudentID: studentID,
		Duplicate: errors.Is(err, ErrDuplicateRecord),
		Err:       fmt.Errorf("%w: %w", ErrInsertFailed, err),
	}
}
