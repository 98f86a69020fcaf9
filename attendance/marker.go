package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"attendance-server-go/models"
)

// Store is the attendance table as seen by the marker. FindRecord returns
// nil, nil when no record exists. InsertRecord must fail with an error
// wrapping ErrDuplicateRecord when the (student, host) pair is taken; that
// error, not the preceding FindRecord, is the authoritative duplicate signal.
type Store interface {
	FindRecord(ctx context.Context, studentID, hostID string) (*models.AttendanceRecord, error)
	InsertRecord(ctx context.Context, studentID, hostID string, at time.Time) (*models.AttendanceRecord, error)
}

// Marker turns one decoded payload plus a host into zero or one attendance record.
type Marker struct {
	store   Store
	format  PayloadFormat
	now     func() time.Time
	onState func(State)
}

// MarkerOption customizes a Marker.
type MarkerOption func(*Marker)

// WithPayloadFormat restricts the accepted payload shapes.
func WithPayloadFormat(f PayloadFormat) MarkerOption {
	return func(m *Marker) { m.format = f }
}

// WithClock overrides the timestamp source for inserted records.
func WithClock(now func() time.Time) MarkerOption {
	return func(m *Marker) { m.now = now }
}

// WithStateObserver is called on every state transition.
func WithStateObserver(fn func(State)) MarkerOption {
	return func(m *Marker) { m.onState = fn }
}

// NewMarker creates a new Marker backed by store
func NewMarker(store Store, opts ...MarkerOption) *Marker {
	m := &Marker{
		store:  store,
		format: PayloadEither,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mark validates payload, checks for an existing record and inserts one if absent.
func (m *Marker) Mark(ctx context.Context, payload string, host models.Host) Status {
	m.transition(StateValidating)
	studentID, err := ParsePayload(payload, m.format)
	if err != nil {
		m.transition(StateIdle)
		return Status{Kind: KindInvalidPayload, Err: err}
	}

	m.transition(StateChecking)
	existing, err := m.store.FindRecord(ctx, studentID, host.ID)
	if err != nil {
		log.Printf("[marker] check failed for student %s host %s: %v", studentID, host.ID, err)
		m.transition(StateIdle)
		return Status{
			Kind:      KindStoreUnavailable,
			StudentID: studentID,
			Err:       fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
		}
	}
	if existing != nil {
		m.transition(StateRejected)
		m.transition(StateIdle)
		return Status{Kind: KindAlreadyMarked, StudentID: studentID}
	}

	m.transition(StateInserting)
	_, err = m.store.InsertRecord(ctx, studentID, host.ID, m.now())
	m.transition(StateIdle)
	if err != nil {
		st := statusForInsertError(studentID, err)
		if st.Duplicate {
			log.Printf("[marker] lost insert race for student %s host %s", studentID, host.ID)
		} else {
			log.Printf("[marker] insert failed for student %s host %s: %v", studentID, host.ID, err)
		}
		return st
	}
	return Status{Kind: KindMarked, StudentID: studentID}
}

func (m *Marker) transition(s State) {
	if m.onState != nil {
		m.onState(s)
	}
}
