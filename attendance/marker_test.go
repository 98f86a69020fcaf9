package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attendance-server-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertCall struct {
	studentID string
	hostID    string
	at        time.Time
}

// stubStore records calls and returns canned results.
type stubStore struct {
	mu        sync.Mutex
	found     *models.AttendanceRecord
	findErr   error
	insertErr error
	finds     int
	inserts   []insertCall
}

func (s *stubStore) FindRecord(_ context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	return s.found, s.findErr
}

func (s *stubStore) InsertRecord(_ context.Context, studentID, hostID string, at time.Time) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, insertCall{studentID, hostID, at})
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return &models.AttendanceRecord{ID: "r1", StudentID: studentID, HostID: hostID, ScannedAt: at}, nil
}

var hostH1 = models.Host{ID: "H1"}

func TestMarker_HappyPath(t *testing.T) {
	store := &stubStore{}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var states []State
	m := NewMarker(store, WithClock(func() time.Time { return now }), WithStateObserver(func(s State) { states = append(states, s) }))

	st := m.Mark(context.Background(), "S123", hostH1)

	assert.Equal(t, KindMarked, st.Kind)
	assert.Equal(t, "S123", st.StudentID)
	assert.True(t, st.OK())
	assert.Equal(t, "Attendance marked for Student ID: S123", st.Message())
	require.Len(t, store.inserts, 1)
	assert.Equal(t, insertCall{"S123", "H1", now}, store.inserts[0])
	assert.Equal(t, []State{StateValidating, StateChecking, StateInserting, StateIdle}, states)
}

func TestMarker_AlreadyMarkedSkipsInsert(t *testing.T) {
	store := &stubStore{found: &models.AttendanceRecord{ID: "r0", StudentID: "S123", HostID: "H1"}}
	var states []State
	m := NewMarker(store, WithStateObserver(func(s State) { states = append(states, s) }))

	st := m.Mark(context.Background(), "S123", hostH1)

	assert.Equal(t, KindAlreadyMarked, st.Kind)
	assert.Equal(t, "S123", st.StudentID)
	assert.Equal(t, "Student ID S123 already marked!", st.Message())
	assert.Empty(t, store.inserts)
	assert.Equal(t, []State{StateValidating, StateChecking, StateRejected, StateIdle}, states)
}

func TestMarker_InvalidPayload(t *testing.T) {
	store := &stubStore{}
	m := NewMarker(store)

	for _, raw := range []string{"{}", ""} {
		st := m.Mark(context.Background(), raw, hostH1)
		assert.Equal(t, KindInvalidPayload, st.Kind)
		assert.ErrorIs(t, st.Err, ErrInvalidPayload)
	}
	assert.Zero(t, store.finds)
	assert.Empty(t, store.inserts)
}

func TestMarker_JSONEnvelope(t *testing.T) {
	store := &stubStore{}
	m := NewMarker(store)

	st := m.Mark(context.Background(), `{"id":"S123"}`, hostH1)
	assert.Equal(t, KindMarked, st.Kind)
	require.Len(t, store.inserts, 1)
	assert.Equal(t, "S123", store.inserts[0].studentID)
}

func TestMarker_StoreUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	store := &stubStore{findErr: boom}
	m := NewMarker(store)

	st := m.Mark(context.Background(), "S123", hostH1)

	assert.Equal(t, KindStoreUnavailable, st.Kind)
	assert.ErrorIs(t, st.Err, ErrStoreUnavailable)
	assert.ErrorIs(t, st.Err, boom)
	assert.Empty(t, store.inserts)
}

func TestMarker_InsertFailed(t *testing.T) {
	store := &stubStore{insertErr: errors.New("disk full")}
	m := NewMarker(store)

	st := m.Mark(context.Background(), "S123", hostH1)

	assert.Equal(t, KindInsertFailed, st.Kind)
	assert.False(t, st.Duplicate)
	assert.ErrorIs(t, st.Err, ErrInsertFailed)
	assert.Equal(t, "Failed to mark attendance", st.Message())
}

func TestMarker_InsertDuplicateSurfacesAsAlreadyMarked(t *testing.T) {
	store := &stubStore{insertErr: ErrDuplicateRecord}
	m := NewMarker(store)

	st := m.Mark(context.Background(), "S123", hostH1)

	assert.Equal(t, KindInsertFailed, st.Kind)
	assert.True(t, st.Duplicate)
	assert.ErrorIs(t, st.Err, ErrDuplicateRecord)
	assert.Equal(t, "Student ID S123 already marked!", st.Message())
}

func TestMarker_SequentialMarksAreIdempotent(t *testing.T) {
	store := NewMemoryStore()
	m := NewMarker(store)

	first := m.Mark(context.Background(), "S123", hostH1)
	second := m.Mark(context.Background(), "S123", hostH1)

	assert.Equal(t, KindMarked, first.Kind)
	assert.Equal(t, KindAlreadyMarked, second.Kind)
	assert.Equal(t, 1, store.Len())
}

// barrierStore holds every FindRecord until n callers have checked, forcing
// all of them past the pre-check before any insert happens.
type barrierStore struct {
	*MemoryStore
	wg sync.WaitGroup
}

func newBarrierStore(n int) *barrierStore {
	s := &barrierStore{MemoryStore: NewMemoryStore()}
	s.wg.Add(n)
	return s
}

func (s *barrierStore) FindRecord(ctx context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	rec, err := s.MemoryStore.FindRecord(ctx, studentID, hostID)
	s.wg.Done()
	s.wg.Wait()
	return rec, err
}

func TestMarker_ConcurrentRaceResolvedByStoreConstraint(t *testing.T) {
	store := newBarrierStore(2)
	m := NewMarker(store)

	results := make([]Status, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Mark(context.Background(), "S123", hostH1)
		}(i)
	}
	wg.Wait()

	var marked, duplicates int
	for _, st := range results {
		switch {
		case st.Kind == KindMarked:
			marked++
		case st.Kind == KindInsertFailed && st.Duplicate:
			duplicates++
		}
	}
	assert.Equal(t, 1, marked)
	assert.Equal(t, 1, duplicates)
	assert.Equal(t, 1, store.Len())
}
