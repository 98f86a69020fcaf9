package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"attendance-server-go/models"
	"github.com/google/uuid"
)

type recordKey struct {
	studentID string
	hostID    string
}

// MemoryStore is an in-process Store. The map key enforces the
// (student, host) uniqueness constraint.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]models.AttendanceRecord
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]models.AttendanceRecord)}
}

// FindRecord implements Store.
func (s *MemoryStore) FindRecord(_ context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{studentID, hostID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// InsertRecord implements Store.
func (s *MemoryStore) InsertRecord(_ context.Context, studentID, hostID string, at time.Time) (*models.AttendanceRecord, error) {
	if studentID == "" || hostID == "" {
		return nil, fmt.Errorf("student ID and host ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{studentID, hostID}
	if _, ok := s.records[key]; ok {
		return nil, fmt.Errorf("student %s host %s: %w", studentID, hostID, ErrDuplicateRecord)
	}
	rec := models.AttendanceRecord{
		ID:        uuid.NewString(),
		StudentID: studentID,
		HostID:    hostID,
		ScannedAt: at,
	}
	s.records[key] = rec
	return &rec, nil
}

// ListRecords returns the host's records in scan order.
func (s *MemoryStore) ListRecords(_ context.Context, hostID string) ([]models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AttendanceRecord, 0)
	for key, rec := range s.records {
		if key.hostID == hostID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScannedAt.Equal(out[j].ScannedAt) {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].ScannedAt.Before(out[j].ScannedAt)
	})
	return out, nil
}

// Len returns the total number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
