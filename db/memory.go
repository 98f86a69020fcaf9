package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"attendance-server-go/models"
)

// MemoryStudentStore keeps student profiles in process memory
type MemoryStudentStore struct {
	mu       sync.RWMutex
	students map[string]models.Student
}

// NewMemoryStudentStore creates an empty store
func NewMemoryStudentStore() *MemoryStudentStore {
	return &MemoryStudentStore{students: make(map[string]models.Student)}
}

func (m *MemoryStudentStore) AddStudent(_ context.Context, st models.Student) error {
	if st.ID == "" || st.LastName == "" || st.FirstName == "" {
		return errors.New("student ID, LastName and FirstName cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[st.ID]; ok {
		return fmt.Errorf("student %s: %w", st.ID, ErrStudentExists)
	}
	m.students[st.ID] = st
	return nil
}

func (m *MemoryStudentStore) GetStudentByID(_ context.Context, id string) (*models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStudentStore) GetStudentsByIDs(_ context.Context, ids []string) (map[string]models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.Student, len(ids))
	for _, id := range ids {
		if st, ok := m.students[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (m *MemoryStudentStore) CountStudents(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.students)), nil
}
