// Package session models the short-lived host and student sessions. A
// session is valid until the next local midnight after it was created.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"attendance-server-go/models"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// HostSession is the logged-in state of a scanning station.
type HostSession struct {
	Token     string      `json:"token"`
	Host      models.Host `json:"host"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// NewHostSession opens a session for host that expires at the next local midnight.
func NewHostSession(host models.Host, now time.Time, loc *time.Location) HostSession {
	return HostSession{
		Token:     uuid.NewString(),
		Host:      host,
		CreatedAt: now,
		ExpiresAt: NextMidnight(now, loc),
	}
}

// Valid reports whether the session is still usable at now.
func (s HostSession) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// CurrentHost returns the session's host.
func (s HostSession) CurrentHost() models.Host {
	return s.Host
}

// Store persists host sessions. Get returns nil, nil for unknown tokens.
type Store interface {
	SaveSession(ctx context.Context, s HostSession) error
	GetSession(ctx context.Context, token string) (*HostSession, error)
	DeleteSession(ctx context.Context, token string) error
}

// Resolve looks up token and checks expiry.
func Resolve(ctx context.Context, store Store, token string, now time.Time) (*HostSession, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	s, err := store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if !s.Valid(now) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]HostSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]HostSession)}
}

func (m *MemoryStore) SaveSession(_ context.Context, s HostSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, token string) (*HostSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
