package session

import (
	"context"
	"sync"
	"time"

	"github.com/terra-clan/codeladder/internal/models"
)

// Store persists gateway sessions
type Store interface {
	// Save creates or replaces a session
	Save(ctx context.Context, s *models.Session) error
	// Get returns the session with id, or nil when there is none
	Get(ctx context.Context, id string) (*models.Session, error)
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions that expired before now and returns how many
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	// Ping checks store connectivity
	Ping(ctx context.Context) error
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
	}
}

// Save stores a copy of s
func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

// Get retrieves a session by ID
func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Delete removes a session by ID
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpired removes every session whose expiry is before now
func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
