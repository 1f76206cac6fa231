package auth

import (
	"context"
	"sync"
	"time"
)

// Session is the server-side record behind an opaque session token
type Session struct {
	Token         string    `json:"token"`
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Active reports whether the session grants admin access at now
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.Authenticated && now.Before(s.ExpiresAt)
}

// SessionStore maps tokens to sessions. Get returns nil, nil for unknown or
// expired tokens.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// MemoryStore is a process-local SessionStore. Expired entries are dropped
// when they are looked up and swept on every Save.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Save(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for token, existing := range m.sessions {
		if !now.Before(existing.ExpiresAt) {
			delete(m.sessions, token)
		}
	}
	m.sessions[session.Token] = *session
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(session.ExpiresAt) {
		delete(m.sessions, token)
		return nil, nil
	}
	return &session, nil
}

func (m *MemoryStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
