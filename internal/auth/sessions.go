package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tunehaven/tunehaven/pkg/redis"
)

var ErrNoSession = errors.New("no such session")

// SessionStore tracks which login sessions are still alive. A signed token is
// only honored while its session id is registered here, so logout takes
// effect before the token expires.
type SessionStore interface {
	Create(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (int64, error)
	Delete(ctx context.Context, sessionID string) error
	// DeleteUser removes every session of userID except the one named by
	// except, which may be empty.
	DeleteUser(ctx context.Context, userID int64, except string) error
}

// sweepInterval bounds how often MemorySessions scans for expired entries.
const sweepInterval = time.Minute

type memorySession struct {
	userID  int64
	expires time.Time
}

// MemorySessions keeps sessions in process memory.
type MemorySessions struct {
	mu        sync.Mutex
	sessions  map[string]memorySession
	now       func() time.Time
	lastSweep time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]memorySession), now: time.Now}
}

func (m *MemorySessions) Create(_ context.Context, sessionID string, userID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweep(now)
	}
	m.sessions[sessionID] = memorySession{userID: userID, expires: now.Add(ttl)}
	return nil
}

// sweep drops expired sessions. Callers hold m.mu.
func (m *MemorySessions) sweep(now time.Time) {
	for id, s := range m.sessions {
		if !now.Before(s.expires) {
			delete(m.sessions, id)
		}
	}
	m.lastSweep = now
}

// Len reports how many sessions are held, expired or not.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemorySessions) Lookup(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return 0, ErrNoSession
	}
	if !m.now().Before(s.expires) {
		delete(m.sessions, sessionID)
		return 0, ErrNoSession
	}
	return s.userID, nil
}

func (m *MemorySessions) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemorySessions) DeleteUser(_ context.Context, userID int64, except string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.userID == userID && id != except {
			delete(m.sessions, id)
		}
	}
	return nil
}

// RedisSessions adapts the Redis session registry to SessionStore.
type RedisSessions struct {
	*redis.SessionStore
}

func (r RedisSessions) Lookup(ctx context.Context, sessionID string) (int64, error) {
	userID, err := r.SessionStore.Lookup(ctx, sessionID)
	if errors.Is(err, redis.ErrSessionNotFound) {
		return 0, ErrNoSession
	}
	return userID, err
}
