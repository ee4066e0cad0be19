package session

import (
	"context"
	"sync"
	"time"
)

// Store holds at most one pending session per identity. Get returns
// (nil, nil) when the identity has no session; Put silently replaces any
// existing one. Callers are expected to serialize access per identity (the
// Machine does), so implementations only need to be safe across identities.
type Store interface {
	Get(ctx context.Context, identity int64) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, identity int64) error
}

// MemoryStore keeps sessions in process memory. A zero TTL disables expiry;
// otherwise stale sessions are dropped lazily on access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore builds an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, identity int64) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[identity]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, ok := s.sessions[identity]; ok && s.now().Sub(cur.UpdatedAt) > s.ttl {
			delete(s.sessions, identity)
		}
		s.mu.Unlock()
		return nil, nil
	}

	return sess, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	s.sessions[sess.Identity] = sess
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, identity int64) error {
	s.mu.Lock()
	delete(s.sessions, identity)
	s.mu.Unlock()
	return nil
}
