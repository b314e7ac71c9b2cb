package conversation

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in memory with a TTL sweeper. Suitable
// for single-process deployments and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewMemorySessionStore returns a store that evicts sessions untouched for
// ttl. A ttl of zero disables eviction.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

func sessionKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(_ context.Context, userID, sessionID string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(userID, sessionID)]
	if ok && s.ttl > 0 && time.Since(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, sessionKey(userID, sessionID))
		return Session{}, false, nil
	}
	return sess, ok, nil
}

// Put implements SessionStore.
func (s *MemorySessionStore) Put(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey(sess.UserID, sess.SessionID)] = sess
	return nil
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(userID, sessionID))
	return nil
}

// Close stops the sweeper.
func (s *MemorySessionStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemorySessionStore) sweep() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for k, sess := range s.sessions {
				if sess.UpdatedAt.Before(cutoff) {
					delete(s.sessions, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)
