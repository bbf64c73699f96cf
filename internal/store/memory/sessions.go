package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/store"
)

// SessionStore keeps one session per address.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

var (
	_ store.SessionStore = (*SessionStore)(nil)
	_ store.Sweepable    = (*SessionStore)(nil)
)

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

// Put implements store.SessionStore.
func (s *SessionStore) Put(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Address] = *session
	return nil
}

// Get implements store.SessionStore. Expired sessions are evicted on read.
func (s *SessionStore) Get(_ context.Context, address string, now time.Time) (*domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[address]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if sess.Expired(now) {
		s.mu.Lock()
		// Re-check: a fresh session may have replaced it meanwhile.
		if cur, ok := s.sessions[address]; ok && cur.Expired(now) {
			delete(s.sessions, address)
		}
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

// Delete implements store.SessionStore.
func (s *SessionStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, address)
	return nil
}

// DeleteExpired evicts sessions past their expiry.
func (s *SessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
