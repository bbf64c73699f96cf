package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/store"
)

// NonceStore keeps nonces in a map. Consume holds the write lock across the
// check and the mark, which makes redemption single-use.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]*domain.Nonce
}

var (
	_ store.NonceStore = (*NonceStore)(nil)
	_ store.Sweepable  = (*NonceStore)(nil)
)

// NewNonceStore creates an empty nonce store.
func NewNonceStore() *NonceStore {
	return &NonceStore{nonces: make(map[string]*domain.Nonce)}
}

// Save implements store.NonceStore.
func (s *NonceStore) Save(_ context.Context, n *domain.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nonces[n.Value]; ok {
		return store.ErrNonceExists
	}
	cp := *n
	s.nonces[n.Value] = &cp
	return nil
}

// Consume implements store.NonceStore.
func (s *NonceStore) Consume(_ context.Context, value, address string, now time.Time) (*domain.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nonces[value]
	if !ok {
		return nil, domain.ErrNonceNotFound
	}
	if err := n.Check(address, now); err != nil {
		return nil, err
	}
	n.Used = true
	cp := *n
	return &cp, nil
}

// DeleteExpired evicts nonces past their expiry, used or not.
func (s *NonceStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, n := range s.nonces {
		if n.Expired(now) {
			delete(s.nonces, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored nonces.
func (s *NonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nonces)
}
