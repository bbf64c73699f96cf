package security

import (
	"context"
	"sync"
)

// AttemptState is the PIN failure counter for one account.
type AttemptState struct {
	Failures int  `json:"failures"`
	Locked   bool `json:"locked"`
}

// AttemptStore persists PIN attempt state keyed by account number.
// RecordFailure must increment and evaluate the lock threshold atomically.
type AttemptStore interface {
	Get(ctx context.Context, accountID string) (AttemptState, error)
	RecordFailure(ctx context.Context, accountID string, maxAttempts int) (AttemptState, error)
	Reset(ctx context.Context, accountID string) error
}

// MemoryAttemptStore keeps attempt state in process memory.
type MemoryAttemptStore struct {
	mu     sync.Mutex
	states map[string]AttemptState
}

var _ AttemptStore = (*MemoryAttemptStore)(nil)

// NewMemoryAttemptStore creates an empty in-memory attempt store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{states: make(map[string]AttemptState)}
}

// Get returns the current state, zero for unknown accounts.
func (s *MemoryAttemptStore) Get(_ context.Context, accountID string) (AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[accountID], nil
}

// RecordFailure increments the failure counter and locks at maxAttempts.
func (s *MemoryAttemptStore) RecordFailure(_ context.Context, accountID string, maxAttempts int) (AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[accountID]
	if st.Locked {
		return st, nil
	}
	st.Failures++
	if st.Failures >= maxAttempts {
		st.Locked = true
	}
	s.states[accountID] = st
	return st, nil
}

// Reset clears the failure counter unless the account is locked. Unlocking
// is an administrative action outside this service.
func (s *MemoryAttemptStore) Reset(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[accountID]; ok && !st.Locked {
		delete(s.states, accountID)
	}
	return nil
}
