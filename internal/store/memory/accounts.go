package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/platform/keylock"
	"github.com/phrazzld/vaultcore/internal/store"
)

// AccountStore is an in-memory ledger. Balance and status changes on an
// account happen only while its key lock is held; mu guards the maps and
// is never held while waiting on a key lock.
type AccountStore struct {
	locks *keylock.Locker

	mu       sync.RWMutex
	accounts map[string]*domain.Account
	history  map[string][]domain.Transaction
}

var _ store.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates an empty ledger.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		locks:    keylock.New(),
		accounts: make(map[string]*domain.Account),
		history:  make(map[string][]domain.Transaction),
	}
}

// Create implements store.AccountStore.
func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Number]; ok {
		return store.ErrAccountExists
	}
	s.accounts[account.Number] = account.Clone()
	return nil
}

// Get implements store.AccountStore.
func (s *AccountStore) Get(_ context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[number]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return a.Clone(), nil
}

// SetStatus implements store.AccountStore.
func (s *AccountStore) SetStatus(_ context.Context, number string, status domain.AccountStatus) error {
	unlock := s.locks.Lock(number)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[number]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.Status = status
	return nil
}

// Transfer implements store.AccountStore.
func (s *AccountStore) Transfer(ctx context.Context, t domain.Transfer) (domain.TransferResult, error) {
	if t.FromAccount == t.ToAccount {
		return domain.TransferResult{}, domain.NewValidationError("to_account", "must differ from from_account", nil)
	}
	if !t.Amount.IsPositive() {
		return domain.TransferResult{}, domain.NewValidationError("amount", "must be positive", nil)
	}

	unlock := s.locks.LockMany(t.FromAccount, t.ToAccount)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return domain.TransferResult{}, err
	}

	// Only key lock holders change these two accounts, so the snapshot
	// taken under the read lock stays valid until the write below.
	s.mu.RLock()
	from, fromOK := s.accounts[t.FromAccount]
	to, toOK := s.accounts[t.ToAccount]
	s.mu.RUnlock()

	if !fromOK || !toOK {
		return domain.TransferResult{}, store.ErrAccountNotFound
	}
	if from.Status != domain.StatusActive {
		return domain.TransferResult{}, domain.ErrLocked
	}
	if to.Status != domain.StatusActive {
		return domain.TransferResult{}, domain.ErrDestinationInactive
	}
	if from.Balance.LessThan(t.Amount) {
		return domain.TransferResult{}, domain.ErrInsufficientFunds
	}

	at := t.At.UTC()
	record := domain.Transaction{
		ID:              t.TransactionID,
		FromAccount:     t.FromAccount,
		ToAccount:       t.ToAccount,
		Amount:          t.Amount,
		Description:     t.Description,
		ReferenceNumber: t.ReferenceNumber,
		Status:          domain.TransactionSuccess,
		CreatedAt:       at,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from.Balance = from.Balance.Sub(t.Amount)
	to.Balance = to.Balance.Add(t.Amount)
	for _, a := range []*domain.Account{from, to} {
		stamp := at
		a.LastTransactionAt = &stamp
		a.TransactionCount++
		s.history[a.Number] = append(s.history[a.Number], record)
	}

	return domain.TransferResult{FromBalance: from.Balance, ToBalance: to.Balance}, nil
}

// ListTransactions implements store.AccountStore.
func (s *AccountStore) ListTransactions(_ context.Context, number string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[number]; !ok {
		return nil, store.ErrAccountNotFound
	}

	h := s.history[number]
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	out := make([]domain.Transaction, 0, limit)
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h[i])
	}
	return out, nil
}
