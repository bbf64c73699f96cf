package store

import (
	"context"

	"github.com/phrazzld/vaultcore/internal/domain"
)

// AccountStore persists ledger accounts and their transaction history.
type AccountStore interface {
	// Create inserts the account if its number is unused.
	// Returns ErrAccountExists on a number collision so callers can
	// regenerate, and a validation error if the account is invalid.
	Create(ctx context.Context, account *domain.Account) error

	// Get returns a snapshot of the account.
	// Returns ErrAccountNotFound if the account does not exist.
	Get(ctx context.Context, number string) (*domain.Account, error)

	// SetStatus moves the account to status. Used to record a PIN lockout.
	// Returns ErrAccountNotFound if the account does not exist.
	SetStatus(ctx context.Context, number string, status domain.AccountStatus) error

	// Transfer debits FromAccount and credits ToAccount by Amount and
	// appends the transaction record, all or nothing. Both accounts are
	// locked for the duration, always in the same order, so concurrent
	// transfers cannot deadlock or interleave.
	//
	// Returns ErrAccountNotFound if either account is missing,
	// domain.ErrLocked if the source account is not ACTIVE,
	// domain.ErrDestinationInactive if the destination is not ACTIVE and
	// domain.ErrInsufficientFunds if the debit would overdraw. None of
	// these leave any trace in the ledger.
	Transfer(ctx context.Context, transfer domain.Transfer) (domain.TransferResult, error)

	// ListTransactions returns up to limit transactions touching number,
	// newest first.
	// Returns ErrAccountNotFound if the account does not exist.
	ListTransactions(ctx context.Context, number string, limit int) ([]domain.Transaction, error)
}
