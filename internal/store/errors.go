package store

import (
	"errors"
	"fmt"

	"github.com/phrazzld/vaultcore/internal/domain"
)

// Store errors. The not-found and duplicate variants wrap the domain
// sentinels so services can match on either.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = domain.ErrNotFound

	// ErrDuplicate is returned when a keyed record already exists.
	ErrDuplicate = domain.ErrDuplicate

	// ErrInvalidEntity is returned when a record fails validation before
	// being stored. Check the wrapped error for the field.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update touches no row.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails to
	// begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrAccountNotFound indicates that the account does not exist.
	ErrAccountNotFound = domain.ErrAccountNotFound

	// ErrAccountExists indicates an account number collision on create.
	ErrAccountExists = domain.ErrAccountExists

	// ErrNonceExists indicates a nonce value collision on save.
	ErrNonceExists = fmt.Errorf("%w: nonce", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a store failure with the entity and operation it hit.
type StoreError struct {
	Entity    string // e.g. "account", "nonce"
	Operation string // e.g. "create", "transfer"
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
