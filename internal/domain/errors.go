// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the banking service, the wallet gateway and the
// security client. The API layer maps these to HTTP status codes.
var (
	// ErrValidation is returned when input is malformed. It is always raised
	// before any side effect takes place.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an account, session or nonce is unknown.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a keyed record already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrUnauthorized is returned for a bad PIN, signature or token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLocked is returned once an account has exhausted its PIN attempts.
	// Kept distinct from ErrUnauthorized so clients can show a different message.
	ErrLocked = errors.New("account locked")

	// ErrThrottled is returned when a caller exceeds its rate limit.
	ErrThrottled = errors.New("rate limit exceeded")

	// ErrInsufficientFunds is returned when a debit would overdraw an account.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrDependencyTimeout is returned when the security service does not
	// answer within the per-call deadline.
	ErrDependencyTimeout = errors.New("dependency timed out")

	// ErrDependency is returned when the security service is unreachable or
	// answers with an unexpected failure.
	ErrDependency = errors.New("dependency failure")

	// ErrAccountNotFound indicates that the requested account does not exist.
	ErrAccountNotFound = fmt.Errorf("%w: account", ErrNotFound)

	// ErrNonceNotFound indicates that no record exists for the presented nonce.
	ErrNonceNotFound = fmt.Errorf("%w: nonce", ErrNotFound)

	// ErrSessionNotFound indicates that no live session exists for an address.
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)

	// ErrNonceUsed indicates the nonce was already consumed.
	ErrNonceUsed = fmt.Errorf("%w: nonce already used", ErrValidation)

	// ErrNonceExpired indicates the nonce is past its expiry.
	ErrNonceExpired = fmt.Errorf("%w: nonce expired", ErrValidation)

	// ErrNonceAddressMismatch indicates the nonce was issued to another address.
	ErrNonceAddressMismatch = fmt.Errorf("%w: nonce bound to a different address", ErrUnauthorized)

	// ErrDestinationInactive indicates the receiving account of a transfer is
	// not ACTIVE. The payer's own account is unaffected.
	ErrDestinationInactive = fmt.Errorf("%w: destination account is not active", ErrLocked)

	// ErrAccountExists indicates an account number collision on create.
	ErrAccountExists = fmt.Errorf("%w: account", ErrDuplicate)
)

// ValidationError describes which input field failed validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match both the wrapped cause and ErrValidation.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil || errors.Is(e.Err, ErrValidation) {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
