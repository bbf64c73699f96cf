package walletauth

import (
	"fmt"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
)

var (
	// ErrInvalidSignature is returned when the signature does not prove
	// control of the address. The nonce is spent regardless.
	ErrInvalidSignature = fmt.Errorf("%w: signature verification failed", domain.ErrUnauthorized)

	// ErrUnknownNonce is returned when the presented nonce was never issued or
	// has already been swept. It is an invalid credential, not a missing
	// resource.
	ErrUnknownNonce = fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrNonceNotFound)

	// ErrSessionInvalid is returned when a well-formed token no longer has a
	// matching live session record.
	ErrSessionInvalid = fmt.Errorf("%w: session expired or revoked", domain.ErrUnauthorized)
)

// ThrottledError reports a rate-limited nonce request and when the caller
// may try again.
type ThrottledError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s: retry after %s", domain.ErrThrottled, e.RetryAfter.Round(time.Second))
}

// Unwrap lets errors.Is match domain.ErrThrottled.
func (e *ThrottledError) Unwrap() error {
	return domain.ErrThrottled
}
