package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/vaultcore/internal/domain"
)

// Typed failures. Callers treat any of these as fatal to the enclosing
// business operation; none of them comes with a partial result.
var (
	// ErrInvalidRequest is returned for malformed input to a crypto operation.
	ErrInvalidRequest = errors.New("invalid security request")

	// ErrUnknownKey is returned when a key id is not configured.
	ErrUnknownKey = errors.New("unknown key id")

	// ErrMalformedCiphertext is returned when an envelope cannot be parsed.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecryptFailed is returned when authentication of an envelope fails.
	ErrDecryptFailed = errors.New("decryption failed")

	// ErrAccountLocked is returned by the attempt store for a locked account.
	ErrAccountLocked = errors.New("account locked")

	// ErrInvalidToken is returned when a reference token fails verification.
	ErrInvalidToken = errors.New("invalid reference token")

	// ErrTokenExpired is returned when a reference token is past its expiry.
	ErrTokenExpired = errors.New("reference token expired")
)

// Code returns the stable wire code for a security error, used by the RPC
// layer so clients can rebuild the sentinel without parsing messages.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, ErrMalformedCiphertext):
		return "malformed_ciphertext"
	case errors.Is(err, ErrDecryptFailed):
		return "decrypt_failed"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	default:
		return "internal"
	}
}

// FromCode is the inverse of Code. Unknown codes map to nil.
func FromCode(code string) error {
	switch code {
	case "invalid_request":
		return ErrInvalidRequest
	case "unknown_key":
		return ErrUnknownKey
	case "malformed_ciphertext":
		return ErrMalformedCiphertext
	case "decrypt_failed":
		return ErrDecryptFailed
	case "account_locked":
		return ErrAccountLocked
	case "invalid_token":
		return ErrInvalidToken
	case "token_expired":
		return ErrTokenExpired
	default:
		return nil
	}
}

// AsDependencyError folds a failure of security operation op into the
// domain taxonomy. Deadlines become ErrDependencyTimeout; anything else
// becomes ErrDependency while still matching the original sentinel.
func AsDependencyError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrDependencyTimeout), errors.Is(err, domain.ErrDependency):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", domain.ErrDependencyTimeout, op)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrDependency, op, err)
	}
}
