package store

import (
	"context"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
)

// NonceStore holds wallet challenge nonces.
type NonceStore interface {
	// Save stores a freshly issued nonce until its expiry.
	// Returns ErrNonceExists if the value is already stored.
	Save(ctx context.Context, nonce *domain.Nonce) error

	// Consume atomically checks the nonce against address at now and marks
	// it used. Exactly one of any number of concurrent callers can succeed
	// for a given value.
	//
	// Returns domain.ErrNonceNotFound, domain.ErrNonceUsed,
	// domain.ErrNonceExpired or domain.ErrNonceAddressMismatch. A nonce
	// that fails a check is left as it was.
	Consume(ctx context.Context, value, address string, now time.Time) (*domain.Nonce, error)
}

// SessionStore holds wallet sessions keyed by address.
type SessionStore interface {
	// Put stores session, replacing any existing session for its address.
	Put(ctx context.Context, session *domain.Session) error

	// Get returns the live session for address at now.
	// Returns domain.ErrSessionNotFound if there is none or it has expired.
	Get(ctx context.Context, address string, now time.Time) (*domain.Session, error)

	// Delete removes the session for address. Deleting a missing session is
	// not an error.
	Delete(ctx context.Context, address string) error
}

// Sweepable is implemented by stores that need expired records evicted
// explicitly. Redis-backed stores rely on key TTLs instead.
type Sweepable interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
