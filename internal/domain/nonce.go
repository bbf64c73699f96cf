package domain

import (
	"fmt"
	"time"
)

// NonceTTL is how long an issued nonce stays redeemable.
const NonceTTL = 5 * time.Minute

// challengeTimeLayout is fixed so the message can be rebuilt byte for byte.
const challengeTimeLayout = time.RFC3339

// Nonce is a single-use challenge bound to one wallet address.
type Nonce struct {
	Value     string    `json:"nonce"`
	Address   string    `json:"address"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// NewNonce builds an unused nonce record issued at now.
func NewNonce(value, address string, now time.Time, ttl time.Duration) *Nonce {
	issued := now.UTC().Truncate(time.Second)
	return &Nonce{
		Value:     value,
		Address:   address,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl),
	}
}

// Expired reports whether the nonce is past its expiry at now.
func (n *Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Check applies the redemption rules for address at now without mutating
// the record.
func (n *Nonce) Check(address string, now time.Time) error {
	switch {
	case n.Used:
		return ErrNonceUsed
	case n.Expired(now):
		return ErrNonceExpired
	case n.Address != address:
		return ErrNonceAddressMismatch
	}
	return nil
}

// Challenge returns the exact message the wallet must sign. The signature
// covers this string, so its layout must never change for a live nonce.
func (n *Nonce) Challenge() string {
	return fmt.Sprintf(
		"Sign this message to prove you own this wallet.\n\nAddress: %s\nNonce: %s\nIssued At: %s\nExpires At: %s",
		n.Address,
		n.Value,
		n.IssuedAt.UTC().Format(challengeTimeLayout),
		n.ExpiresAt.UTC().Format(challengeTimeLayout),
	)
}
