package auth

import (
	"context"
	"time"
)

// JWTService issues and validates the bearer tokens that back wallet sessions.
type JWTService interface {
	// GenerateToken creates a signed session token for a verified wallet
	// address. The returned claims describe exactly what was signed.
	GenerateToken(ctx context.Context, address string, confidence float64) (string, *Claims, error)

	// ValidateToken checks the signature and time claims of tokenString and
	// returns its claims. It does not consult the session store.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the application view of a session token.
type Claims struct {
	// Address is the wallet address the session was issued to.
	Address string `json:"address"`

	// Verified and Confidence carry the signature verification outcome.
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`

	// Standard registered JWT claims
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
