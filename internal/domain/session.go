package domain

import "time"

// SessionTTL is the lifetime of a wallet session and its bearer token.
const SessionTTL = 24 * time.Hour

// Session is the server-side record backing a wallet bearer token. Only one
// session exists per address; a new verification overwrites the old one.
type Session struct {
	Address    string    `json:"address"`
	TokenID    string    `json:"token_id"`
	Verified   bool      `json:"verified"`
	Confidence float64   `json:"confidence"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
