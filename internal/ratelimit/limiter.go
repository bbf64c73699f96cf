// Package ratelimit implements fixed-window request limiting keyed by an
// arbitrary string, in memory or in Redis.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request under key fits in the current
// window. When it does not, retryAfter says when the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// Key builds the limiter key for a scope and subject, e.g. "nonce:10.0.0.1".
func Key(scope, subject string) string {
	return scope + ":" + subject
}
