package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
)

// Key type for context values
type ContextKey string

// Context keys for various values
const (
	// SessionContextKey is the context key for the authenticated wallet session
	SessionContextKey ContextKey = "session"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	traceID := generateTraceID()
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithSession stores the authenticated session in the context.
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, session)
}

// GetSession returns the authenticated session, if any.
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionContextKey).(*domain.Session)
	return session, ok && session != nil
}

// generateTraceID creates a random trace ID for request tracking.
// If crypto/rand fails it falls back to a time-based id rather than a
// static value.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)
	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			slog.Any("error", err),
			slog.Int("bytes_read", n),
			slog.String("fallback", "time-based generation"))
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

func generateFallbackTraceID() string {
	fallbackID := make([]byte, TraceIDLength)
	now := time.Now()
	binary.BigEndian.PutUint64(fallbackID[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(fallbackID[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(fallbackID[12:16], uint32(now.Unix()))
	return hex.EncodeToString(fallbackID)
}
