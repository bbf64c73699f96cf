package memory

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(address, jti string, issued time.Time) *domain.Session {
	return &domain.Session{
		Address:    address,
		TokenID:    jti,
		Verified:   true,
		Confidence: 1,
		IssuedAt:   issued,
		ExpiresAt:  issued.Add(domain.SessionTTL),
	}
}

func TestSessionStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now().UTC()

	s := NewSessionStore()
	require.NoError(t, s.Put(ctx, session(wallet, "jti-1", now)))
	require.NoError(t, s.Put(ctx, session(wallet, "jti-2", now)))

	got, err := s.Get(ctx, wallet, now)
	require.NoError(t, err)
	assert.Equal(t, "jti-2", got.TokenID)

	_, err = s.Get(ctx, "unknown", now)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Lazy expiry removes the record on read.
	_, err = s.Get(ctx, wallet, now.Add(domain.SessionTTL))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, s.Len())

	require.NoError(t, s.Put(ctx, session("a", "1", now.Add(-48*time.Hour))))
	require.NoError(t, s.Put(ctx, session("b", "2", now)))
	removed, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Delete(ctx, "b"))
	assert.Zero(t, s.Len())
}
