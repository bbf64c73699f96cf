package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTarget struct{}

func (failingTarget) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, errors.New("unavailable")
}

type countingTarget struct{ calls atomic.Int32 }

func (c *countingTarget) DeleteExpired(context.Context, time.Time) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestSweepOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	nonces := memory.NewNonceStore()
	require.NoError(t, nonces.Save(ctx, domain.NewNonce("stale", "addr", now.Add(-time.Hour), domain.NonceTTL)))
	require.NoError(t, nonces.Save(ctx, domain.NewNonce("fresh", "addr", now, domain.NonceTTL)))

	sessions := memory.NewSessionStore()
	require.NoError(t, sessions.Put(ctx, &domain.Session{Address: "a", ExpiresAt: now.Add(-time.Second)}))

	s := NewSweeper(SweeperConfig{}, nil, nil)
	s.now = func() time.Time { return now }
	s.Register("nonce", nonces)
	s.Register("session", sessions)
	s.Register("broken", failingTarget{})

	removed := s.SweepOnce(ctx)
	assert.Equal(t, map[string]int{"nonce": 1, "session": 1}, removed)
	assert.Equal(t, 1, nonces.Len())
	assert.Zero(t, sessions.Len())
}

func TestSweeperLoop(t *testing.T) {
	t.Parallel()

	target := &countingTarget{}
	s := NewSweeper(SweeperConfig{Interval: 5 * time.Millisecond}, nil, nil)
	s.Register("count", target)
	s.Start()

	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := target.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, target.calls.Load())
}
