package redisstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestConnect(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := Connect(context.Background(), Options{Addr: s.Addr()})
	require.NoError(t, err)
	_ = client.Close()

	addr := s.Addr()
	s.Close()
	_, err = Connect(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}

func TestNonceStore(t *testing.T) {
	mr, client := newClient(t)
	ns := NewNonceStore(client, "test:")
	ctx := context.Background()
	now := time.Now().UTC()

	n := domain.NewNonce("abc", wallet, now, domain.NonceTTL)
	require.NoError(t, ns.Save(ctx, n))
	assert.ErrorIs(t, ns.Save(ctx, n), store.ErrNonceExists)
	assert.True(t, mr.Exists("test:nonce:abc"))
	assert.Positive(t, mr.TTL("test:nonce:abc"))

	_, err := ns.Consume(ctx, "zzz", wallet, now)
	assert.ErrorIs(t, err, domain.ErrNonceNotFound)

	_, err = ns.Consume(ctx, "abc", "1SomeoneElse", now)
	assert.ErrorIs(t, err, domain.ErrNonceAddressMismatch)

	got, err := ns.Consume(ctx, "abc", wallet, now)
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.True(t, n.IssuedAt.Equal(got.IssuedAt))
	assert.True(t, n.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, n.Challenge(), (&domain.Nonce{
		Value: got.Value, Address: got.Address, IssuedAt: got.IssuedAt, ExpiresAt: got.ExpiresAt,
	}).Challenge())

	_, err = ns.Consume(ctx, "abc", wallet, now)
	assert.ErrorIs(t, err, domain.ErrNonceUsed)

	require.NoError(t, ns.Save(ctx, domain.NewNonce("late", wallet, now, domain.NonceTTL)))
	_, err = ns.Consume(ctx, "late", wallet, now.Add(domain.NonceTTL+time.Second))
	assert.ErrorIs(t, err, domain.ErrNonceExpired)

	mr.FastForward(domain.NonceTTL + time.Second)
	assert.False(t, mr.Exists("test:nonce:abc"))
}

func TestNonceStoreSingleRedemption(t *testing.T) {
	_, client := newClient(t)
	ns := NewNonceStore(client, "test:")
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, ns.Save(ctx, domain.NewNonce("race", wallet, now, domain.NonceTTL)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ns.Consume(ctx, "race", wallet, now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSessionStore(t *testing.T) {
	mr, client := newClient(t)
	ss := NewSessionStore(client, "test:")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sess := &domain.Session{
		Address:    wallet,
		TokenID:    "jti-1",
		Verified:   true,
		Confidence: 1,
		IssuedAt:   now,
		ExpiresAt:  now.Add(domain.SessionTTL),
	}
	require.NoError(t, ss.Put(ctx, sess))

	got, err := ss.Get(ctx, wallet, now)
	require.NoError(t, err)
	assert.Equal(t, "jti-1", got.TokenID)
	assert.True(t, got.ExpiresAt.Equal(sess.ExpiresAt))

	_, err = ss.Get(ctx, wallet, now.Add(domain.SessionTTL))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = ss.Get(ctx, "unknown", now)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	mr.FastForward(domain.SessionTTL + time.Second)
	_, err = ss.Get(ctx, wallet, now)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, ss.Put(ctx, sess))
	require.NoError(t, ss.Delete(ctx, wallet))
	_, err = ss.Get(ctx, wallet, now)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAttemptStore(t *testing.T) {
	_, client := newClient(t)
	as := NewAttemptStore(client, "test:")
	ctx := context.Background()

	st, err := as.Get(ctx, "acct")
	require.NoError(t, err)
	assert.Zero(t, st)

	st, err = as.RecordFailure(ctx, "acct", 3)
	require.NoError(t, err)
	assert.Equal(t, security.AttemptState{Failures: 1}, st)

	require.NoError(t, as.Reset(ctx, "acct"))
	st, err = as.Get(ctx, "acct")
	require.NoError(t, err)
	assert.Zero(t, st)

	for i := 0; i < 3; i++ {
		st, err = as.RecordFailure(ctx, "acct", 3)
		require.NoError(t, err)
	}
	assert.Equal(t, security.AttemptState{Failures: 3, Locked: true}, st)

	st, err = as.RecordFailure(ctx, "acct", 3)
	require.NoError(t, err)
	assert.Equal(t, security.AttemptState{Failures: 3, Locked: true}, st)

	require.NoError(t, as.Reset(ctx, "acct"))
	st, err = as.Get(ctx, "acct")
	require.NoError(t, err)
	assert.True(t, st.Locked)
}
