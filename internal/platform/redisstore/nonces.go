package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/redis/go-redis/v9"
)

var saveNonceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "address", ARGV[1], "issued_ms", ARGV[2], "expires_ms", ARGV[3], "used", "0")
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// consumeNonceScript mirrors domain.Nonce.Check: used, then expired, then
// address. Only a nonce passing every check is marked used.
var consumeNonceScript = redis.NewScript(`
local h = redis.call("HMGET", KEYS[1], "address", "issued_ms", "expires_ms", "used")
if not h[1] then
  return {"missing"}
end
if h[4] == "1" then
  return {"used"}
end
if tonumber(ARGV[2]) >= tonumber(h[3]) then
  return {"expired"}
end
if h[1] ~= ARGV[1] then
  return {"mismatch"}
end
redis.call("HSET", KEYS[1], "used", "1")
return {"ok", h[2], h[3]}
`)

// NonceStore keeps each nonce in a hash that expires with the nonce. Used
// nonces stay until expiry so a replay reports "used" rather than "unknown".
type NonceStore struct {
	client redis.UniversalClient
	prefix string
}

var _ store.NonceStore = (*NonceStore)(nil)

// NewNonceStore creates a nonce store writing keys under prefix+"nonce:".
func NewNonceStore(client redis.UniversalClient, prefix string) *NonceStore {
	return &NonceStore{client: client, prefix: prefix + "nonce:"}
}

// Save implements store.NonceStore.
func (s *NonceStore) Save(ctx context.Context, n *domain.Nonce) error {
	ttl := ttlUntil(n.ExpiresAt, time.Now())
	created, err := saveNonceScript.Run(ctx, s.client, []string{s.prefix + n.Value},
		n.Address,
		n.IssuedAt.UnixMilli(),
		n.ExpiresAt.UnixMilli(),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return store.NewStoreError("nonce", "save", "script failed", err)
	}
	if created == 0 {
		return store.ErrNonceExists
	}
	return nil
}

// Consume implements store.NonceStore.
func (s *NonceStore) Consume(ctx context.Context, value, address string, now time.Time) (*domain.Nonce, error) {
	res, err := consumeNonceScript.Run(ctx, s.client, []string{s.prefix + value},
		address, now.UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, store.NewStoreError("nonce", "consume", "script failed", err)
	}
	if len(res) == 0 {
		return nil, store.NewStoreError("nonce", "consume", "empty script reply", nil)
	}

	switch res[0] {
	case "missing":
		return nil, domain.ErrNonceNotFound
	case "used":
		return nil, domain.ErrNonceUsed
	case "expired":
		return nil, domain.ErrNonceExpired
	case "mismatch":
		return nil, domain.ErrNonceAddressMismatch
	case "ok":
	default:
		return nil, store.NewStoreError("nonce", "consume", "unexpected script reply "+res[0], nil)
	}

	if len(res) != 3 {
		return nil, store.NewStoreError("nonce", "consume", "short script reply", nil)
	}
	issued, err := strconv.ParseInt(res[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse issued_ms: %w", err)
	}
	expires, err := strconv.ParseInt(res[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expires_ms: %w", err)
	}

	return &domain.Nonce{
		Value:     value,
		Address:   address,
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
		Used:      true,
	}, nil
}
