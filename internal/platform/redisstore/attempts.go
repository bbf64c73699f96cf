package redisstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/redis/go-redis/v9"
)

var recordFailureScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "locked") == "1" then
  return {tonumber(redis.call("HGET", KEYS[1], "failures") or "0"), 1}
end
local failures = redis.call("HINCRBY", KEYS[1], "failures", 1)
if failures >= tonumber(ARGV[1]) then
  redis.call("HSET", KEYS[1], "locked", "1")
  return {failures, 1}
end
return {failures, 0}
`)

var resetAttemptsScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "locked") == "1" then
  return 0
end
return redis.call("DEL", KEYS[1])
`)

// AttemptStore keeps PIN failure counters in a hash per account so several
// security service instances share lockout state. Counters never expire: a
// lock stays until an operator clears the key.
type AttemptStore struct {
	client redis.UniversalClient
	prefix string
}

var _ security.AttemptStore = (*AttemptStore)(nil)

// NewAttemptStore creates an attempt store writing keys under prefix+"pin:".
func NewAttemptStore(client redis.UniversalClient, prefix string) *AttemptStore {
	return &AttemptStore{client: client, prefix: prefix + "pin:"}
}

// Get implements security.AttemptStore.
func (s *AttemptStore) Get(ctx context.Context, accountID string) (security.AttemptState, error) {
	vals, err := s.client.HMGet(ctx, s.prefix+accountID, "failures", "locked").Result()
	if err != nil {
		return security.AttemptState{}, store.NewStoreError("pin_attempts", "get", "hmget failed", err)
	}

	var st security.AttemptState
	if f, ok := vals[0].(string); ok {
		n, err := strconv.Atoi(f)
		if err != nil {
			return security.AttemptState{}, store.NewStoreError("pin_attempts", "get", "bad failure count", err)
		}
		st.Failures = n
	}
	if l, ok := vals[1].(string); ok {
		st.Locked = l == "1"
	}
	return st, nil
}

// RecordFailure implements security.AttemptStore.
func (s *AttemptStore) RecordFailure(ctx context.Context, accountID string, maxAttempts int) (security.AttemptState, error) {
	res, err := recordFailureScript.Run(ctx, s.client, []string{s.prefix + accountID}, maxAttempts).Int64Slice()
	if err != nil {
		return security.AttemptState{}, store.NewStoreError("pin_attempts", "record_failure", "script failed", err)
	}
	if len(res) != 2 {
		return security.AttemptState{}, store.NewStoreError("pin_attempts", "record_failure", "short script reply",
			errors.New("expected two values"))
	}
	return security.AttemptState{Failures: int(res[0]), Locked: res[1] == 1}, nil
}

// Reset implements security.AttemptStore.
func (s *AttemptStore) Reset(ctx context.Context, accountID string) error {
	if err := resetAttemptsScript.Run(ctx, s.client, []string{s.prefix + accountID}).Err(); err != nil {
		return store.NewStoreError("pin_attempts", "reset", "script failed", err)
	}
	return nil
}
