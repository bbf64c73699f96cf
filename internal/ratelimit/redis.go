package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "vault:rl:"

var errUnexpectedReply = errors.New("unexpected redis response")

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local current = redis.call("INCR", key)
if current == 1 then
  redis.call("PEXPIRE", key, window_ms)
end

local ttl = redis.call("PTTL", key)
if ttl < 0 then
  ttl = window_ms
end

if current > limit then
  return {0, ttl}
end
return {1, ttl}
`)

// RedisLimiter shares one fixed window per key across all processes.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedis creates a limiter allowing limit requests per window.
func NewRedis(client redis.UniversalClient, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Allow implements Limiter. The window is anchored by the first request and
// enforced by the key's TTL, so now is not consulted.
func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		return false, 0, fmt.Errorf("invalid rate limit window %s", l.window)
	}

	res, err := rateLimitScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, windowMS).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, errUnexpectedReply
	}
	allowed, ok := vals[0].(int64)
	if !ok {
		return false, 0, errUnexpectedReply
	}
	ttlMS, ok := vals[1].(int64)
	if !ok {
		return false, 0, errUnexpectedReply
	}

	if allowed == 1 {
		return true, 0, nil
	}
	retryAfter := time.Duration(ttlMS) * time.Millisecond
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}
