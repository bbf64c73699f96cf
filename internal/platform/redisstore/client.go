// Package redisstore implements the nonce, session and PIN attempt stores on
// Redis. Every check-and-set runs as a Lua script so it is atomic across
// processes, and records expire through key TTLs.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// ttlUntil returns the key lifetime for a record expiring at expiresAt,
// never less than one millisecond so SET PX stays valid.
func ttlUntil(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}
