package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps one JSON session per address with a TTL matching the
// session expiry.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ store.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store writing keys under
// prefix+"session:".
func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix + "session:"}
}

// Put implements store.SessionStore.
func (s *SessionStore) Put(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := ttlUntil(session.ExpiresAt, time.Now())
	if err := s.client.Set(ctx, s.prefix+session.Address, data, ttl).Err(); err != nil {
		return store.NewStoreError("session", "put", "set failed", err)
	}
	return nil
}

// Get implements store.SessionStore.
func (s *SessionStore) Get(ctx context.Context, address string, now time.Time) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.prefix+address).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("session", "get", "get failed", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	// The key TTL and now come from different clocks.
	if sess.Expired(now) {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

// Delete implements store.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, s.prefix+address).Err(); err != nil {
		return store.NewStoreError("session", "delete", "del failed", err)
	}
	return nil
}
