package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vaultcore/internal/config"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/redisstore"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/redis/go-redis/v9"
)

// dependencies is the built service plus the resources it holds open.
type dependencies struct {
	service security.Service
	redis   *redis.Client
	logger  *slog.Logger
}

func (d *dependencies) close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.logger.Error("error closing redis connection", slog.String("error", err.Error()))
		}
	}
}

// buildService decodes the key material and wires the security primitives.
func buildService(ctx context.Context, cfg *config.Config, l *slog.Logger, m *metrics.Metrics) (*dependencies, error) {
	keyring, err := buildKeyring(cfg.Security)
	if err != nil {
		return nil, err
	}

	params, err := security.ParamsForNetwork(cfg.Security.Network)
	if err != nil {
		return nil, err
	}

	tokens, err := security.NewTokenIssuer([]byte(cfg.Security.TokenSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	deps := &dependencies{logger: l}
	var attempts security.AttemptStore
	switch cfg.Security.AttemptStoreKind {
	case "redis":
		client, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		deps.redis = client
		attempts = redisstore.NewAttemptStore(client, cfg.Redis.Prefix)
	default:
		attempts = security.NewMemoryAttemptStore()
	}

	deps.service, err = security.NewService(
		security.Config{
			PINKeyID:       cfg.Security.PINKeyID,
			MaxPINAttempts: cfg.Security.MaxPINAttempts,
		},
		keyring,
		security.NewSignatureVerifier(params),
		tokens,
		attempts,
		l,
		m,
	)
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("failed to create security service: %w", err)
	}
	return deps, nil
}

// buildKeyring derives the PIN key from the master key and adds any
// explicitly configured hex keys.
func buildKeyring(cfg config.SecurityConfig) (*security.Keyring, error) {
	master, err := hex.DecodeString(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("security.master_key is not valid hex: %w", err)
	}

	explicit := make(map[string][]byte, len(cfg.Keys))
	for id, raw := range cfg.Keys {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("security.keys.%s is not valid hex: %w", id, err)
		}
		explicit[id] = key
	}

	keyring, err := security.NewKeyring(master, []string{cfg.PINKeyID}, explicit)
	if err != nil {
		return nil, fmt.Errorf("failed to build keyring: %w", err)
	}
	return keyring, nil
}
