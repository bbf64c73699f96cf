package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	apiMiddleware "github.com/phrazzld/vaultcore/internal/api/middleware"
	"github.com/phrazzld/vaultcore/internal/config"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/postgres"
	"github.com/phrazzld/vaultcore/internal/platform/redisstore"
	"github.com/phrazzld/vaultcore/internal/ratelimit"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/securityclient"
	"github.com/phrazzld/vaultcore/internal/service/auth"
	"github.com/phrazzld/vaultcore/internal/service/banking"
	"github.com/phrazzld/vaultcore/internal/service/walletauth"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/phrazzld/vaultcore/internal/store/memory"
	"github.com/phrazzld/vaultcore/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	trustedProxies []netip.Prefix

	// Optional backends, nil when the memory implementations are used
	db    *sql.DB
	redis *redis.Client

	accounts store.AccountStore
	nonces   store.NonceStore
	sessions store.SessionStore
	limiter  ratelimit.Limiter

	security security.Service
	banking  banking.Service
	gateway  walletauth.Gateway

	sweeper *task.Sweeper
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	app.metrics = metrics.New(app.registry)

	var err error
	app.trustedProxies, err = apiMiddleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trusted proxies: %w", err)
	}

	app.security, err = securityclient.New(securityclient.Config{
		BaseURL:          cfg.SecurityClient.BaseURL,
		ServiceToken:     cfg.Security.ServiceToken,
		IdentityTimeout:  cfg.SecurityClient.IdentityTimeout,
		PINTimeout:       cfg.SecurityClient.PINTimeout,
		CryptoTimeout:    cfg.SecurityClient.CryptoTimeout,
		SignatureTimeout: cfg.SecurityClient.SignatureTimeout,
	}, logger, app.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create security client: %w", err)
	}

	if err := app.setupLedger(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	if err := app.setupAuthStores(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	app.banking, err = banking.NewService(banking.Config{
		BranchCode: cfg.Ledger.BranchCode,
		PINKeyID:   cfg.Security.PINKeyID,
	}, app.accounts, app.security, logger, app.metrics)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create banking service: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.gateway, err = walletauth.NewGateway(walletauth.Config{
		NonceTTL: time.Duration(cfg.Auth.NonceTTLMinutes) * time.Minute,
	}, app.nonces, app.sessions, app.limiter, app.security, jwtService, logger, app.metrics)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create wallet gateway: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupLedger selects the account store backend.
func (app *application) setupLedger(ctx context.Context) error {
	switch app.config.Ledger.Backend {
	case "postgres":
		db, err := postgres.Open(ctx, app.config.Database.URL, app.config.Database.MaxOpenConns, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect ledger database: %w", err)
		}
		app.db = db
		if app.config.Database.MigrateOnStart {
			if err := postgres.Migrate(ctx, db, "up", app.logger); err != nil {
				return fmt.Errorf("failed to migrate ledger database: %w", err)
			}
		}
		app.accounts = postgres.NewPostgresAccountStore(db, app.logger)
	default:
		app.accounts = memory.NewAccountStore()
	}
	app.logger.Info("ledger initialized", slog.String("backend", app.config.Ledger.Backend))
	return nil
}

// setupAuthStores wires the nonce, session and rate-limit stores. With Redis
// configured they are shared across replicas; otherwise they live in memory
// and the sweeper bounds their size.
func (app *application) setupAuthStores(ctx context.Context) error {
	cfg := app.config
	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		app.redis = client
		app.nonces = redisstore.NewNonceStore(client, cfg.Redis.Prefix)
		app.sessions = redisstore.NewSessionStore(client, cfg.Redis.Prefix)
		app.limiter = ratelimit.NewRedis(client, cfg.RateLimit.NonceLimit, cfg.RateLimit.Window, cfg.Redis.Prefix)
		app.logger.Info("auth stores initialized", slog.String("backend", "redis"))
		return nil
	}

	nonces := memory.NewNonceStore()
	sessions := memory.NewSessionStore()
	app.nonces = nonces
	app.sessions = sessions
	app.limiter = ratelimit.NewMemory(cfg.RateLimit.NonceLimit, cfg.RateLimit.Window)

	app.sweeper = task.NewSweeper(task.SweeperConfig{}, app.logger, app.metrics)
	app.sweeper.Register("nonce", nonces)
	app.sweeper.Register("session", sessions)
	app.logger.Info("auth stores initialized", slog.String("backend", "memory"))
	return nil
}

// Run starts the background sweeper and the HTTP server, and blocks until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	if app.sweeper != nil {
		app.sweeper.Start()
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
