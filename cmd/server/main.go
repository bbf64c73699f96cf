// Package main implements the entry point for the business service: account
// opening, PIN-authorised payments and the wallet authentication gateway.
// Every cryptographic operation is delegated to the security service over
// its internal RPC surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/phrazzld/vaultcore/internal/config"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/platform/postgres"
)

const serviceName = "vault-business"

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status, version, reset) and exit")
	flag.Parse()

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, l, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx := context.Background()

	if *migrateCmd != "" {
		if err := runMigrations(ctx, cfg, *migrateCmd, l); err != nil {
			l.Error("migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("failed to build application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		l.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFor(config.RoleBusiness)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{
		Level:       cfg.Server.LogLevel,
		Service:     serviceName,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("ledger_backend", cfg.Ledger.Backend),
		slog.Bool("redis_enabled", cfg.Redis.Addr != ""))
	return cfg, l, nil
}

// runMigrations executes a single goose command against the ledger database.
func runMigrations(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required to run migrations")
	}
	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, l)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return postgres.Migrate(ctx, db, command, l)
}
