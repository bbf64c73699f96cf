// Package main implements the entry point for the security service. It owns
// the key material, PIN attempt counters and signature verification, and
// exposes them to the business service over an internal RPC surface guarded
// by a shared service token.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/vaultcore/internal/config"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/securityapi"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "vault-security"

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadFor(config.RoleSecurity)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{
		Level:       cfg.Server.LogLevel,
		Service:     serviceName,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if err := run(context.Background(), cfg, l); err != nil {
		l.Error("security server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run builds the service and serves it until SIGINT or SIGTERM.
func run(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	deps, err := buildService(ctx, cfg, l, m)
	if err != nil {
		return err
	}
	defer deps.close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", securityapi.NewRouter(deps.service, cfg.Security.ServiceToken, l, m))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Security.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	go func() {
		l.Info("starting security server",
			slog.Int("port", cfg.Security.Port),
			slog.String("network", cfg.Security.Network),
			slog.String("attempt_store", cfg.Security.AttemptStoreKind))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("security server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	select {
	case <-shutdownCh:
		l.Info("shutting down security server")
	case <-serverCtx.Done():
		l.Info("security server context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("security server shutdown failed: %w", err)
	}
	l.Info("security server shutdown completed")
	return nil
}
