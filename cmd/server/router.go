package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/vaultcore/internal/api"
	apiMiddleware "github.com/phrazzld/vaultcore/internal/api/middleware"
	"github.com/phrazzld/vaultcore/internal/metrics"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(apiMiddleware.NewRealIPMiddleware(app.trustedProxies))
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.NewMetricsMiddleware(app.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: app.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Trace-ID", "Retry-After"},
		MaxAge:         300,
	}))

	walletHandler := api.NewWalletHandler(app.gateway, app.logger)
	accountHandler := api.NewAccountHandler(app.banking, app.logger)
	paymentHandler := api.NewPaymentHandler(app.banking, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.gateway)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/nonce", walletHandler.GetNonce)
		r.Post("/verify", walletHandler.Verify)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/session", walletHandler.GetSession)
			r.Delete("/session", walletHandler.Logout)
		})
	})

	r.Post("/accounts", accountHandler.CreateAccount)
	r.Get("/accounts/{number}", accountHandler.GetAccount)
	r.Get("/accounts/{number}/transactions", accountHandler.ListTransactions)
	r.Post("/payments", paymentHandler.ProcessPayment)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(app.registry))

	return r
}
