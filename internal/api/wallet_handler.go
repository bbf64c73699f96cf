package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/phrazzld/vaultcore/internal/api/middleware"
	"github.com/phrazzld/vaultcore/internal/api/shared"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/service/walletauth"
)

// WalletHandler serves the wallet challenge-response login endpoints.
type WalletHandler struct {
	gateway walletauth.Gateway
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(gateway walletauth.Gateway, logger *slog.Logger) *WalletHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WalletHandler")
	}
	return &WalletHandler{
		gateway: gateway,
		logger:  logger.With(slog.String("component", "wallet_handler")),
	}
}

// GetNonce handles GET /auth/nonce?address=
func (h *WalletHandler) GetNonce(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.gateway.GetNonce(r.Context(), clientIP(r), r.URL.Query().Get("address"))
	if err != nil {
		var throttled *walletauth.ThrottledError
		if errors.As(err, &throttled) {
			secs := int(math.Ceil(throttled.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		HandleAPIError(w, r, err, "Failed to issue nonce")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NonceResponse{
		Nonce:     challenge.Nonce,
		Message:   challenge.Message,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// Verify handles POST /auth/verify
func (h *WalletHandler) Verify(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req VerifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	login, err := h.gateway.VerifySignature(r.Context(), req.Address, req.Signature, req.Nonce)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to verify signature")
		return
	}

	log.Debug("wallet session issued", slog.String("address", login.Address))
	shared.RespondWithJSON(w, r, http.StatusOK, login)
}

// GetSession handles GET /auth/session. The auth middleware has already
// resolved the session.
func (h *WalletHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := handleSessionFromContext(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SessionResponse{
		Address:    session.Address,
		Verified:   session.Verified,
		Confidence: session.Confidence,
		IssuedAt:   session.IssuedAt,
		ExpiresAt:  session.ExpiresAt,
	})
}

// Logout handles DELETE /auth/session
func (h *WalletHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
		return
	}
	if err := h.gateway.RevokeSession(r.Context(), token); err != nil {
		HandleAPIError(w, r, err, "Failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
