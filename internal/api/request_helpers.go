package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/vaultcore/internal/api/shared"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
)

// maxHistoryLimit caps the limit query parameter on transaction listings.
const maxHistoryLimit = 500

// clientIP returns the caller address used for rate limiting. RemoteAddr
// only carries a forwarded address when the request came through a trusted
// proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// getPathAccountNumber extracts and shape-checks an account number from the
// URL path parameters.
func getPathAccountNumber(r *http.Request, paramName string) (string, error) {
	number := chi.URLParam(r, paramName)
	if number == "" {
		return "", domain.NewValidationError(paramName, "is required", nil)
	}
	if err := domain.ValidateAccountNumber(number); err != nil {
		return "", err
	}
	return number, nil
}

// getLimitParam parses an optional positive limit query parameter. Zero
// means the service default.
func getLimitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return 0, domain.NewValidationError("limit", "must be between 1 and "+strconv.Itoa(maxHistoryLimit), err)
	}
	return limit, nil
}

// decodeAndValidate reads a JSON body into v and runs struct validation. It
// writes a 400 response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	if err := shared.DecodeJSON(w, r, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		log.Debug("malformed request body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}

	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// handleSessionFromContext returns the session placed in the context by the
// auth middleware, writing a 401 when it is missing.
func handleSessionFromContext(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	session, ok := shared.GetSession(r.Context())
	if !ok {
		logger.FromContextOrDefault(r.Context(), slog.Default()).Warn("session not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return session, true
}
