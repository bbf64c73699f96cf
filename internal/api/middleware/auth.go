package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/vaultcore/internal/api/shared"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/service/auth"
	"github.com/phrazzld/vaultcore/internal/service/walletauth"
)

// AuthMiddleware requires a bearer token backed by a live wallet session.
type AuthMiddleware struct {
	gateway walletauth.Gateway
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(gateway walletauth.Gateway) *AuthMiddleware {
	return &AuthMiddleware{
		gateway: gateway,
	}
}

// Authenticate validates the bearer token and its session record, and adds
// the session to the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		session, err := m.gateway.GetSession(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Token expired", err)
			case errors.Is(err, domain.ErrUnauthorized):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid or expired session", err)
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithSession(r.Context(), session)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
