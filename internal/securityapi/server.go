// Package securityapi exposes a security.Service over a small JSON RPC
// surface. Each operation is a POST to /rpc/<Operation> whose body is the
// operation's request type and whose response is its result type. Failures
// are returned as {"code", "error"} so the client can rebuild the typed
// security error without parsing messages.
package securityapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/redact"
	"github.com/phrazzld/vaultcore/internal/security"
)

// ServiceTokenHeader carries the shared secret that authenticates the
// business process to the security process.
const ServiceTokenHeader = "X-Service-Token"

// Operation names used as RPC paths.
const (
	OpVerifyIdentity      = "VerifyIdentity"
	OpValidatePIN         = "ValidatePIN"
	OpEncryptData         = "EncryptData"
	OpDecryptData         = "DecryptData"
	OpVerifySignature     = "VerifySignature"
	OpGenerateSecureToken = "GenerateSecureToken"
	OpVerifySecureToken   = "VerifySecureToken"
)

// maxBodyBytes bounds every RPC request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed RPC.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type server struct {
	svc     security.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRouter returns the HTTP handler for the security process. When
// serviceToken is empty the RPC routes are left unauthenticated, which is
// only acceptable on a loopback listener.
func NewRouter(svc security.Service, serviceToken string, log *slog.Logger, m *metrics.Metrics) http.Handler {
	if svc == nil {
		panic("security service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &server{
		svc:     svc,
		logger:  log.With(slog.String("component", "security_api")),
		metrics: m,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/rpc", func(r chi.Router) {
		r.Use(requireServiceToken(serviceToken))
		r.Post("/"+OpVerifyIdentity, s.handle(OpVerifyIdentity, s.verifyIdentity))
		r.Post("/"+OpValidatePIN, s.handle(OpValidatePIN, s.validatePIN))
		r.Post("/"+OpEncryptData, s.handle(OpEncryptData, s.encryptData))
		r.Post("/"+OpDecryptData, s.handle(OpDecryptData, s.decryptData))
		r.Post("/"+OpVerifySignature, s.handle(OpVerifySignature, s.verifySignature))
		r.Post("/"+OpGenerateSecureToken, s.handle(OpGenerateSecureToken, s.generateSecureToken))
		r.Post("/"+OpVerifySecureToken, s.handle(OpVerifySecureToken, s.verifySecureToken))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	return r
}

// requireServiceToken rejects requests whose service token header does not
// match expected.
func requireServiceToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected != "" {
				got := r.Header.Get(ServiceTokenHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
					writeJSON(w, http.StatusUnauthorized, ErrorResponse{
						Code:  "unauthorized",
						Error: "missing or invalid service token",
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rpcFunc decodes its own request from body and returns the result to encode.
type rpcFunc func(ctx context.Context, body *json.Decoder) (any, error)

// errBadBody marks a request body that could not be decoded.
var errBadBody = errors.New("malformed request body")

func (s *server) handle(op string, fn rpcFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := logger.FromContextOrDefault(r.Context(), s.logger).With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()

		result, err := fn(r.Context(), dec)
		if err != nil {
			status, body := errorBody(err)
			if status >= http.StatusInternalServerError {
				log.Error("security operation failed", slog.String("error", redact.Error(err)))
			} else {
				log.Debug("security operation rejected",
					slog.String("code", body.Code),
					slog.String("error", redact.Error(err)))
			}
			s.metrics.ObserveHTTP(r.Method, "/rpc/"+op, status, time.Since(start))
			writeJSON(w, status, body)
			return
		}

		s.metrics.ObserveHTTP(r.Method, "/rpc/"+op, http.StatusOK, time.Since(start))
		writeJSON(w, http.StatusOK, result)
	}
}

// errorBody maps a security error to its status and wire form. Only
// invalid_request keeps its detail, which describes the caller's input; every
// other code carries the sentinel text alone so key and cipher errors stay
// in this process.
func errorBody(err error) (int, ErrorResponse) {
	if errors.Is(err, errBadBody) {
		return http.StatusBadRequest, ErrorResponse{Code: security.Code(security.ErrInvalidRequest), Error: errBadBody.Error()}
	}

	code := security.Code(err)
	switch code {
	case "invalid_request":
		return http.StatusBadRequest, ErrorResponse{Code: code, Error: err.Error()}
	case "unknown_key", "malformed_ciphertext":
		return http.StatusBadRequest, ErrorResponse{Code: code, Error: security.FromCode(code).Error()}
	case "decrypt_failed":
		return http.StatusUnprocessableEntity, ErrorResponse{Code: code, Error: security.FromCode(code).Error()}
	case "account_locked":
		return http.StatusLocked, ErrorResponse{Code: code, Error: security.FromCode(code).Error()}
	case "invalid_token", "token_expired":
		return http.StatusUnauthorized, ErrorResponse{Code: code, Error: security.FromCode(code).Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: code, Error: "internal security error"}
	}
}

func decode(dec *json.Decoder, v any) error {
	if err := dec.Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

func (s *server) verifyIdentity(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.IdentityRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	return s.svc.VerifyIdentity(ctx, req)
}

func (s *server) validatePIN(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.PINRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	return s.svc.ValidatePIN(ctx, req)
}

func (s *server) encryptData(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.EncryptRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	ct, err := s.svc.EncryptData(ctx, req.Plaintext, req.KeyID)
	if err != nil {
		return nil, err
	}
	return security.EncryptResult{Ciphertext: ct}, nil
}

func (s *server) decryptData(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.DecryptRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	pt, err := s.svc.DecryptData(ctx, req.Ciphertext, req.KeyID)
	if err != nil {
		return nil, err
	}
	return security.DecryptResult{Plaintext: pt}, nil
}

func (s *server) verifySignature(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.SignatureRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	return s.svc.VerifySignature(ctx, req)
}

func (s *server) generateSecureToken(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.TokenRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	return s.svc.GenerateSecureToken(ctx, req)
}

func (s *server) verifySecureToken(ctx context.Context, dec *json.Decoder) (any, error) {
	var req security.VerifyTokenRequest
	if err := decode(dec, &req); err != nil {
		return nil, err
	}
	if err := s.svc.VerifySecureToken(ctx, req.Token, req.AccountID, req.Purpose); err != nil {
		return nil, err
	}
	return security.VerifyTokenResult{Valid: true}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
