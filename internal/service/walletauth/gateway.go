// Package walletauth implements the wallet challenge-response login: a
// rate-limited nonce is issued, the wallet signs the challenge, and a
// verified signature is exchanged for a bearer session.
package walletauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/ratelimit"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/service"
	"github.com/phrazzld/vaultcore/internal/service/auth"
	"github.com/phrazzld/vaultcore/internal/store"
)

const (
	// nonceBytes is the entropy of an issued nonce.
	nonceBytes = 32

	// NonceScope is the rate limiter scope for nonce issuance.
	NonceScope = "nonce"
)

// addressPattern accepts the base58 and bech32 alphabets at address lengths.
// The security service does the real decoding.
var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9]{25,90}$`)

// Challenge is what a client receives from GetNonce.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login is what a client receives from a successful VerifySignature.
type Login struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	ExpiresIn int64  `json:"expires_in"`
}

// Gateway is the wallet authentication contract.
type Gateway interface {
	// GetNonce issues a single-use challenge for address. The per-IP quota
	// is charged before anything else, so a throttled caller never causes a
	// nonce to be stored.
	GetNonce(ctx context.Context, clientIP, address string) (Challenge, error)

	// VerifySignature redeems nonce and, if signature is a valid signature
	// of the challenge by address, opens a session.
	VerifySignature(ctx context.Context, address, signature, nonce string) (Login, error)

	// GetSession returns the live session behind token.
	GetSession(ctx context.Context, token string) (*domain.Session, error)

	// RevokeSession ends the session behind token.
	RevokeSession(ctx context.Context, token string) error
}

// Config holds the gateway tunables.
type Config struct {
	NonceTTL time.Duration
}

var _ Gateway = (*gatewayImpl)(nil)

type gatewayImpl struct {
	nonces   store.NonceStore
	sessions store.SessionStore
	limiter  ratelimit.Limiter
	security security.Service
	tokens   auth.JWTService
	nonceTTL time.Duration
	rand     io.Reader
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option customizes a Gateway.
type Option func(*gatewayImpl)

// WithClock replaces the clock used for nonce and session expiry.
func WithClock(now func() time.Time) Option {
	return func(g *gatewayImpl) { g.now = now }
}

// NewGateway creates a Gateway. m may be nil.
func NewGateway(
	cfg Config,
	nonces store.NonceStore,
	sessions store.SessionStore,
	limiter ratelimit.Limiter,
	sec security.Service,
	tokens auth.JWTService,
	log *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) (Gateway, error) {
	if nonces == nil || sessions == nil {
		return nil, errors.New("nonce and session stores cannot be nil")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter cannot be nil")
	}
	if sec == nil || tokens == nil {
		return nil, errors.New("security and token services cannot be nil")
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = domain.NonceTTL
	}
	if log == nil {
		log = slog.Default()
	}

	g := &gatewayImpl{
		nonces:   nonces,
		sessions: sessions,
		limiter:  limiter,
		security: sec,
		tokens:   tokens,
		nonceTTL: cfg.NonceTTL,
		rand:     rand.Reader,
		now:      time.Now,
		logger:   log.With(slog.String("component", "wallet_gateway")),
		metrics:  m,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GetNonce implements Gateway.
func (g *gatewayImpl) GetNonce(ctx context.Context, clientIP, address string) (Challenge, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)
	now := g.now()

	allowed, retryAfter, err := g.limiter.Allow(ctx, ratelimit.Key(NonceScope, clientIP), now)
	if err != nil {
		g.metrics.IncNonce("error")
		return Challenge{}, fmt.Errorf("%w: rate limiter: %w", domain.ErrDependency, err)
	}
	if !allowed {
		log.Info("nonce request throttled", slog.String("client_ip", clientIP))
		g.metrics.IncNonce("throttled")
		return Challenge{}, &ThrottledError{RetryAfter: retryAfter}
	}

	if !addressPattern.MatchString(address) {
		g.metrics.IncNonce("invalid")
		return Challenge{}, domain.NewValidationError("address", "is not a wallet address", nil)
	}

	raw := make([]byte, nonceBytes)
	if _, err := io.ReadFull(g.rand, raw); err != nil {
		g.metrics.IncNonce("error")
		return Challenge{}, service.NewServiceError("walletauth", "get_nonce", err)
	}

	nonce := domain.NewNonce(hex.EncodeToString(raw), address, now, g.nonceTTL)
	if err := g.nonces.Save(ctx, nonce); err != nil {
		g.metrics.IncNonce("error")
		return Challenge{}, service.NewServiceError("walletauth", "get_nonce", err)
	}

	g.metrics.IncNonce("issued")
	log.Debug("nonce issued", slog.String("address", address))

	return Challenge{
		Nonce:     nonce.Value,
		Message:   nonce.Challenge(),
		ExpiresAt: nonce.ExpiresAt,
	}, nil
}

// VerifySignature implements Gateway. The nonce is consumed before the
// signature is checked, so every nonce is good for exactly one attempt.
func (g *gatewayImpl) VerifySignature(ctx context.Context, address, signature, nonce string) (login Login, err error) {
	log := logger.FromContextOrDefault(ctx, g.logger).With(slog.String("address", address))
	defer func() {
		switch {
		case err == nil:
			g.metrics.IncVerification("verified")
		case errors.Is(err, domain.ErrUnauthorized):
			g.metrics.IncVerification("rejected")
		case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
			g.metrics.IncVerification("invalid")
		default:
			g.metrics.IncVerification("error")
		}
	}()

	switch {
	case address == "":
		return Login{}, domain.NewValidationError("address", "is required", nil)
	case signature == "":
		return Login{}, domain.NewValidationError("signature", "is required", nil)
	case nonce == "":
		return Login{}, domain.NewValidationError("nonce", "is required", nil)
	}

	record, err := g.nonces.Consume(ctx, nonce, address, g.now())
	if err != nil {
		log.Debug("nonce redemption failed", slog.String("error", err.Error()))
		if errors.Is(err, domain.ErrNonceNotFound) {
			return Login{}, ErrUnknownNonce
		}
		return Login{}, err
	}

	result, err := g.security.VerifySignature(ctx, security.SignatureRequest{
		Address:   address,
		Message:   record.Challenge(),
		Signature: signature,
	})
	if err != nil {
		if errors.Is(err, security.ErrInvalidRequest) {
			return Login{}, domain.NewValidationError("address", "is not a valid address for this network", nil)
		}
		return Login{}, security.AsDependencyError("VerifySignature", err)
	}
	if !result.Verified {
		log.Info("wallet signature rejected")
		return Login{}, ErrInvalidSignature
	}

	token, claims, err := g.tokens.GenerateToken(ctx, address, result.Confidence)
	if err != nil {
		return Login{}, service.NewServiceError("walletauth", "verify_signature", err)
	}

	session := &domain.Session{
		Address:    address,
		TokenID:    claims.ID,
		Verified:   true,
		Confidence: result.Confidence,
		IssuedAt:   claims.IssuedAt,
		ExpiresAt:  claims.ExpiresAt,
	}
	if err := g.sessions.Put(ctx, session); err != nil {
		return Login{}, service.NewServiceError("walletauth", "verify_signature", err)
	}

	log.Info("wallet session opened", slog.String("token_id", claims.ID))

	return Login{
		Token:     token,
		Address:   address,
		ExpiresIn: int64(claims.ExpiresAt.Sub(claims.IssuedAt) / time.Second),
	}, nil
}

// GetSession implements Gateway. A valid token is not enough: the session
// record must still exist and carry the token's id.
func (g *gatewayImpl) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := g.tokens.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	session, err := g.sessions.Get(ctx, claims.Address, g.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, service.NewServiceError("walletauth", "get_session", err)
	}
	if session.TokenID != claims.ID {
		return nil, ErrSessionInvalid
	}
	return session, nil
}

// RevokeSession implements Gateway.
func (g *gatewayImpl) RevokeSession(ctx context.Context, token string) error {
	session, err := g.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if err := g.sessions.Delete(ctx, session.Address); err != nil {
		return service.NewServiceError("walletauth", "revoke_session", err)
	}
	logger.FromContextOrDefault(ctx, g.logger).Info("wallet session revoked",
		slog.String("address", session.Address))
	return nil
}
