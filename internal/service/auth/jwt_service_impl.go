package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/vaultcore/internal/config"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
)

// minSecretLength is the shortest HMAC secret accepted for session tokens.
const minSecretLength = 32

// hmacJWTService is an implementation of JWTService using HMAC-SHA256 signing.
type hmacJWTService struct {
	signingKey    []byte
	tokenLifetime time.Duration
	timeFunc      func() time.Time // Injectable for testing
	clockSkew     time.Duration    // Allowed time difference for validation to handle clock drift
}

// jwtCustomClaims defines the structure of JWT claims we use
type jwtCustomClaims struct {
	Address    string  `json:"address"`
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	jwt.RegisteredClaims
}

// Ensure hmacJWTService implements JWTService interface
var _ JWTService = (*hmacJWTService)(nil)

// Option customizes a JWTService.
type Option func(*hmacJWTService)

// WithTimeFunc replaces the clock used to stamp and validate tokens.
func WithTimeFunc(now func() time.Time) Option {
	return func(s *hmacJWTService) {
		s.timeFunc = now
	}
}

// WithClockSkew sets the leeway applied to exp and iat on validation.
func WithClockSkew(skew time.Duration) Option {
	return func(s *hmacJWTService) {
		s.clockSkew = skew
	}
}

// NewJWTService creates a new session token service using HMAC-SHA256 signing.
func NewJWTService(cfg config.AuthConfig, opts ...Option) (JWTService, error) {
	if len(cfg.SessionSecret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", minSecretLength)
	}
	if cfg.SessionLifetimeHours <= 0 {
		return nil, fmt.Errorf("session lifetime must be positive")
	}

	s := &hmacJWTService{
		signingKey:    []byte(cfg.SessionSecret),
		tokenLifetime: time.Duration(cfg.SessionLifetimeHours) * time.Hour,
		timeFunc:      time.Now,
		clockSkew:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateToken creates a signed session token for address.
func (s *hmacJWTService) GenerateToken(
	ctx context.Context,
	address string,
	confidence float64,
) (string, *Claims, error) {
	log := logger.FromContext(ctx)
	if address == "" {
		return "", nil, fmt.Errorf("%w: address is required", ErrInvalidToken)
	}

	// NumericDate has second precision; truncate so the returned claims
	// match what a later ValidateToken will read back.
	now := s.timeFunc().UTC().Truncate(time.Second)
	expires := now.Add(s.tokenLifetime)

	claims := jwtCustomClaims{
		Address:    address,
		Verified:   true,
		Confidence: confidence,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(), // Unique token ID, bound to the session record
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign session token",
			slog.String("error", err.Error()),
			slog.String("signing_method", jwt.SigningMethodHS256.Name))
		return "", nil, fmt.Errorf("failed to sign session token with HMAC-SHA256: %w", err)
	}

	return signedToken, &Claims{
		Address:    address,
		Verified:   true,
		Confidence: confidence,
		IssuedAt:   now,
		ExpiresAt:  expires,
		ID:         claims.ID,
	}, nil
}

// ValidateToken validates a session token and extracts its claims.
func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return nil, ErrMissingToken
	}

	now := s.timeFunc()

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time {
			return now
		}),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwtCustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("session token validation failed: token expired")
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			log.Debug("session token validation failed: token not yet valid")
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("session token validation failed",
				slog.String("error", err.Error()),
				slog.String("error_type", fmt.Sprintf("%T", err)))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid || claims.Address == "" || claims.ID == "" || claims.IssuedAt == nil {
		log.Debug("session token validation failed: invalid claims")
		return nil, ErrInvalidToken
	}

	return &Claims{
		Address:    claims.Address,
		Verified:   claims.Verified,
		Confidence: claims.Confidence,
		IssuedAt:   claims.IssuedAt.Time.UTC(),
		ExpiresAt:  claims.ExpiresAt.Time.UTC(),
		ID:         claims.ID,
	}, nil
}
