package security

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/keylock"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
)

// DefaultMaxPINAttempts is the number of consecutive failures that locks an
// account.
const DefaultMaxPINAttempts = 3

// Service is the security contract shared by the in-process implementation
// and the RPC client used by the business process.
type Service interface {
	// VerifyIdentity checks the PAN and national id. Malformed documents give
	// Verified=false rather than an error.
	VerifyIdentity(ctx context.Context, req IdentityRequest) (IdentityResult, error)

	// ValidatePIN checks a PIN against the account's sealed PIN and updates the
	// attempt counter. Calls for the same account are serialized.
	ValidatePIN(ctx context.Context, req PINRequest) (PINResult, error)

	// EncryptData seals plaintext under keyID.
	EncryptData(ctx context.Context, plaintext []byte, keyID string) (string, error)

	// DecryptData opens a ciphertext produced by EncryptData with the same keyID.
	DecryptData(ctx context.Context, ciphertext string, keyID string) ([]byte, error)

	// VerifySignature checks a wallet signed-message proof.
	VerifySignature(ctx context.Context, req SignatureRequest) (SignatureResult, error)

	// GenerateSecureToken mints a reference token bound to an account and purpose.
	GenerateSecureToken(ctx context.Context, req TokenRequest) (ReferenceToken, error)

	// VerifySecureToken checks a reference token's integrity, binding and expiry.
	VerifySecureToken(ctx context.Context, token, accountID, purpose string) error
}

// Config holds the tunables of the in-process service.
type Config struct {
	PINKeyID       string
	MaxPINAttempts int
}

var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	keyring     *Keyring
	signatures  *SignatureVerifier
	tokens      *TokenIssuer
	attempts    AttemptStore
	pinLocks    *keylock.Locker
	pinKeyID    string
	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewService wires the security primitives into a Service. m may be nil.
func NewService(
	cfg Config,
	keyring *Keyring,
	signatures *SignatureVerifier,
	tokens *TokenIssuer,
	attempts AttemptStore,
	log *slog.Logger,
	m *metrics.Metrics,
) (Service, error) {
	if keyring == nil || signatures == nil || tokens == nil || attempts == nil {
		return nil, fmt.Errorf("%w: security dependencies cannot be nil", ErrInvalidRequest)
	}
	if !keyring.Has(cfg.PINKeyID) {
		return nil, fmt.Errorf("%w: pin key %q not configured", ErrUnknownKey, cfg.PINKeyID)
	}
	if cfg.MaxPINAttempts <= 0 {
		cfg.MaxPINAttempts = DefaultMaxPINAttempts
	}
	if log == nil {
		log = slog.Default()
	}

	return &serviceImpl{
		keyring:     keyring,
		signatures:  signatures,
		tokens:      tokens,
		attempts:    attempts,
		pinLocks:    keylock.New(),
		pinKeyID:    cfg.PINKeyID,
		maxAttempts: cfg.MaxPINAttempts,
		logger:      log.With(slog.String("component", "security_service")),
		metrics:     m,
	}, nil
}

func (s *serviceImpl) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = Code(err)
	}
	s.metrics.ObserveSecurity(op, result, time.Since(start))
}

func (s *serviceImpl) VerifyIdentity(ctx context.Context, req IdentityRequest) (IdentityResult, error) {
	start := time.Now()
	res := verifyIdentity(req)
	s.observe("VerifyIdentity", start, nil)

	logger.FromContextOrDefault(ctx, s.logger).Debug("identity checked",
		slog.Bool("verified", res.Verified),
		slog.Float64("confidence", res.Confidence))
	return res, nil
}

func (s *serviceImpl) ValidatePIN(ctx context.Context, req PINRequest) (res PINResult, err error) {
	start := time.Now()
	defer func() { s.observe("ValidatePIN", start, err) }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	if req.AccountID == "" || req.EncryptedPIN == "" {
		return PINResult{}, fmt.Errorf("%w: account id and sealed pin are required", ErrInvalidRequest)
	}
	switch req.Operation {
	case OperationPayment, OperationEnquiry:
	default:
		return PINResult{}, fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, req.Operation)
	}

	unlock := s.pinLocks.Lock(req.AccountID)
	defer unlock()

	// The caller may have given up while we waited for the lock.
	if err := ctx.Err(); err != nil {
		return PINResult{}, err
	}

	state, err := s.attempts.Get(ctx, req.AccountID)
	if err != nil {
		return PINResult{}, fmt.Errorf("read pin attempts: %w", err)
	}
	if state.Locked {
		log.Warn("pin check on locked account", slog.String("account_number", req.AccountID))
		return PINResult{AccountLocked: true}, nil
	}

	stored, err := s.keyring.Decrypt(req.EncryptedPIN, s.pinKeyID)
	if err != nil {
		log.Error("failed to open sealed pin",
			slog.String("account_number", req.AccountID),
			slog.String("code", Code(err)))
		return PINResult{}, err
	}

	if subtle.ConstantTimeCompare(stored, []byte(req.PIN)) == 1 {
		if err := s.attempts.Reset(ctx, req.AccountID); err != nil {
			return PINResult{}, fmt.Errorf("reset pin attempts: %w", err)
		}
		return PINResult{Valid: true, AttemptsRemaining: s.maxAttempts}, nil
	}

	state, err = s.attempts.RecordFailure(ctx, req.AccountID, s.maxAttempts)
	if err != nil {
		return PINResult{}, fmt.Errorf("record pin failure: %w", err)
	}

	remaining := s.maxAttempts - state.Failures
	if remaining < 0 || state.Locked {
		remaining = 0
	}
	if state.Locked {
		s.metrics.IncPINLockout()
		log.Warn("account locked after failed pin attempts",
			slog.String("account_number", req.AccountID),
			slog.Int("failures", state.Failures))
	} else {
		log.Info("pin check failed",
			slog.String("account_number", req.AccountID),
			slog.Int("attempts_remaining", remaining))
	}

	return PINResult{AttemptsRemaining: remaining, AccountLocked: state.Locked}, nil
}

func (s *serviceImpl) EncryptData(_ context.Context, plaintext []byte, keyID string) (ct string, err error) {
	start := time.Now()
	defer func() { s.observe("EncryptData", start, err) }()
	return s.keyring.Encrypt(plaintext, keyID)
}

func (s *serviceImpl) DecryptData(_ context.Context, ciphertext string, keyID string) (pt []byte, err error) {
	start := time.Now()
	defer func() { s.observe("DecryptData", start, err) }()
	return s.keyring.Decrypt(ciphertext, keyID)
}

func (s *serviceImpl) VerifySignature(ctx context.Context, req SignatureRequest) (res SignatureResult, err error) {
	start := time.Now()
	defer func() { s.observe("VerifySignature", start, err) }()

	res, err = s.signatures.Verify(req)
	if err != nil {
		return SignatureResult{}, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Debug("wallet signature checked",
		slog.String("address", req.Address),
		slog.Bool("verified", res.Verified))
	return res, nil
}

func (s *serviceImpl) GenerateSecureToken(_ context.Context, req TokenRequest) (tok ReferenceToken, err error) {
	start := time.Now()
	defer func() { s.observe("GenerateSecureToken", start, err) }()
	return s.tokens.Generate(req)
}

func (s *serviceImpl) VerifySecureToken(_ context.Context, token, accountID, purpose string) (err error) {
	start := time.Now()
	defer func() { s.observe("VerifySecureToken", start, err) }()
	return s.tokens.Verify(token, accountID, purpose)
}
