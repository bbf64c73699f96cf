// Package banking implements account onboarding, payments and read-only
// account queries. Every secret-bearing step is delegated to the security
// service; this package only ever holds the sealed PIN.
package banking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/service"
	"github.com/phrazzld/vaultcore/internal/store"
)

const (
	// accountDigits is the number of random digits after the branch code.
	accountDigits = 12

	// maxNumberAttempts bounds account number regeneration on collision.
	maxNumberAttempts = 5

	// PaymentPurpose is the purpose reference tokens are minted for.
	PaymentPurpose = "PAYMENT"

	// DefaultReferenceTTLMinutes is the lifetime of a payment reference token.
	DefaultReferenceTTLMinutes = 15

	// DefaultHistoryLimit is used when ListTransactions is called with no limit.
	DefaultHistoryLimit = 50

	maxDescriptionLength = 140
)

var accountSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(accountDigits), nil)

// Service is the business logic contract.
type Service interface {
	// CreateAccount verifies identity, seals the PIN and persists a new ACTIVE
	// account. A failed identity check is not an error: it returns a
	// REJECTED result and persists nothing.
	CreateAccount(ctx context.Context, req CreateAccountRequest) (CreateAccountResult, error)

	// ProcessPayment validates the source PIN and applies the transfer
	// atomically. Rejections return both a populated result and a typed error.
	ProcessPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error)

	// GetAccountDetails returns the read-only projection of an account.
	GetAccountDetails(ctx context.Context, number string) (domain.AccountDetails, error)

	// ListTransactions returns up to limit transactions for an account, newest
	// first.
	ListTransactions(ctx context.Context, number string, limit int) ([]domain.Transaction, error)
}

// Config holds the tunables of the banking service.
type Config struct {
	BranchCode          string
	PINKeyID            string
	ReferenceTTLMinutes int
}

var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	accounts store.AccountStore
	security security.Service
	cfg      Config
	rand     io.Reader
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService creates a banking Service. m may be nil.
func NewService(
	cfg Config,
	accounts store.AccountStore,
	sec security.Service,
	log *slog.Logger,
	m *metrics.Metrics,
) (Service, error) {
	if accounts == nil {
		return nil, errors.New("account store cannot be nil")
	}
	if sec == nil {
		return nil, errors.New("security service cannot be nil")
	}
	if cfg.PINKeyID == "" {
		return nil, errors.New("pin key id is required")
	}
	if cfg.ReferenceTTLMinutes <= 0 {
		cfg.ReferenceTTLMinutes = DefaultReferenceTTLMinutes
	}
	if log == nil {
		log = slog.Default()
	}

	return &serviceImpl{
		accounts: accounts,
		security: sec,
		cfg:      cfg,
		rand:     rand.Reader,
		now:      time.Now,
		logger:   log.With(slog.String("component", "banking_service")),
		metrics:  m,
	}, nil
}

// CreateAccount implements Service.
func (s *serviceImpl) CreateAccount(ctx context.Context, req CreateAccountRequest) (CreateAccountResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateCreate(req); err != nil {
		s.metrics.IncAccountCreated("invalid")
		return CreateAccountResult{}, err
	}

	identity, err := s.security.VerifyIdentity(ctx, security.IdentityRequest{
		PANNumber: req.PANNumber,
		IDNumber:  req.IDNumber,
	})
	if err != nil {
		s.metrics.IncAccountCreated("error")
		return CreateAccountResult{}, security.AsDependencyError("VerifyIdentity", err)
	}
	if !identity.Verified {
		log.Info("account rejected by identity verification", slog.String("reason", identity.Message))
		s.metrics.IncAccountCreated("rejected")
		return CreateAccountResult{
			Status:  domain.StatusRejected,
			Message: "Identity verification failed: " + identity.Message,
		}, nil
	}

	sealed, err := s.security.EncryptData(ctx, []byte(req.PIN), s.cfg.PINKeyID)
	if err != nil {
		s.metrics.IncAccountCreated("error")
		return CreateAccountResult{}, security.AsDependencyError("EncryptData", err)
	}

	account := &domain.Account{
		HolderName:   strings.TrimSpace(req.HolderName),
		DateOfBirth:  req.DateOfBirth,
		Contact:      req.Contact,
		Type:         req.AccountType,
		Balance:      req.InitialDeposit.Round(domain.MoneyScale),
		EncryptedPIN: sealed,
		Status:       domain.StatusActive,
		KYC: domain.KYC{
			PANNumber: strings.ToUpper(strings.TrimSpace(req.PANNumber)),
			IDNumber:  req.IDNumber,
		},
		CreatedAt: s.now().UTC(),
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.newAccountNumber()
		if err != nil {
			s.metrics.IncAccountCreated("error")
			return CreateAccountResult{}, service.NewServiceError("banking", "create_account", err)
		}
		account.Number = number

		err = s.accounts.Create(ctx, account)
		if err == nil {
			log.Info("account created",
				slog.String("account_number", number),
				slog.String("account_type", string(account.Type)))
			s.metrics.IncAccountCreated("active")
			return CreateAccountResult{
				AccountNumber: number,
				Status:        domain.StatusActive,
				Message:       "Account created successfully",
			}, nil
		}
		if !errors.Is(err, store.ErrAccountExists) {
			s.metrics.IncAccountCreated("error")
			if errors.Is(err, domain.ErrValidation) {
				return CreateAccountResult{}, err
			}
			return CreateAccountResult{}, service.NewServiceError("banking", "create_account", err)
		}
		log.Warn("account number collision, regenerating", slog.Int("attempt", attempt))
	}

	s.metrics.IncAccountCreated("error")
	return CreateAccountResult{}, service.NewServiceError("banking", "create_account", ErrAccountNumberExhausted)
}

// newAccountNumber returns the branch code followed by random digits.
func (s *serviceImpl) newAccountNumber() (string, error) {
	n, err := rand.Int(s.rand, accountSpace)
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	digits := n.String()
	return s.cfg.BranchCode + strings.Repeat("0", accountDigits-len(digits)) + digits, nil
}

// ProcessPayment implements Service.
func (s *serviceImpl) ProcessPayment(ctx context.Context, req PaymentRequest) (res PaymentResult, err error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("from_account", req.FromAccount),
		slog.String("to_account", req.ToAccount),
	)
	defer func() {
		switch {
		case res.Status != "":
			s.metrics.IncPayment(strings.ToLower(string(res.Status)))
		case err != nil:
			s.metrics.IncPayment("error")
		}
	}()

	if err := validatePayment(req); err != nil {
		return PaymentResult{}, err
	}

	from, err := s.accounts.Get(ctx, req.FromAccount)
	if err != nil {
		return PaymentResult{}, err
	}
	if from.Status == domain.StatusLocked {
		log.Info("payment rejected: source account locked")
		return lockedResult(), ErrAccountLocked
	}

	pin, err := s.security.ValidatePIN(ctx, security.PINRequest{
		AccountID:    from.Number,
		PIN:          req.PIN,
		Operation:    security.OperationPayment,
		EncryptedPIN: from.EncryptedPIN,
	})
	if err != nil {
		return PaymentResult{}, security.AsDependencyError("ValidatePIN", err)
	}

	if pin.AccountLocked {
		if err := s.accounts.SetStatus(ctx, from.Number, domain.StatusLocked); err != nil {
			log.Error("failed to record account lock", slog.String("error", err.Error()))
		}
		log.Warn("account locked after failed pin attempts")
		return lockedResult(), ErrAccountLocked
	}
	if !pin.Valid {
		remaining := pin.AttemptsRemaining
		return PaymentResult{
			Status:            domain.TransactionFailed,
			Message:           fmt.Sprintf("Invalid PIN. %d attempt(s) remaining", remaining),
			AttemptsRemaining: &remaining,
		}, ErrInvalidPIN
	}

	to, err := s.accounts.Get(ctx, req.ToAccount)
	if err != nil {
		return PaymentResult{}, err
	}
	if to.Status != domain.StatusActive {
		log.Info("payment rejected: destination account not active")
		return destinationInactiveResult(), domain.ErrDestinationInactive
	}

	if req.Amount.GreaterThan(from.Balance) {
		return insufficientResult(), domain.ErrInsufficientFunds
	}

	ref, err := s.security.GenerateSecureToken(ctx, security.TokenRequest{
		AccountID:     from.Number,
		Purpose:       PaymentPurpose,
		ExpiryMinutes: s.cfg.ReferenceTTLMinutes,
	})
	if err != nil {
		return PaymentResult{}, security.AsDependencyError("GenerateSecureToken", err)
	}

	txID := uuid.New()
	balances, err := s.accounts.Transfer(ctx, domain.Transfer{
		TransactionID:   txID,
		FromAccount:     req.FromAccount,
		ToAccount:       req.ToAccount,
		Amount:          req.Amount,
		Description:     req.Description,
		ReferenceNumber: ref.Value,
		At:              s.now().UTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInsufficientFunds):
		return insufficientResult(), err
	case errors.Is(err, domain.ErrDestinationInactive):
		return destinationInactiveResult(), err
	case errors.Is(err, domain.ErrLocked):
		return lockedResult(), ErrAccountLocked
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		return PaymentResult{}, err
	default:
		log.Error("transfer failed", slog.String("error", err.Error()))
		return PaymentResult{}, service.NewServiceError("banking", "process_payment", err)
	}

	log.Info("payment processed",
		slog.String("transaction_id", txID.String()),
		slog.String("amount", req.Amount.StringFixed(domain.MoneyScale)))

	return PaymentResult{
		TransactionID:   txID.String(),
		Status:          domain.TransactionSuccess,
		FromBalance:     balances.FromBalance.StringFixed(domain.MoneyScale),
		ToBalance:       balances.ToBalance.StringFixed(domain.MoneyScale),
		ReferenceNumber: ref.Value,
		Message:         "Payment successful",
	}, nil
}

func lockedResult() PaymentResult {
	return PaymentResult{
		Status:  domain.TransactionLocked,
		Message: "Account locked due to too many failed PIN attempts. Contact your branch to unlock.",
	}
}

func destinationInactiveResult() PaymentResult {
	return PaymentResult{
		Status:  domain.TransactionFailed,
		Message: "Destination account is not active",
	}
}

func insufficientResult() PaymentResult {
	return PaymentResult{
		Status:  domain.TransactionFailed,
		Message: "Insufficient balance",
	}
}

// GetAccountDetails implements Service.
func (s *serviceImpl) GetAccountDetails(ctx context.Context, number string) (domain.AccountDetails, error) {
	if err := domain.ValidateAccountNumber(number); err != nil {
		return domain.AccountDetails{}, err
	}
	account, err := s.accounts.Get(ctx, number)
	if err != nil {
		return domain.AccountDetails{}, err
	}
	return account.Details(), nil
}

// ListTransactions implements Service.
func (s *serviceImpl) ListTransactions(ctx context.Context, number string, limit int) ([]domain.Transaction, error) {
	if err := domain.ValidateAccountNumber(number); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, domain.NewValidationError("limit", "cannot be negative", nil)
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	return s.accounts.ListTransactions(ctx, number, limit)
}

func validateCreate(req CreateAccountRequest) error {
	if strings.TrimSpace(req.HolderName) == "" {
		return domain.NewValidationError("holder_name", "is required", nil)
	}
	if _, err := time.Parse(time.DateOnly, req.DateOfBirth); err != nil {
		return domain.NewValidationError("date_of_birth", "must be YYYY-MM-DD", err)
	}
	if strings.TrimSpace(req.Contact) == "" {
		return domain.NewValidationError("contact", "is required", nil)
	}
	if strings.TrimSpace(req.PANNumber) == "" {
		return domain.NewValidationError("pan_number", "is required", nil)
	}
	if strings.TrimSpace(req.IDNumber) == "" {
		return domain.NewValidationError("id_number", "is required", nil)
	}
	if req.AccountType != domain.AccountTypeSavings && req.AccountType != domain.AccountTypeCurrent {
		return domain.NewValidationError("account_type", "must be SAVINGS or CURRENT", nil)
	}
	if req.InitialDeposit.IsNegative() {
		return domain.NewValidationError("initial_deposit", "cannot be negative", nil)
	}
	if !req.InitialDeposit.Equal(req.InitialDeposit.Round(domain.MoneyScale)) {
		return domain.NewValidationError("initial_deposit", "must have at most 2 decimal places", nil)
	}
	return domain.ValidatePINFormat(req.PIN)
}

func validatePayment(req PaymentRequest) error {
	if err := domain.ValidateAccountNumber(req.FromAccount); err != nil {
		return domain.NewValidationError("from_account", "must be 6-20 digits", nil)
	}
	if err := domain.ValidateAccountNumber(req.ToAccount); err != nil {
		return domain.NewValidationError("to_account", "must be 6-20 digits", nil)
	}
	if req.FromAccount == req.ToAccount {
		return domain.NewValidationError("to_account", "must differ from from_account", nil)
	}
	if !req.Amount.IsPositive() {
		return domain.NewValidationError("amount", "must be positive", nil)
	}
	if !req.Amount.Equal(req.Amount.Round(domain.MoneyScale)) {
		return domain.NewValidationError("amount", "must have at most 2 decimal places", nil)
	}
	if len(req.Description) > maxDescriptionLength {
		return domain.NewValidationError("description", "is too long", nil)
	}
	return domain.ValidatePINFormat(req.PIN)
}
