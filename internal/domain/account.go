package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

// Account states. REJECTED is only ever returned to callers and is never
// persisted; ACTIVE -> LOCKED is one-way inside this service.
const (
	StatusActive   AccountStatus = "ACTIVE"
	StatusLocked   AccountStatus = "LOCKED"
	StatusRejected AccountStatus = "REJECTED"
)

// AccountType distinguishes the product an account was opened under.
type AccountType string

// Supported account types.
const (
	AccountTypeSavings AccountType = "SAVINGS"
	AccountTypeCurrent AccountType = "CURRENT"
)

// MoneyScale is the number of fractional digits kept for currency amounts.
const MoneyScale = 2

var (
	pinPattern     = regexp.MustCompile(`^[0-9]{4,6}$`)
	accountPattern = regexp.MustCompile(`^[0-9]{6,20}$`)
)

// KYC holds the identity document references an account was verified with.
type KYC struct {
	PANNumber string `json:"pan_number"`
	IDNumber  string `json:"id_number"`
}

// Account is a ledger account. Balance mutations only happen through the
// account store's atomic transfer.
type Account struct {
	Number            string          `json:"account_number"`
	HolderName        string          `json:"holder_name"`
	DateOfBirth       string          `json:"date_of_birth"`
	Contact           string          `json:"contact"`
	Type              AccountType     `json:"account_type"`
	Balance           decimal.Decimal `json:"balance"`
	EncryptedPIN      string          `json:"-"`
	Status            AccountStatus   `json:"status"`
	KYC               KYC             `json:"kyc"`
	CreatedAt         time.Time       `json:"created_at"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty"`
	TransactionCount  int64           `json:"transaction_count"`
}

// AccountDetails is the read-only projection returned to clients. It never
// carries the encrypted PIN.
type AccountDetails struct {
	AccountNumber     string        `json:"account_number"`
	HolderName        string        `json:"holder_name"`
	AccountType       AccountType   `json:"account_type"`
	Balance           string        `json:"balance"`
	Status            AccountStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	LastTransactionAt *time.Time    `json:"last_transaction_at,omitempty"`
	TransactionCount  int64         `json:"transaction_count"`
}

// Details projects the account for read-only use.
func (a *Account) Details() AccountDetails {
	return AccountDetails{
		AccountNumber:     a.Number,
		HolderName:        a.HolderName,
		AccountType:       a.Type,
		Balance:           a.Balance.StringFixed(MoneyScale),
		Status:            a.Status,
		CreatedAt:         a.CreatedAt,
		LastTransactionAt: a.LastTransactionAt,
		TransactionCount:  a.TransactionCount,
	}
}

// Clone returns a deep copy so stores can hand out snapshots.
func (a *Account) Clone() *Account {
	cp := *a
	if a.LastTransactionAt != nil {
		t := *a.LastTransactionAt
		cp.LastTransactionAt = &t
	}
	return &cp
}

// Validate checks the fields required of a persisted account.
func (a *Account) Validate() error {
	if !accountPattern.MatchString(a.Number) {
		return NewValidationError("account_number", "must be 6-20 digits", nil)
	}
	if strings.TrimSpace(a.HolderName) == "" {
		return NewValidationError("holder_name", "is required", nil)
	}
	if a.Type != AccountTypeSavings && a.Type != AccountTypeCurrent {
		return NewValidationError("account_type", "must be SAVINGS or CURRENT", nil)
	}
	if a.Balance.IsNegative() {
		return NewValidationError("balance", "cannot be negative", nil)
	}
	if a.EncryptedPIN == "" {
		return NewValidationError("pin", "must be encrypted before storage", nil)
	}
	switch a.Status {
	case StatusActive, StatusLocked:
	default:
		return NewValidationError("status", "must be ACTIVE or LOCKED", nil)
	}
	return nil
}

// ValidatePINFormat checks that a PIN is 4 to 6 digits.
func ValidatePINFormat(pin string) error {
	if !pinPattern.MatchString(pin) {
		return NewValidationError("pin", "must be 4-6 digits", nil)
	}
	return nil
}

// ValidateAccountNumber checks the shape of an account number.
func ValidateAccountNumber(number string) error {
	if !accountPattern.MatchString(number) {
		return NewValidationError("account_number", "must be 6-20 digits", nil)
	}
	return nil
}

// ParseAmount parses a currency amount and rejects values with more than two
// fractional digits.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, NewValidationError(field, "must be a decimal amount", err)
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return decimal.Zero, NewValidationError(field, "must have at most 2 decimal places", nil)
	}
	return amount, nil
}
