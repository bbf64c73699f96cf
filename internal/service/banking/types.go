package banking

import (
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest carries everything needed to open an account.
type CreateAccountRequest struct {
	HolderName     string
	DateOfBirth    string
	Contact        string
	PANNumber      string
	IDNumber       string
	AccountType    domain.AccountType
	InitialDeposit decimal.Decimal
	PIN            string
}

// CreateAccountResult reports the outcome of CreateAccount. Status is
// ACTIVE for a new account and REJECTED when identity verification failed,
// in which case AccountNumber is empty.
type CreateAccountResult struct {
	AccountNumber string               `json:"account_number,omitempty"`
	Status        domain.AccountStatus `json:"status"`
	Message       string               `json:"message"`
}

// PaymentRequest moves Amount from FromAccount to ToAccount, authorized by
// the source account's PIN.
type PaymentRequest struct {
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal
	PIN         string
	Description string
}

// PaymentResult reports the outcome of ProcessPayment. Balances are fixed
// two-decimal strings and are only set on success.
type PaymentResult struct {
	TransactionID     string                   `json:"transaction_id,omitempty"`
	Status            domain.TransactionStatus `json:"status"`
	FromBalance       string                   `json:"from_balance,omitempty"`
	ToBalance         string                   `json:"to_balance,omitempty"`
	ReferenceNumber   string                   `json:"reference_number,omitempty"`
	Message           string                   `json:"message"`
	AttemptsRemaining *int                     `json:"attempts_remaining,omitempty"`
}
