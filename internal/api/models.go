package api

import (
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/service/banking"
)

// CreateAccountRequest defines the payload for the account opening endpoint.
// InitialDeposit is a decimal string so no precision is lost in transit.
type CreateAccountRequest struct {
	HolderName     string `json:"holder_name"     validate:"required,max=120"`
	DateOfBirth    string `json:"date_of_birth"   validate:"required,datetime=2006-01-02"`
	Contact        string `json:"contact"         validate:"required,max=120"`
	PANNumber      string `json:"pan_number"      validate:"required,len=10,alphanum"`
	IDNumber       string `json:"id_number"       validate:"required,len=12,numeric"`
	AccountType    string `json:"account_type"    validate:"required,oneof=SAVINGS CURRENT"`
	InitialDeposit string `json:"initial_deposit" validate:"required"`
	PIN            string `json:"pin"             validate:"required,min=4,max=6,numeric"`
}

// ToService converts the payload into a service request.
func (r CreateAccountRequest) ToService() (banking.CreateAccountRequest, error) {
	deposit, err := domain.ParseAmount("initial_deposit", r.InitialDeposit)
	if err != nil {
		return banking.CreateAccountRequest{}, err
	}
	return banking.CreateAccountRequest{
		HolderName:     r.HolderName,
		DateOfBirth:    r.DateOfBirth,
		Contact:        r.Contact,
		PANNumber:      r.PANNumber,
		IDNumber:       r.IDNumber,
		AccountType:    domain.AccountType(r.AccountType),
		InitialDeposit: deposit,
		PIN:            r.PIN,
	}, nil
}

// CreateAccountResponse is returned by POST /accounts.
type CreateAccountResponse struct {
	Status        domain.AccountStatus `json:"status"`
	Message       string               `json:"message"`
	AccountNumber string               `json:"account_number,omitempty"`
}

// AccountResponse is returned by GET /accounts/{number}.
type AccountResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Account domain.AccountDetails `json:"account"`
}

// TransactionResponse is one entry of an account's history.
type TransactionResponse struct {
	TransactionID   string    `json:"transaction_id"`
	FromAccount     string    `json:"from_account"`
	ToAccount       string    `json:"to_account"`
	Amount          string    `json:"amount"`
	Description     string    `json:"description,omitempty"`
	ReferenceNumber string    `json:"reference_number"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionListResponse is returned by GET /accounts/{number}/transactions.
type TransactionListResponse struct {
	AccountNumber string                `json:"account_number"`
	Transactions  []TransactionResponse `json:"transactions"`
}

func transactionToResponse(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:   tx.ID.String(),
		FromAccount:     tx.FromAccount,
		ToAccount:       tx.ToAccount,
		Amount:          tx.Amount.StringFixed(domain.MoneyScale),
		Description:     tx.Description,
		ReferenceNumber: tx.ReferenceNumber,
		Status:          string(tx.Status),
		CreatedAt:       tx.CreatedAt,
	}
}

// PaymentRequest defines the payload for the payment endpoint.
type PaymentRequest struct {
	FromAccount string `json:"from_account" validate:"required,min=6,max=20,numeric"`
	ToAccount   string `json:"to_account"   validate:"required,min=6,max=20,numeric,nefield=FromAccount"`
	Amount      string `json:"amount"       validate:"required"`
	PIN         string `json:"pin"          validate:"required,min=4,max=6,numeric"`
	Description string `json:"description"  validate:"max=140"`
}

// ToService converts the payload into a service request.
func (r PaymentRequest) ToService() (banking.PaymentRequest, error) {
	amount, err := domain.ParseAmount("amount", r.Amount)
	if err != nil {
		return banking.PaymentRequest{}, err
	}
	return banking.PaymentRequest{
		FromAccount: r.FromAccount,
		ToAccount:   r.ToAccount,
		Amount:      amount,
		PIN:         r.PIN,
		Description: r.Description,
	}, nil
}

// VerifyRequest defines the payload for the wallet signature endpoint.
type VerifyRequest struct {
	Address   string `json:"address"   validate:"required,min=25,max=90,alphanum"`
	Signature string `json:"signature" validate:"required"`
	Nonce     string `json:"nonce"     validate:"required,len=64,hexadecimal"`
}

// NonceResponse is returned by GET /auth/nonce.
type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse is returned by GET /auth/session.
type SessionResponse struct {
	Address    string    `json:"address"`
	Verified   bool      `json:"verified"`
	Confidence float64   `json:"confidence"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
