package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the outcome recorded for a payment.
type TransactionStatus string

// Payment outcomes reported to clients.
const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
	TransactionLocked  TransactionStatus = "LOCKED"
)

// Transaction is a committed transfer between two accounts.
type Transaction struct {
	ID              uuid.UUID         `json:"transaction_id"`
	FromAccount     string            `json:"from_account"`
	ToAccount       string            `json:"to_account"`
	Amount          decimal.Decimal   `json:"amount"`
	Description     string            `json:"description,omitempty"`
	ReferenceNumber string            `json:"reference_number"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Transfer describes a debit/credit pair the ledger must apply atomically.
type Transfer struct {
	TransactionID   uuid.UUID
	FromAccount     string
	ToAccount       string
	Amount          decimal.Decimal
	Description     string
	ReferenceNumber string
	At              time.Time
}

// TransferResult carries post-transfer balances.
type TransferResult struct {
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}
