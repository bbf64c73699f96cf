package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAccount() *Account {
	return &Account{
		Number:       "100200300400",
		HolderName:   "Asha Rao",
		Type:         AccountTypeSavings,
		Balance:      decimal.RequireFromString("5000"),
		EncryptedPIN: "blob",
		Status:       StatusActive,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAccountValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(a *Account)
		wantErr bool
	}{
		{name: "valid", mutate: func(a *Account) {}},
		{name: "short number", mutate: func(a *Account) { a.Number = "12" }, wantErr: true},
		{name: "blank holder", mutate: func(a *Account) { a.HolderName = "  " }, wantErr: true},
		{name: "unknown type", mutate: func(a *Account) { a.Type = "GOLD" }, wantErr: true},
		{name: "negative balance", mutate: func(a *Account) { a.Balance = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "plaintext pin", mutate: func(a *Account) { a.EncryptedPIN = "" }, wantErr: true},
		{name: "rejected status", mutate: func(a *Account) { a.Status = StatusRejected }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := validAccount()
			tt.mutate(a)
			err := a.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAccountDetailsHidesPIN(t *testing.T) {
	t.Parallel()

	a := validAccount()
	details := a.Details()

	assert.Equal(t, "5000.00", details.Balance)
	assert.Equal(t, a.Number, details.AccountNumber)
	assert.Equal(t, StatusActive, details.Status)
}

func TestAccountCloneIsDeep(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := validAccount()
	a.LastTransactionAt = &now

	cp := a.Clone()
	later := now.Add(time.Hour)
	*cp.LastTransactionAt = later

	assert.Equal(t, now, *a.LastTransactionAt)
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	amount, err := ParseAmount("amount", "1000.50")
	require.NoError(t, err)
	assert.Equal(t, "1000.50", amount.StringFixed(2))

	_, err = ParseAmount("amount", "10.001")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseAmount("amount", "ten")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidatePINFormat(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePINFormat("1234"))
	assert.NoError(t, ValidatePINFormat("123456"))
	assert.ErrorIs(t, ValidatePINFormat("12a4"), ErrValidation)
	assert.ErrorIs(t, ValidatePINFormat("123"), ErrValidation)
}
