//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/platform/postgres"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/phrazzld/vaultcore/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *postgres.PostgresAccountStore, number, balance string) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &domain.Account{
		Number:       number,
		HolderName:   "Holder " + number,
		DateOfBirth:  "1990-01-01",
		Contact:      number + "@example.com",
		Type:         domain.AccountTypeSavings,
		Balance:      decimal.RequireFromString(balance),
		EncryptedPIN: "sealed",
		Status:       domain.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}))
}

func TestPostgresAccountStore_Integration(t *testing.T) {
	db := testdb.OpenTestDatabase(t)
	s := postgres.NewPostgresAccountStore(db, nil)
	ctx := context.Background()

	seedAccount(t, s, "100100000001", "1000.00")
	seedAccount(t, s, "100100000002", "0.00")

	err := s.Create(ctx, &domain.Account{
		Number:       "100100000001",
		HolderName:   "Dup",
		Type:         domain.AccountTypeCurrent,
		EncryptedPIN: "sealed",
		Status:       domain.StatusActive,
		CreatedAt:    time.Now().UTC(),
	})
	assert.True(t, errors.Is(err, store.ErrAccountExists))

	// 20 concurrent transfers of 100 from 1000: exactly 10 succeed.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transfer(ctx, domain.Transfer{
				TransactionID:   uuid.New(),
				FromAccount:     "100100000001",
				ToAccount:       "100100000002",
				Amount:          decimal.NewFromInt(100),
				ReferenceNumber: "REF-INTEGRATIONTEST01",
				At:              time.Now().UTC(),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, succeeded)

	from, err := s.Get(ctx, "100100000001")
	require.NoError(t, err)
	to, err := s.Get(ctx, "100100000002")
	require.NoError(t, err)
	assert.True(t, from.Balance.IsZero())
	assert.True(t, to.Balance.Equal(decimal.NewFromInt(1000)))
	assert.EqualValues(t, 10, from.TransactionCount)

	txs, err := s.ListTransactions(ctx, "100100000002", 50)
	require.NoError(t, err)
	assert.Len(t, txs, 10)

	require.NoError(t, s.SetStatus(ctx, "100100000001", domain.StatusLocked))
	_, err = s.Transfer(ctx, domain.Transfer{
		TransactionID:   uuid.New(),
		FromAccount:     "100100000001",
		ToAccount:       "100100000002",
		Amount:          decimal.NewFromInt(1),
		ReferenceNumber: "REF-INTEGRATIONTEST02",
		At:              time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domain.ErrLocked)
}
