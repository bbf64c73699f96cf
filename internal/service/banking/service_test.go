package banking

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/security"
	"github.com/phrazzld/vaultcore/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goodPAN = "ABCDE1234F"
	goodID  = "234123412346"
	goodPIN = "1234"
)

// countingStore records Create calls on top of the memory ledger.
type countingStore struct {
	*memory.AccountStore
	creates atomic.Int32
}

func (c *countingStore) Create(ctx context.Context, a *domain.Account) error {
	c.creates.Add(1)
	return c.AccountStore.Create(ctx, a)
}

// stubSecurity overrides selected security operations.
type stubSecurity struct {
	security.Service
	validatePIN func(context.Context, security.PINRequest) (security.PINResult, error)
	token       func(context.Context, security.TokenRequest) (security.ReferenceToken, error)
}

func (s *stubSecurity) ValidatePIN(ctx context.Context, req security.PINRequest) (security.PINResult, error) {
	if s.validatePIN != nil {
		return s.validatePIN(ctx, req)
	}
	return s.Service.ValidatePIN(ctx, req)
}

func (s *stubSecurity) GenerateSecureToken(ctx context.Context, req security.TokenRequest) (security.ReferenceToken, error) {
	if s.token != nil {
		return s.token(ctx, req)
	}
	return s.Service.GenerateSecureToken(ctx, req)
}

func newSecurity(t *testing.T) security.Service {
	t.Helper()

	keyring, err := security.NewKeyring(bytes.Repeat([]byte{1}, 32), []string{"pin-v1"}, nil)
	require.NoError(t, err)
	tokens, err := security.NewTokenIssuer(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	svc, err := security.NewService(
		security.Config{PINKeyID: "pin-v1", MaxPINAttempts: 3},
		keyring,
		security.NewSignatureVerifier(&chaincfg.MainNetParams),
		tokens,
		security.NewMemoryAttemptStore(),
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

func newTestService(t *testing.T, sec security.Service) (*serviceImpl, *countingStore) {
	t.Helper()
	if sec == nil {
		sec = newSecurity(t)
	}
	accounts := &countingStore{AccountStore: memory.NewAccountStore()}
	svc, err := NewService(Config{BranchCode: "1001", PINKeyID: "pin-v1"}, accounts, sec, nil, nil)
	require.NoError(t, err)
	return svc.(*serviceImpl), accounts
}

func createRequest(deposit string) CreateAccountRequest {
	return CreateAccountRequest{
		HolderName:     "Asha Rao",
		DateOfBirth:    "1990-04-12",
		Contact:        "+91-9000000000",
		PANNumber:      goodPAN,
		IDNumber:       goodID,
		AccountType:    domain.AccountTypeSavings,
		InitialDeposit: decimal.RequireFromString(deposit),
		PIN:            goodPIN,
	}
}

func mustCreate(t *testing.T, svc Service, deposit string) string {
	t.Helper()
	res, err := svc.CreateAccount(context.Background(), createRequest(deposit))
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, res.Status)
	return res.AccountNumber
}

func payment(from, to, amount, pin string) PaymentRequest {
	return PaymentRequest{
		FromAccount: from,
		ToAccount:   to,
		Amount:      decimal.RequireFromString(amount),
		PIN:         pin,
		Description: "rent",
	}
}

func TestPaymentToInactiveDestination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, accounts := newTestService(t, nil)

	alice := mustCreate(t, svc, "500")
	bob := mustCreate(t, svc, "0")
	require.NoError(t, accounts.SetStatus(ctx, bob, domain.StatusLocked))

	res, err := svc.ProcessPayment(ctx, payment(alice, bob, "100", goodPIN))
	assert.ErrorIs(t, err, domain.ErrDestinationInactive)
	assert.NotErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, domain.TransactionFailed, res.Status)
	assert.Equal(t, "Destination account is not active", res.Message)

	details, err := svc.GetAccountDetails(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, details.Status)
	assert.Equal(t, "500.00", details.Balance)
}

func TestPaymentLockoutScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	alice := mustCreate(t, svc, "5000")
	bob := mustCreate(t, svc, "0")

	details, err := svc.GetAccountDetails(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, details.Status)
	assert.Equal(t, "5000.00", details.Balance)

	res, err := svc.ProcessPayment(ctx, payment(alice, bob, "1000", goodPIN))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionSuccess, res.Status)
	assert.Equal(t, "4000.00", res.FromBalance)
	assert.Equal(t, "1000.00", res.ToBalance)
	assert.NotEmpty(t, res.TransactionID)
	assert.Contains(t, res.ReferenceNumber, "REF-")

	for _, remaining := range []int{2, 1} {
		res, err = svc.ProcessPayment(ctx, payment(alice, bob, "1000", "9999"))
		assert.ErrorIs(t, err, ErrInvalidPIN)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Equal(t, domain.TransactionFailed, res.Status)
		require.NotNil(t, res.AttemptsRemaining)
		assert.Equal(t, remaining, *res.AttemptsRemaining)
	}

	res, err = svc.ProcessPayment(ctx, payment(alice, bob, "1000", "9999"))
	assert.ErrorIs(t, err, domain.ErrLocked)
	assert.Equal(t, domain.TransactionLocked, res.Status)

	res, err = svc.ProcessPayment(ctx, payment(alice, bob, "1000", goodPIN))
	assert.ErrorIs(t, err, domain.ErrLocked)
	assert.Equal(t, domain.TransactionLocked, res.Status)

	details, err = svc.GetAccountDetails(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocked, details.Status)
	assert.Equal(t, "4000.00", details.Balance)
	assert.Equal(t, int64(1), details.TransactionCount)
}

func TestCreateAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("account number carries branch code", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, nil)
		number := mustCreate(t, svc, "10.50")
		assert.Len(t, number, 16)
		assert.Equal(t, "1001", number[:4])

		account, err := svc.accounts.Get(ctx, number)
		require.NoError(t, err)
		assert.NotContains(t, account.EncryptedPIN, goodPIN)
		assert.Equal(t, "10.50", account.Balance.StringFixed(2))
	})

	t.Run("failed identity persists nothing", func(t *testing.T) {
		t.Parallel()
		svc, accounts := newTestService(t, nil)
		req := createRequest("100")
		req.PANNumber = "ABCDE12345"

		res, err := svc.CreateAccount(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, res.Status)
		assert.Empty(t, res.AccountNumber)
		assert.NotEmpty(t, res.Message)
		assert.Zero(t, accounts.creates.Load())
	})

	t.Run("validation happens before any call", func(t *testing.T) {
		t.Parallel()
		svc, accounts := newTestService(t, nil)

		for name, mutate := range map[string]func(*CreateAccountRequest){
			"missing name":     func(r *CreateAccountRequest) { r.HolderName = " " },
			"bad dob":          func(r *CreateAccountRequest) { r.DateOfBirth = "12/04/1990" },
			"bad type":         func(r *CreateAccountRequest) { r.AccountType = "LOAN" },
			"negative deposit": func(r *CreateAccountRequest) { r.InitialDeposit = decimal.NewFromInt(-1) },
			"fractional cents": func(r *CreateAccountRequest) { r.InitialDeposit = decimal.RequireFromString("1.001") },
			"short pin":        func(r *CreateAccountRequest) { r.PIN = "12" },
		} {
			req := createRequest("1")
			mutate(&req)
			_, err := svc.CreateAccount(ctx, req)
			assert.ErrorIs(t, err, domain.ErrValidation, name)
		}
		assert.Zero(t, accounts.creates.Load())
	})

	t.Run("collisions exhaust the retry budget", func(t *testing.T) {
		t.Parallel()
		svc, accounts := newTestService(t, nil)
		svc.rand = constReader(1)
		mustCreate(t, svc, "1")

		_, err := svc.CreateAccount(ctx, createRequest("1"))
		assert.ErrorIs(t, err, ErrAccountNumberExhausted)
		assert.Equal(t, int32(1+maxNumberAttempts), accounts.creates.Load())
	})
}

type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

func TestProcessPaymentRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	alice := mustCreate(t, svc, "100")
	bob := mustCreate(t, svc, "0")

	t.Run("insufficient balance leaves ledger untouched", func(t *testing.T) {
		res, err := svc.ProcessPayment(ctx, payment(alice, bob, "100.01", goodPIN))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Equal(t, "Insufficient balance", res.Message)

		details, err := svc.GetAccountDetails(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "100.00", details.Balance)
		assert.Zero(t, details.TransactionCount)
	})

	t.Run("unknown destination", func(t *testing.T) {
		_, err := svc.ProcessPayment(ctx, payment(alice, "100199999999", "1", goodPIN))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := svc.ProcessPayment(ctx, payment("100199999999", bob, "1", goodPIN))
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("invalid requests", func(t *testing.T) {
		for name, req := range map[string]PaymentRequest{
			"self transfer":   payment(alice, alice, "1", goodPIN),
			"zero amount":     payment(alice, bob, "0", goodPIN),
			"negative amount": payment(alice, bob, "-5", goodPIN),
			"sub cent amount": payment(alice, bob, "0.001", goodPIN),
			"bad pin format":  payment(alice, bob, "1", "abcd"),
			"bad account":     payment("12", bob, "1", goodPIN),
		} {
			_, err := svc.ProcessPayment(ctx, req)
			assert.ErrorIs(t, err, domain.ErrValidation, name)
		}
	})
}

func TestProcessPaymentDependencyFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pin timeout aborts without mutation", func(t *testing.T) {
		t.Parallel()
		stub := &stubSecurity{Service: newSecurity(t)}
		svc, _ := newTestService(t, stub)
		alice := mustCreate(t, svc, "100")
		bob := mustCreate(t, svc, "0")

		stub.validatePIN = func(context.Context, security.PINRequest) (security.PINResult, error) {
			return security.PINResult{}, context.DeadlineExceeded
		}
		_, err := svc.ProcessPayment(ctx, payment(alice, bob, "10", goodPIN))
		assert.ErrorIs(t, err, domain.ErrDependencyTimeout)

		details, err := svc.GetAccountDetails(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "100.00", details.Balance)
	})

	t.Run("token failure aborts without mutation", func(t *testing.T) {
		t.Parallel()
		stub := &stubSecurity{Service: newSecurity(t)}
		svc, _ := newTestService(t, stub)
		alice := mustCreate(t, svc, "100")
		bob := mustCreate(t, svc, "0")

		stub.token = func(context.Context, security.TokenRequest) (security.ReferenceToken, error) {
			return security.ReferenceToken{}, errors.New("connection refused")
		}
		_, err := svc.ProcessPayment(ctx, payment(alice, bob, "10", goodPIN))
		assert.ErrorIs(t, err, domain.ErrDependency)

		txs, err := svc.ListTransactions(ctx, alice, 0)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestConcurrentPaymentsConserveBalance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	alice := mustCreate(t, svc, "1000")
	bob := mustCreate(t, svc, "500")

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ProcessPayment(ctx, payment(alice, bob, "100", goodPIN))
			if err == nil && res.Status == domain.TransactionSuccess {
				successes.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successes.Load())

	a, err := svc.GetAccountDetails(ctx, alice)
	require.NoError(t, err)
	b, err := svc.GetAccountDetails(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "0.00", a.Balance)
	assert.Equal(t, "1500.00", b.Balance)

	history, err := svc.ListTransactions(ctx, bob, 0)
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

func TestListTransactions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	alice := mustCreate(t, svc, "100")
	bob := mustCreate(t, svc, "0")

	for _, amount := range []string{"1", "2", "3"} {
		_, err := svc.ProcessPayment(ctx, payment(alice, bob, amount, goodPIN))
		require.NoError(t, err)
	}

	txs, err := svc.ListTransactions(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "3", txs[0].Amount.String())

	_, err = svc.ListTransactions(ctx, alice, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.ListTransactions(ctx, "100199999999", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()
	sec := newSecurity(t)
	accounts := memory.NewAccountStore()

	_, err := NewService(Config{PINKeyID: "pin-v1"}, nil, sec, nil, nil)
	assert.Error(t, err)
	_, err = NewService(Config{PINKeyID: "pin-v1"}, accounts, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewService(Config{}, accounts, sec, nil, nil)
	assert.Error(t, err)
}
