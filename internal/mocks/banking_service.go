package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/service/banking"
)

var _ banking.Service = (*MockBankingService)(nil)

// MockBankingService implements banking.Service for testing
type MockBankingService struct {
	CreateAccountFn     func(ctx context.Context, req banking.CreateAccountRequest) (banking.CreateAccountResult, error)
	ProcessPaymentFn    func(ctx context.Context, req banking.PaymentRequest) (banking.PaymentResult, error)
	GetAccountDetailsFn func(ctx context.Context, number string) (domain.AccountDetails, error)
	ListTransactionsFn  func(ctx context.Context, number string, limit int) ([]domain.Transaction, error)

	// Default error when no function is set
	Err error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockBankingService) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how many times op was invoked.
func (m *MockBankingService) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// CreateAccount implements banking.Service
func (m *MockBankingService) CreateAccount(
	ctx context.Context,
	req banking.CreateAccountRequest,
) (banking.CreateAccountResult, error) {
	m.record("CreateAccount")
	if m.CreateAccountFn != nil {
		return m.CreateAccountFn(ctx, req)
	}
	return banking.CreateAccountResult{}, m.Err
}

// ProcessPayment implements banking.Service
func (m *MockBankingService) ProcessPayment(
	ctx context.Context,
	req banking.PaymentRequest,
) (banking.PaymentResult, error) {
	m.record("ProcessPayment")
	if m.ProcessPaymentFn != nil {
		return m.ProcessPaymentFn(ctx, req)
	}
	return banking.PaymentResult{}, m.Err
}

// GetAccountDetails implements banking.Service
func (m *MockBankingService) GetAccountDetails(ctx context.Context, number string) (domain.AccountDetails, error) {
	m.record("GetAccountDetails")
	if m.GetAccountDetailsFn != nil {
		return m.GetAccountDetailsFn(ctx, number)
	}
	return domain.AccountDetails{}, m.Err
}

// ListTransactions implements banking.Service
func (m *MockBankingService) ListTransactions(
	ctx context.Context,
	number string,
	limit int,
) ([]domain.Transaction, error) {
	m.record("ListTransactions")
	if m.ListTransactionsFn != nil {
		return m.ListTransactionsFn(ctx, number, limit)
	}
	return nil, m.Err
}
