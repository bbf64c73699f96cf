package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/service/walletauth"
)

var _ walletauth.Gateway = (*MockGateway)(nil)

// MockGateway implements walletauth.Gateway for testing
type MockGateway struct {
	GetNonceFn        func(ctx context.Context, clientIP, address string) (walletauth.Challenge, error)
	VerifySignatureFn func(ctx context.Context, address, signature, nonce string) (walletauth.Login, error)
	GetSessionFn      func(ctx context.Context, token string) (*domain.Session, error)
	RevokeSessionFn   func(ctx context.Context, token string) error

	// Default values used when functions aren't explicitly defined
	Session *domain.Session
	Err     error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockGateway) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how many times op was invoked.
func (m *MockGateway) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// GetNonce implements walletauth.Gateway
func (m *MockGateway) GetNonce(ctx context.Context, clientIP, address string) (walletauth.Challenge, error) {
	m.record("GetNonce")
	if m.GetNonceFn != nil {
		return m.GetNonceFn(ctx, clientIP, address)
	}
	return walletauth.Challenge{}, m.Err
}

// VerifySignature implements walletauth.Gateway
func (m *MockGateway) VerifySignature(
	ctx context.Context,
	address, signature, nonce string,
) (walletauth.Login, error) {
	m.record("VerifySignature")
	if m.VerifySignatureFn != nil {
		return m.VerifySignatureFn(ctx, address, signature, nonce)
	}
	return walletauth.Login{}, m.Err
}

// GetSession implements walletauth.Gateway
func (m *MockGateway) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	m.record("GetSession")
	if m.GetSessionFn != nil {
		return m.GetSessionFn(ctx, token)
	}
	return m.Session, m.Err
}

// RevokeSession implements walletauth.Gateway
func (m *MockGateway) RevokeSession(ctx context.Context, token string) error {
	m.record("RevokeSession")
	if m.RevokeSessionFn != nil {
		return m.RevokeSessionFn(ctx, token)
	}
	return m.Err
}
