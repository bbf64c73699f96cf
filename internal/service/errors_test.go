package service

import (
	"errors"
	"testing"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name     string
		service  string
		op       string
		err      error
		expected string
	}{
		{
			name:     "with underlying error",
			service:  "banking",
			op:       "create_account",
			err:      errors.New("database connection failed"),
			expected: "banking service create_account operation failed: database connection failed",
		},
		{
			name:     "without underlying error",
			service:  "walletauth",
			op:       "get_nonce",
			err:      nil,
			expected: "walletauth service get_nonce operation failed",
		},
		{
			name:     "with sentinel error",
			service:  "banking",
			op:       "process_payment",
			err:      domain.ErrAccountNotFound,
			expected: "banking service process_payment operation failed: not found: account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceErr := &ServiceError{Service: tt.service, Op: tt.op, Err: tt.err}
			assert.Equal(t, tt.expected, serviceErr.Error())
		})
	}
}

func TestServiceError_ErrorsIs(t *testing.T) {
	underlying := errors.New("database connection failed")
	err := NewServiceError("banking", "create_account", underlying)

	assert.True(t, errors.Is(err, underlying))
	assert.False(t, errors.Is(err, errors.New("different error")))
	assert.True(t, errors.Is(NewServiceError("banking", "get", domain.ErrAccountNotFound), domain.ErrNotFound))
}

func TestServiceError_ChainedErrors(t *testing.T) {
	base := errors.New("connection lost")
	inner := NewServiceError("store", "query", base)
	outer := NewServiceError("banking", "get", inner)

	assert.True(t, errors.Is(outer, base))
	assert.Equal(t, "banking service get operation failed: store service query operation failed: connection lost", outer.Error())

	var serviceErr *ServiceError
	assert.True(t, errors.As(outer, &serviceErr))
	assert.Equal(t, "banking", serviceErr.Service)
	assert.Equal(t, inner, errors.Unwrap(outer))
}
