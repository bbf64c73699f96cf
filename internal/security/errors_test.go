package security

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, sentinel := range []error{
		ErrInvalidRequest, ErrUnknownKey, ErrMalformedCiphertext, ErrDecryptFailed,
		ErrAccountLocked, ErrInvalidToken, ErrTokenExpired,
	} {
		wrapped := fmt.Errorf("op: %w", sentinel)
		assert.Equal(t, sentinel, FromCode(Code(wrapped)))
	}

	assert.Equal(t, "internal", Code(errors.New("boom")))
	assert.Nil(t, FromCode("internal"))
}

func TestAsDependencyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, AsDependencyError("ValidatePIN", nil))

	err := AsDependencyError("ValidatePIN", ErrDecryptFailed)
	assert.ErrorIs(t, err, domain.ErrDependency)
	assert.ErrorIs(t, err, ErrDecryptFailed)

	err = AsDependencyError("ValidatePIN", context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrDependencyTimeout)
	assert.NotErrorIs(t, err, domain.ErrDependency)

	already := fmt.Errorf("%w: EncryptData", domain.ErrDependencyTimeout)
	assert.Same(t, already, AsDependencyError("EncryptData", already))
}
