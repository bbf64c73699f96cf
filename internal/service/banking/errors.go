package banking

import (
	"fmt"

	"github.com/phrazzld/vaultcore/internal/domain"
)

var (
	// ErrInvalidPIN is returned when the PIN does not match and the account
	// still has attempts left.
	ErrInvalidPIN = fmt.Errorf("%w: invalid pin", domain.ErrUnauthorized)

	// ErrAccountLocked is returned for any PIN-gated operation on a locked
	// account, including the attempt that caused the lock.
	ErrAccountLocked = fmt.Errorf("%w: too many failed pin attempts", domain.ErrLocked)

	// ErrAccountNumberExhausted is returned when no free account number was
	// found within the retry budget.
	ErrAccountNumberExhausted = fmt.Errorf("%w: no free account number", domain.ErrDuplicate)
)
