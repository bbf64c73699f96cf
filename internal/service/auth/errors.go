package auth

import (
	"fmt"

	"github.com/phrazzld/vaultcore/internal/domain"
)

// Session token errors. All of them match domain.ErrUnauthorized.
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = fmt.Errorf("%w: invalid session token", domain.ErrUnauthorized)

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = fmt.Errorf("%w: session token has expired", domain.ErrUnauthorized)

	// ErrTokenNotYetValid indicates the token is not yet valid (iat or nbf in the future)
	ErrTokenNotYetValid = fmt.Errorf("%w: session token not yet valid", domain.ErrUnauthorized)

	// ErrMissingToken indicates a token was expected but not provided
	ErrMissingToken = fmt.Errorf("%w: session token is missing", domain.ErrUnauthorized)
)
