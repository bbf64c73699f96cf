package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/vaultcore/internal/api/shared"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/service/banking"
	"github.com/phrazzld/vaultcore/internal/service/walletauth"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDependencyTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Crypto and storage details never reach clients.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNonceUsed):
		return "Nonce already used"
	case errors.Is(err, domain.ErrNonceExpired):
		return "Nonce expired"
	case errors.As(err, &validationErr):
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"

	case errors.Is(err, banking.ErrInvalidPIN):
		return "Invalid PIN"
	case errors.Is(err, walletauth.ErrInvalidSignature):
		return "Signature verification failed"
	case errors.Is(err, walletauth.ErrUnknownNonce):
		return "Unknown or invalid nonce"
	case errors.Is(err, domain.ErrNonceAddressMismatch):
		return "Nonce was issued to a different address"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Invalid or expired session"

	case errors.Is(err, domain.ErrAccountNotFound):
		return "Account not found"
	case errors.Is(err, domain.ErrNonceNotFound):
		return "Nonce not found"
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"

	case errors.Is(err, domain.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, domain.ErrDestinationInactive):
		return "Destination account is not active"
	case errors.Is(err, domain.ErrLocked):
		return "Account locked due to too many failed PIN attempts"
	case errors.Is(err, domain.ErrThrottled):
		return "Too many requests"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Insufficient balance"
	case errors.Is(err, domain.ErrDependencyTimeout):
		return "Security service timed out"
	case errors.Is(err, domain.ErrDependency):
		return "Security service unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a struct validation failure into a message
// naming the first offending field.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "len":
		return "wrong length"
	case "numeric":
		return "must be numeric"
	case "alphanum":
		return "must be alphanumeric"
	case "oneof":
		return "invalid value"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "hexadecimal":
		return "must be hexadecimal"
	case "nefield":
		return "must differ from the source account"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted details. defaultMsg replaces the message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusLocked {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
