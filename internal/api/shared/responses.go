package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/redact"
)

// Error statuses carried in the status field of error bodies. They name the
// error category so clients can branch without parsing the message.
const (
	StatusValidationError   = "VALIDATION_ERROR"
	StatusUnauthorized      = "UNAUTHORIZED"
	StatusNotFound          = "NOT_FOUND"
	StatusConflict          = "CONFLICT"
	StatusTooLarge          = "REQUEST_TOO_LARGE"
	StatusInsufficientFunds = "INSUFFICIENT_FUNDS"
	StatusLocked            = "LOCKED"
	StatusThrottled         = "THROTTLED"
	StatusDependencyError   = "DEPENDENCY_ERROR"
	StatusDependencyTimeout = "DEPENDENCY_TIMEOUT"
	StatusError             = "ERROR"
)

// ErrorResponse is the body of every failed request: the error category,
// a client-safe message and the trace id for support lookups.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorStatusForCode names the error category of an HTTP status code.
func ErrorStatusForCode(code int) string {
	switch code {
	case http.StatusBadRequest:
		return StatusValidationError
	case http.StatusUnauthorized:
		return StatusUnauthorized
	case http.StatusNotFound:
		return StatusNotFound
	case http.StatusConflict:
		return StatusConflict
	case http.StatusRequestEntityTooLarge:
		return StatusTooLarge
	case http.StatusUnprocessableEntity:
		return StatusInsufficientFunds
	case http.StatusLocked:
		return StatusLocked
	case http.StatusTooManyRequests:
		return StatusThrottled
	case http.StatusBadGateway:
		return StatusDependencyError
	case http.StatusGatewayTimeout:
		return StatusDependencyTimeout
	default:
		return StatusError
	}
}

// ResponseOption customizes how an error response is logged.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	elevateLogLevel bool
}

// WithElevatedLogLevel logs a 4xx response at WARN instead of DEBUG. Used for
// lockouts, which operators want to see.
func WithElevatedLogLevel() ResponseOption {
	return func(opts *responseOptions) {
		opts.elevateLogLevel = true
	}
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func newErrorResponse(r *http.Request, code int, message string) ErrorResponse {
	return ErrorResponse{
		Status:  ErrorStatusForCode(code),
		Message: message,
		TraceID: GetTraceID(r.Context()),
	}
}

// RespondWithError writes an error body for a failure that has no
// underlying error worth logging (bad headers, missing parameters).
func RespondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	body := newErrorResponse(r, code, message)

	logger.FromContextOrDefault(r.Context(), slog.Default()).DebugContext(r.Context(), "sending error response",
		slog.Int("status_code", code),
		slog.String("status", body.Status),
		slog.String("message", message),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	RespondWithJSON(w, r, code, body)
}

// RespondWithErrorAndLog writes an error body carrying only userMessage and
// logs the redacted err alongside it.
//
// 5xx responses log at ERROR and 429 at WARN. Other 4xx responses log at
// DEBUG unless WithElevatedLogLevel is passed.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	code int,
	userMessage string,
	err error,
	opts ...ResponseOption,
) {
	body := newErrorResponse(r, code, userMessage)

	logAttrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", code),
		slog.String("status", body.Status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		logAttrs = append(logAttrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	responseOpts := responseOptions{}
	for _, opt := range opts {
		opt(&responseOpts)
	}

	logLevel := slog.LevelDebug
	switch {
	case code >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	case code == http.StatusTooManyRequests:
		logLevel = slog.LevelWarn
	case responseOpts.elevateLogLevel && code >= http.StatusBadRequest:
		logLevel = slog.LevelWarn
	}

	logger.FromContextOrDefault(r.Context(), slog.Default()).
		LogAttrs(r.Context(), logLevel, "API error response", logAttrs...)

	RespondWithJSON(w, r, code, body)
}
