package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/vaultcore/internal/api/shared"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/service/banking"
)

// PaymentHandler handles PIN-authorised transfers.
type PaymentHandler struct {
	banking banking.Service
	logger  *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(svc banking.Service, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PaymentHandler")
	}
	return &PaymentHandler{
		banking: svc,
		logger:  logger.With(slog.String("component", "payment_handler")),
	}
}

// ProcessPayment handles POST /payments
// Business rejections (bad PIN, lock, insufficient balance) still return the
// payment result body so clients see the status and attempts remaining.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	svcReq, err := req.ToService()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.banking.ProcessPayment(r.Context(), svcReq)
	if err != nil {
		if result.Status == "" {
			HandleAPIError(w, r, err, "Failed to process payment")
			return
		}
		status := MapErrorToStatusCode(err)
		log.Info("payment rejected",
			slog.String("status", string(result.Status)),
			slog.Int("status_code", status))
		shared.RespondWithJSON(w, r, status, result)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}
