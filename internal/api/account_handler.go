package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/vaultcore/internal/api/shared"
	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/service/banking"
)

// AccountHandler handles account opening and read-only account queries.
type AccountHandler struct {
	banking banking.Service
	logger  *slog.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(svc banking.Service, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AccountHandler")
	}
	return &AccountHandler{
		banking: svc,
		logger:  logger.With(slog.String("component", "account_handler")),
	}
}

// CreateAccount handles POST /accounts
// A rejected identity check is not an HTTP error: the response carries the
// REJECTED status and reason.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	svcReq, err := req.ToService()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.banking.CreateAccount(r.Context(), svcReq)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create account")
		return
	}

	status := http.StatusCreated
	if result.Status == domain.StatusRejected {
		status = http.StatusOK
	}
	log.Debug("account request completed",
		slog.String("status", string(result.Status)),
		slog.String("account_number", result.AccountNumber))
	shared.RespondWithJSON(w, r, status, CreateAccountResponse{
		Status:        result.Status,
		Message:       result.Message,
		AccountNumber: result.AccountNumber,
	})
}

// GetAccount handles GET /accounts/{number}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	number, err := getPathAccountNumber(r, "number")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	details, err := h.banking.GetAccountDetails(r.Context(), number)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get account")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AccountResponse{
		Status:  "SUCCESS",
		Message: "Account retrieved",
		Account: details,
	})
}

// ListTransactions handles GET /accounts/{number}/transactions?limit=
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	number, err := getPathAccountNumber(r, "number")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := getLimitParam(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	txs, err := h.banking.ListTransactions(r.Context(), number, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list transactions")
		return
	}

	resp := TransactionListResponse{
		AccountNumber: number,
		Transactions:  make([]TransactionResponse, 0, len(txs)),
	}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, transactionToResponse(tx))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
