/**
 * @description
 * HTTP handlers for the movement endpoints. Handlers decode the request,
 * delegate to the orchestrators and query services, and translate the error
 * taxonomy onto HTTP status codes. No business logic lives here.
 *
 * Error mapping:
 * - validation failure        -> 400
 * - unknown record/party      -> 404
 * - insufficient balance      -> 422
 * - record owned by another   -> 403
 * - anything else             -> 500
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - github.com/google/uuid: Id parsing.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/app"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/store"
)

// MovementHandlers bundles the orchestrators and query services behind the
// HTTP surface.
type MovementHandlers struct {
	Transactions     *app.TransactionService
	TransactionReads *app.TransactionQueryService
	Transfers        *app.TransferService
	TransferReads    *app.TransferQueryService
	Topups           *app.TopupService
	Withdraws        *app.WithdrawService
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case app.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthorizedAccess):
		writeError(w, http.StatusForbidden, "movement record belongs to another merchant")
	case errors.Is(err, store.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "insufficient balance")
	case errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrMerchantNotFound),
		errors.Is(err, store.ErrSaldoNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrTransferNotFound),
		errors.Is(err, store.ErrTopupNotFound),
		errors.Is(err, store.ErrWithdrawNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("level=error component=api msg=\"request failed\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func listOptions(r *http.Request) domain.ListOptions {
	opts := domain.ListOptions{Search: r.URL.Query().Get("search")}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		opts.Page = page
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil {
		opts.PageSize = size
	}
	opts.Normalize()
	return opts
}

// --- Transactions ---

func (h *MovementHandlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := GetMerchantAPIKey(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "merchant authentication required")
		return
	}
	var req domain.CreateTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.Transactions.Create(r.Context(), apiKey, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.OK("transaction created", tx))
}

func (h *MovementHandlers) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := GetMerchantAPIKey(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "merchant authentication required")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.TransactionID = id
	tx, err := h.Transactions.Update(r.Context(), apiKey, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transaction updated", tx))
}

func (h *MovementHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.TransactionReads.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transaction found", tx))
}

func (h *MovementHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.TransactionReads.FindAll(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transactions found", txs))
}

func (h *MovementHandlers) ListActiveTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.TransactionReads.FindActive(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("active transactions found", txs))
}

func (h *MovementHandlers) ListTrashedTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.TransactionReads.FindTrashed(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("trashed transactions found", txs))
}

func (h *MovementHandlers) ListTransactionsByCardHandler(w http.ResponseWriter, r *http.Request) {
	cardNumber := chi.URLParam(r, "cardNumber")
	txs, err := h.TransactionReads.FindByCard(r.Context(), cardNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transactions found", txs))
}

func (h *MovementHandlers) TrashTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.Transactions.Trashed(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transaction trashed", tx))
}

func (h *MovementHandlers) RestoreTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.Transactions.Restore(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transaction restored", tx))
}

func (h *MovementHandlers) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Transactions.DeletePermanent(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transaction permanently deleted", nil))
}

func (h *MovementHandlers) RestoreAllTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Transactions.RestoreAll(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("all trashed transactions restored", nil))
}

func (h *MovementHandlers) DeleteAllTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Transactions.DeleteAllPermanent(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("all trashed transactions permanently deleted", nil))
}

// --- Transfers ---

func (h *MovementHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	transfer, err := h.Transfers.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.OK("transfer created", transfer))
}

func (h *MovementHandlers) UpdateTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.TransferID = id
	transfer, err := h.Transfers.Update(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfer updated", transfer))
}

func (h *MovementHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	transfer, err := h.TransferReads.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfer found", transfer))
}

func (h *MovementHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.TransferReads.FindAll(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfers found", transfers))
}

func (h *MovementHandlers) ListActiveTransfersHandler(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.TransferReads.FindActive(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("active transfers found", transfers))
}

func (h *MovementHandlers) ListTrashedTransfersHandler(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.TransferReads.FindTrashed(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("trashed transfers found", transfers))
}

func (h *MovementHandlers) ListTransfersByCardHandler(w http.ResponseWriter, r *http.Request) {
	cardNumber := chi.URLParam(r, "cardNumber")
	transfers, err := h.TransferReads.FindByCard(r.Context(), cardNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfers found", transfers))
}

func (h *MovementHandlers) TrashTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	transfer, err := h.Transfers.Trashed(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfer trashed", transfer))
}

func (h *MovementHandlers) RestoreTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	transfer, err := h.Transfers.Restore(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfer restored", transfer))
}

func (h *MovementHandlers) DeleteTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Transfers.DeletePermanent(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("transfer permanently deleted", nil))
}

func (h *MovementHandlers) RestoreAllTransfersHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Transfers.RestoreAll(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("all trashed transfers restored", nil))
}

func (h *MovementHandlers) DeleteAllTransfersHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Transfers.DeleteAllPermanent(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("all trashed transfers permanently deleted", nil))
}

// --- Topups ---

func (h *MovementHandlers) CreateTopupHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTopupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	topup, err := h.Topups.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.OK("topup created", topup))
}

func (h *MovementHandlers) UpdateTopupHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateTopupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.TopupID = id
	topup, err := h.Topups.Update(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("topup updated", topup))
}

// --- Withdraws ---

func (h *MovementHandlers) CreateWithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	withdraw, err := h.Withdraws.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.OK("withdraw created", withdraw))
}

func (h *MovementHandlers) UpdateWithdrawHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateWithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.WithdrawID = id
	withdraw, err := h.Withdraws.Update(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("withdraw updated", withdraw))
}
