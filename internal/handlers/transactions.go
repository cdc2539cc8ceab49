package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"invest/internal/middleware"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/services"
)

type depositRequest struct {
	Amount  string `json:"amount"`
	Confirm bool   `json:"confirm"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "confirmation_required")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	transactionID, err := h.ledger.CreateDeposit(r.Context(), userID, amount)
	if err != nil {
		if errors.Is(err, services.ErrInvalidAmount) {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		respondError(w, http.StatusInternalServerError, "deposit_failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"transaction_id": transactionID})
}

type withdrawRequest struct {
	Amount  string `json:"amount"`
	Confirm bool   `json:"confirm"`
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "confirmation_required")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	transactionID, err := h.ledger.RequestWithdrawal(r.Context(), userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "insufficient_funds")
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		default:
			respondError(w, http.StatusInternalServerError, "withdrawal_failed")
		}
		return
	}
	h.pushWallet(r.Context(), userID)
	respondJSON(w, http.StatusCreated, map[string]string{"transaction_id": transactionID})
}

func transactionPayload(row models.Transaction) map[string]any {
	return map[string]any{
		"id":         row.ID,
		"user_id":    row.UserID,
		"type":       row.Type,
		"status":     row.Status,
		"amount":     money.FormatMinor(row.Amount),
		"net_amount": money.FormatMinor(row.NetAmount),
		"currency":   row.Currency,
		"metadata":   row.Metadata,
		"created_at": row.CreatedAt,
	}
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	txType := query.Get("type")
	page := parseInt(query.Get("page"), 1)
	limit := parseInt(query.Get("limit"), 20)
	offset := (page - 1) * limit
	transactions, err := h.transactions.ListByUser(r.Context(), userID, txType, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	normalized := make([]map[string]any, 0, len(transactions))
	for _, row := range transactions {
		normalized = append(normalized, transactionPayload(row))
	}
	respondJSON(w, http.StatusOK, normalized)
}
