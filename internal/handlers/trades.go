package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"invest/internal/middleware"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/services"

	"github.com/go-chi/chi/v5"
)

type initiateTradeRequest struct {
	InvestmentID string `json:"investment_id"`
}

func (h *Handler) InitiateTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req initiateTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvestmentID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	trade, err := h.trades.InitiateTrade(r.Context(), userID, req.InvestmentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvestmentNotFound), errors.Is(err, services.ErrNotYourResource):
			respondError(w, http.StatusNotFound, "investment not found")
		case errors.Is(err, services.ErrInvestmentNotActive):
			respondError(w, http.StatusBadRequest, "investment_not_active")
		case errors.Is(err, services.ErrTradeInProgress):
			respondError(w, http.StatusConflict, "trade_in_progress")
		default:
			respondError(w, http.StatusInternalServerError, "trade_failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, tradePayload(trade))
}

func tradePayload(trade models.Trade) map[string]any {
	return map[string]any{
		"id":            trade.ID,
		"investment_id": trade.InvestmentID,
		"trade_amount":  money.FormatMinor(trade.TradeAmount),
		"profit_rate":   trade.ProfitRate,
		"profit_amount": money.FormatMinor(trade.ProfitAmount),
		"status":        trade.Status,
		"start_time":    trade.StartTime,
		"end_time":      trade.EndTime,
		"completed_at":  trade.CompletedAt,
	}
}

func (h *Handler) StopTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	payout, err := h.trades.StopTrade(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTradeNotFound), errors.Is(err, services.ErrNotYourResource):
			respondError(w, http.StatusNotFound, "trade not found")
		case errors.Is(err, services.ErrTradeNotRunning):
			respondError(w, http.StatusBadRequest, "trade_not_running")
		case errors.Is(err, services.ErrTradeAlreadySettled):
			respondError(w, http.StatusConflict, "trade_already_settled")
		default:
			respondError(w, http.StatusInternalServerError, "stop_failed")
		}
		return
	}
	h.pushWallet(r.Context(), userID)
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "stopped",
		"payout": money.FormatMinor(payout),
	})
}

func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit := parseInt(query.Get("limit"), 20)
	offset := (page - 1) * limit
	trades, err := h.trades.ListTrades(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load trades")
		return
	}
	normalized := make([]map[string]any, 0, len(trades))
	for _, trade := range trades {
		normalized = append(normalized, tradePayload(trade))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	trade, err := h.trades.GetTrade(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) || errors.Is(err, services.ErrNotYourResource) {
			respondError(w, http.StatusNotFound, "trade not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load trade")
		return
	}
	respondJSON(w, http.StatusOK, tradePayload(trade))
}
