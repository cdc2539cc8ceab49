package handlers

import (
	"context"
	"net/http"
	"strings"

	"invest/internal/auth"
	"invest/internal/middleware"
	"invest/internal/models"
	"invest/internal/money"
	"invest/internal/websocket"
)

func walletPayload(wallet models.Wallet) map[string]any {
	return map[string]any{
		"id":             wallet.ID,
		"currency":       wallet.Currency,
		"balance":        money.FormatMinor(wallet.Balance),
		"profit_balance": money.FormatMinor(wallet.ProfitBalance),
		"locked_balance": money.FormatMinor(wallet.LockedBalance),
		"created_at":     wallet.CreatedAt,
	}
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.ledger.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, walletPayload(wallet))
}

// pushWallet sends the user's fresh balances over any open sockets. Best
// effort: a push failure never fails the request that moved the money.
func (h *Handler) pushWallet(ctx context.Context, userID string) {
	wallet, err := h.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return
	}
	h.hub.BroadcastWallet(userID, websocket.WalletUpdate{
		WalletID:      wallet.ID,
		Balance:       money.FormatMinor(wallet.Balance),
		ProfitBalance: money.FormatMinor(wallet.ProfitBalance),
		LockedBalance: money.FormatMinor(wallet.LockedBalance),
		Currency:      wallet.Currency,
	})
}

func (h *Handler) WSWallet(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}

func (h *Handler) ListProfits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit := parseInt(query.Get("limit"), 20)
	offset := (page - 1) * limit
	rows, err := h.profits.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load profits")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":            row.ID,
			"investment_id": row.InvestmentID,
			"trade_id":      row.TradeID,
			"amount":        money.FormatMinor(row.Amount),
			"profit_rate":   row.ProfitRate,
			"is_withdrawn":  row.IsWithdrawn,
			"created_at":    row.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rows, err := h.referrals.ListByReferrer(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load referrals")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":                row.ID,
			"referred_user_id":  row.ReferredUserID,
			"commission_earned": money.FormatMinor(row.CommissionEarned),
			"is_active":         row.IsActive,
			"created_at":        row.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}
