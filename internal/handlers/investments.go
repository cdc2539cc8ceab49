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

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.investments.ListPackages(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load packages")
		return
	}
	normalized := make([]map[string]any, 0, len(packages))
	for _, pkg := range packages {
		normalized = append(normalized, map[string]any{
			"id":                pkg.ID,
			"name":              pkg.Name,
			"min_stake":         money.FormatMinor(pkg.MinStake),
			"profit_min":        pkg.ProfitMin,
			"profit_max":        pkg.ProfitMax,
			"bonus_percent":     pkg.BonusPercent,
			"duration_days":     pkg.DurationDays,
			"trade_cycle_hours": pkg.TradeCycleHrs,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

type createInvestmentRequest struct {
	PackageID string `json:"package_id"`
	Amount    string `json:"amount"`
	Confirm   bool   `json:"confirm"`
}

func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "confirmation_required")
		return
	}
	if req.PackageID == "" {
		respondError(w, http.StatusBadRequest, "package_id is required")
		return
	}
	principal, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	investment, err := h.investments.CreateInvestment(r.Context(), userID, req.PackageID, principal)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPackageNotFound):
			respondError(w, http.StatusNotFound, "package not found")
		case errors.Is(err, services.ErrPackageInactive):
			respondError(w, http.StatusBadRequest, "package_inactive")
		case errors.Is(err, services.ErrBelowMinStake):
			respondError(w, http.StatusBadRequest, "below_minimum_stake")
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "insufficient_funds")
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		default:
			respondError(w, http.StatusInternalServerError, "investment_failed")
		}
		return
	}
	h.pushWallet(r.Context(), userID)
	respondJSON(w, http.StatusCreated, investmentPayload(investment))
}

func investmentPayload(investment models.Investment) map[string]any {
	return map[string]any{
		"id":               investment.ID,
		"package_id":       investment.PackageID,
		"principal_amount": money.FormatMinor(investment.PrincipalAmount),
		"welcome_bonus":    money.FormatMinor(investment.WelcomeBonusAmount),
		"total_profits":    money.FormatMinor(investment.TotalProfits),
		"status":           investment.Status,
		"start_date":       investment.StartDate,
		"maturity_date":    investment.MaturityDate,
		"completed_at":     investment.CompletedAt,
	}
}

func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	investments, err := h.investments.ListInvestments(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load investments")
		return
	}
	normalized := make([]map[string]any, 0, len(investments))
	for _, investment := range investments {
		normalized = append(normalized, investmentPayload(investment))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	investment, err := h.investments.GetInvestment(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrInvestmentNotFound) || errors.Is(err, services.ErrNotYourResource) {
			respondError(w, http.StatusNotFound, "investment not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load investment")
		return
	}
	respondJSON(w, http.StatusOK, investmentPayload(investment))
}
