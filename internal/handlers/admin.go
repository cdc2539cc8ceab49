package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"invest/internal/middleware"
	"invest/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

type settleRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SettleDeposit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.ledger.SettleDeposit(r.Context(), actorID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondSettleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) SettleWithdrawal(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.ledger.SettleWithdrawal(r.Context(), actorID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondSettleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func respondSettleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, services.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_status_transition")
	case errors.Is(err, services.ErrAlreadyProcessed):
		respondError(w, http.StatusConflict, "already_processed")
	default:
		respondError(w, http.StatusInternalServerError, "settlement_failed")
	}
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.transactions.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, transactionPayload(row))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	checked, corrected, failed, err := h.reconciler.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to reconcile balances")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"checked":   checked,
		"corrected": corrected,
		"failed":    failed,
	})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler_disabled")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"jobs": h.jobs.JobNames()})
}

func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler_disabled")
		return
	}
	name := chi.URLParam(r, "name")
	known := false
	for _, jobName := range h.jobs.JobNames() {
		if jobName == name {
			known = true
			break
		}
	}
	if !known {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	result, err := h.jobs.Trigger(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "job_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"processed": result.Processed,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"reason":    result.Reason,
	})
}

type promoteRequest struct {
	Email string `json:"email"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := h.userStore.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to resolve user")
		return
	}
	targetUserID := valueToString(user["id"])
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, targetUserID, false, &actorID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"target_user_id": targetUserID,
		})
		return h.audit.Log(r.Context(), tx, actorID, "promote_admin", "admin", targetUserID, "", string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to promote admin")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted"})
}
