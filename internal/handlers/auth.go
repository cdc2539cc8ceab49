package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"invest/internal/auth"
	"invest/internal/middleware"
	"invest/internal/services"
	"invest/internal/validator"

	"github.com/jmoiron/sqlx"
)

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateUsername(req.Username); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateReferralCode(req.ReferralCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password, req.ReferralCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			respondError(w, http.StatusConflict, "username or email already exists")
		case errors.Is(err, services.ErrBadReferralCode):
			respondError(w, http.StatusBadRequest, "referral code not found")
		default:
			respondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}
	if err := h.bootstrapFirstAdmin(r, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"token": token,
	})
}

// bootstrapFirstAdmin makes the very first registered user a super admin so
// a fresh deployment is administrable without manual SQL.
func (h *Handler) bootstrapFirstAdmin(r *http.Request, userID string) error {
	hasAdmin, err := h.admin.HasAnyAdmin(r.Context())
	if err != nil {
		return err
	}
	if hasAdmin {
		return nil
	}
	return h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, userID, true, nil); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"user_id": userID,
			"ip":      r.RemoteAddr,
		})
		return h.audit.Log(r.Context(), tx, userID, "bootstrap_admin", "admin", userID, "", string(data))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	_, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
