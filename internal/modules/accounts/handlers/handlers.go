// Package handlers provides HTTP handlers for account operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/modules/accounts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles account HTTP requests
type Handler struct {
	repo *accounts.Repository
	log  zerolog.Logger
}

// NewHandler creates a new account handler
func NewHandler(repo *accounts.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "accounts").Logger(),
	}
}

// HandleList handles GET /accounts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		http.Error(w, "failed to list accounts", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleListForUser handles GET /users/{userID}/accounts
func (h *Handler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	list, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list user accounts")
		http.Error(w, "failed to list accounts", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /accounts/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	account, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", id).Msg("Failed to get account")
		http.Error(w, "failed to get account", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// HandleCreate handles POST /accounts
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if account.UserID == 0 || account.Provider == "" {
		http.Error(w, "userId and provider are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Create(r.Context(), &account); err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		http.Error(w, "failed to create account", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// HandleReplace handles PUT /accounts/{id}. The body replaces the whole record.
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	account.ID = id

	err := h.repo.Replace(r.Context(), account)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", id).Msg("Failed to replace account")
		http.Error(w, "failed to update account", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
