// Package handlers provides HTTP handlers for dividend operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/modules/dividends"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AccountLookup resolves the account a request is scoped to
type AccountLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

// Handler handles dividend HTTP requests
type Handler struct {
	repo     *dividends.Repository
	accounts AccountLookup
	log      zerolog.Logger
}

// NewHandler creates a new dividend handler
func NewHandler(repo *dividends.Repository, accounts AccountLookup, log zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		accounts: accounts,
		log:      log.With().Str("handler", "dividends").Logger(),
	}
}

// HandleList handles GET /users/{userID}/accounts/{accountID}/dividends
// Query: internalId, _order=asc|desc (sorted by paidOn, desc by default)
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := dividends.Filter{
		InternalID: q.Get("internalId"),
		Ascending:  q.Get("_order") == "asc",
	}

	list, err := h.repo.List(r.Context(), account.ID, filter)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", account.ID).Msg("Failed to list dividends")
		http.Error(w, "failed to list dividends", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /users/{userID}/accounts/{accountID}/dividends
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	var dividend domain.DividendRecord
	if err := json.NewDecoder(r.Body).Decode(&dividend); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if dividend.InternalID == "" || dividend.PaidOn.IsZero() {
		http.Error(w, "internalId and paidOn are required", http.StatusBadRequest)
		return
	}
	dividend.AccountID = account.ID
	dividend.UserID = account.UserID

	err := h.repo.Create(r.Context(), &dividend)
	if errors.Is(err, domain.ErrAlreadyExists) {
		http.Error(w, "dividend already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", account.ID).Msg("Failed to create dividend")
		http.Error(w, "failed to create dividend", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, dividend)
}

// resolveAccount writes the error response itself when it returns false
func (h *Handler) resolveAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return nil, false
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return nil, false
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && account.UserID != userID) {
		http.Error(w, "account not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to resolve account")
		http.Error(w, "failed to resolve account", http.StatusInternalServerError)
		return nil, false
	}
	return account, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
