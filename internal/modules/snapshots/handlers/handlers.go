// Package handlers provides HTTP handlers for snapshot operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AccountLookup resolves the account a request is scoped to
type AccountLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	repo     *snapshots.Repository
	accounts AccountLookup
	log      zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(repo *snapshots.Repository, accounts AccountLookup, log zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		accounts: accounts,
		log:      log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleList handles GET /users/{userID}/accounts/{accountID}/snapshots
// Query: id, syncedOn (RFC 3339), syncedOnDay (yyyy-MM-dd), _order=asc|desc
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := snapshots.Filter{
		ID:          q.Get("id"),
		SyncedOnDay: q.Get("syncedOnDay"),
		Ascending:   q.Get("_order") == "asc",
	}
	if raw := q.Get("syncedOn"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid syncedOn", http.StatusBadRequest)
			return
		}
		filter.SyncedOn = &t
	}
	if filter.SyncedOnDay != "" {
		if _, err := time.Parse("2006-01-02", filter.SyncedOnDay); err != nil {
			http.Error(w, "invalid syncedOnDay", http.StatusBadRequest)
			return
		}
	}

	list, err := h.repo.List(r.Context(), account.ID, filter)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", account.ID).Msg("Failed to list snapshots")
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /users/{userID}/accounts/{accountID}/snapshots
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	var snapshot domain.AccountSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if snapshot.SyncedOn.IsZero() {
		http.Error(w, "syncedOn is required", http.StatusBadRequest)
		return
	}
	snapshot.AccountID = account.ID

	err := h.repo.Create(r.Context(), &snapshot)
	if errors.Is(err, domain.ErrAlreadyExists) {
		http.Error(w, "snapshot already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", account.ID).Msg("Failed to create snapshot")
		http.Error(w, "failed to create snapshot", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, snapshot)
}

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
