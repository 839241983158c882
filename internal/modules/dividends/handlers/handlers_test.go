package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/modules/accounts"
	"github.com/aristath/portfolio-sync/internal/modules/dividends"
	testingpkg "github.com/aristath/portfolio-sync/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) (*chi.Mux, string) {
	db, cleanup := testingpkg.NewTestDB(t, "store")
	t.Cleanup(cleanup)

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	accountRepo := accounts.NewRepository(db.Conn(), logger)
	account := domain.Account{UserID: 5, Name: "ISA", Provider: domain.ProviderTrading212}
	require.NoError(t, accountRepo.Create(context.Background(), &account))

	router := chi.NewRouter()
	NewHandler(dividends.NewRepository(db.Conn(), logger), accountRepo, logger).RegisterRoutes(router)
	return router, fmt.Sprintf("/users/5/accounts/%d/dividends", account.ID)
}

func TestHandleCreate_ScopesToPathAccount(t *testing.T) {
	router, path := setupTestRouter(t)

	d := testingpkg.NewDividendFixture(domain.Account{ID: 999, UserID: 999}, "ref-1")
	payload, err := json.Marshal(d)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.DividendRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(5), created.UserID)
	assert.NotEqual(t, int64(999), created.AccountID)

	req = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleList_FilterByInternalID(t *testing.T) {
	router, path := setupTestRouter(t)

	for _, id := range []string{"ref-1", "ref-2"} {
		payload, err := json.Marshal(testingpkg.NewDividendFixture(domain.Account{}, id))
		require.NoError(t, err)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path+"?internalId=ref-2&_sort=paidOn&_order=desc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []domain.DividendRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "ref-2", list[0].InternalID)
}

func TestHandleCreate_Validation(t *testing.T) {
	router, path := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`{"ticker":"VUSA"}`))))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`not json`))))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleList_UnknownAccount(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/5/accounts/4242/dividends", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
