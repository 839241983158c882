package trading212

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/portfolio-sync/internal/clientdata"
	testingpkg "github.com/aristath/portfolio-sync/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient("secret-key", zerolog.New(nil).Level(zerolog.Disabled),
		WithBaseURL(server.URL),
		WithoutRateLimits(),
	)
}

func TestClient_GetOpenPositions_SendsAuthHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/equity/portfolio", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"ticker":"AAPL_US_EQ","quantity":2.5,"averagePrice":150,"currentPrice":180,"ppl":75,"fxPpl":null}]`))
	})

	positions, err := client.GetOpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL_US_EQ", positions[0].Ticker)
	assert.Equal(t, 2.5, positions[0].Quantity)
	assert.Nil(t, positions[0].FxPPL)
}

func TestClient_GetCash(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/equity/account/cash", r.URL.Path)
		_, _ = w.Write([]byte(`{"free":100,"total":1100,"ppl":50,"result":10,"invested":1000,"pieCash":0}`))
	})

	cash, err := client.GetCash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1100.0, cash.Total)
	require.NotNil(t, cash.PieCash)
	assert.Nil(t, cash.Blocked)
}

func TestClient_GetPaidOutDividends_FollowsPages(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/v0/history/dividends", r.URL.Path)
		assert.Equal(t, "VUSAl_EQ", r.URL.Query().Get("ticker"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`{"items":[{"ticker":"VUSAl_EQ","reference":"r1","amount":1.5,"paidOn":"2024-01-10T09:00:00Z","type":"ORDINARY"}],
				"nextPagePath":"/api/v0/history/dividends?limit=50&cursor=2&ticker=VUSAl_EQ"}`))
		case "2":
			_, _ = w.Write([]byte(`{"items":[{"ticker":"VUSAl_EQ","reference":"r2","amount":2,"paidOn":"2024-04-10T09:00:00Z","type":"ORDINARY"}],"nextPagePath":null}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})

	dividends, err := client.GetPaidOutDividends(context.Background(), "VUSAl_EQ")
	require.NoError(t, err)
	require.Len(t, dividends, 2)
	assert.Equal(t, "r1", dividends[0].Reference)
	assert.Equal(t, "r2", dividends[1].Reference)
	assert.Equal(t, 2, calls)
	assert.True(t, dividends[1].PaidOn.Equal(time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)))
}

func TestClient_GetPaidOutDividends_DetectsLoop(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[],"nextPagePath":"/api/v0/history/dividends?cursor=same"}`))
	})

	_, err := client.GetPaidOutDividends(context.Background(), "X_EQ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop")
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	})

	_, err := client.GetInstruments(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "/api/v0/equity/metadata/instruments", apiErr.Endpoint)
	assert.Equal(t, "rate limited", apiErr.Message)
}

func TestClient_LimiterHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	WithLimiter(pathPortfolio, rate.NewLimiter(rate.Every(time.Hour), 1))(client)

	_, err := client.GetOpenPositions(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GetOpenPositions(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestDefaultLimiters_CoverEveryEndpoint(t *testing.T) {
	limiters := DefaultLimiters()
	for _, path := range []string{pathPortfolio, pathCash, pathInstruments, pathDividends} {
		assert.Contains(t, limiters, path)
	}
	assert.InDelta(t, 0.1, float64(limiters[pathDividends].Limit()), 1e-9)
}

func TestClient_GetInstruments_UsesCache(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "client_data")
	defer cleanup()
	cache := clientdata.NewRepository(db.Conn())

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[{"ticker":"AAPL_US_EQ","name":"Apple","shortName":"AAPL","isin":"US0378331005"}]`))
	}))
	defer server.Close()

	newClient := func() *Client {
		return NewClient("k", zerolog.New(nil).Level(zerolog.Disabled),
			WithBaseURL(server.URL), WithoutRateLimits(), WithInstrumentCache(cache))
	}

	first, err := newClient().GetInstruments(context.Background())
	require.NoError(t, err)
	second, err := newClient().GetInstruments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, "Apple", second[0].Name)
}
