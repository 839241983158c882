package stocktwits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/portfolio-sync/internal/clientdata"
	testingpkg "github.com/aristath/portfolio-sync/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calendarJSON = `{
  "date_from": "2024-01-01",
  "date_to": "2024-12-31",
  "earnings": {
    "2024-04-25": {
      "stocks": [{"importance": 5, "symbol": "MSFT", "date": "2024-04-25", "time": "16:05:00", "title": "Microsoft"}],
      "day": "25", "month": "04", "year": "2024", "date_number": "25",
      "selected_copy": "Thursday", "deselected_copy": "Thu"
    }
  }
}`

func TestYearRange(t *testing.T) {
	from, to := YearRange(time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-01-01", from.Format("2006-01-02"))
	assert.Equal(t, "2024-12-31", to.Format("2006-01-02"))
}

func TestEarningsCalendar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2/discover/earnings_calendar", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("date_from"))
		assert.Equal(t, "2024-12-31", r.URL.Query().Get("date_to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(calendarJSON))
	}))
	defer server.Close()

	from, to := YearRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	cal, err := NewClient(server.URL, nil, zerolog.Nop()).EarningsCalendar(context.Background(), from, to)
	require.NoError(t, err)

	require.Contains(t, cal.Earnings, "2024-04-25")
	day := cal.Earnings["2024-04-25"]
	require.Len(t, day.Stocks, 1)
	assert.Equal(t, "MSFT", day.Stocks[0].Symbol)
	assert.Equal(t, "Thursday", day.SelectedCopy)
}

func TestEarningsCalendar_CachesAndFallsBack(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "client_data")
	defer cleanup()
	repo := clientdata.NewRepository(db.Conn())

	var calls atomic.Int32
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(calendarJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, repo, zerolog.Nop())
	from, to := YearRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	_, err := client.EarningsCalendar(context.Background(), from, to)
	require.NoError(t, err)
	_, err = client.EarningsCalendar(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")

	// Drop freshness, then fail the API: the stale copy is still served
	_, err = db.Conn().Exec("UPDATE earnings_calendar SET expires_at = 0")
	require.NoError(t, err)
	failing.Store(true)

	cal, err := client.EarningsCalendar(context.Background(), from, to)
	require.NoError(t, err)
	assert.Contains(t, cal.Earnings, "2024-04-25")
	assert.Equal(t, int32(2), calls.Load())
}

func TestEarningsCalendar_ErrorWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	from, to := YearRange(time.Now())
	_, err := NewClient(server.URL, nil, zerolog.Nop()).EarningsCalendar(context.Background(), from, to)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
