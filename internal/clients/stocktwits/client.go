// Package stocktwits fetches the public Stocktwits earnings calendar.
package stocktwits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/portfolio-sync/internal/clientdata"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.stocktwits.com"
	calendarPath   = "/api/2/discover/earnings_calendar"
	dateLayout     = "2006-01-02"
)

// Stock is one company reporting on a given day
type Stock struct {
	Importance int    `json:"importance" msgpack:"importance"`
	Symbol     string `json:"symbol" msgpack:"symbol"`
	Date       string `json:"date" msgpack:"date"`
	Time       string `json:"time" msgpack:"time"`
	Title      string `json:"title" msgpack:"title"`
}

// Day groups the stocks reporting on one calendar day
type Day struct {
	Stocks         []Stock `json:"stocks" msgpack:"stocks"`
	Day            string  `json:"day" msgpack:"day"`
	Month          string  `json:"month" msgpack:"month"`
	Year           string  `json:"year" msgpack:"year"`
	DateNumber     string  `json:"date_number" msgpack:"date_number"`
	SelectedCopy   string  `json:"selected_copy" msgpack:"selected_copy"`
	DeselectedCopy string  `json:"deselected_copy" msgpack:"deselected_copy"`
}

// Calendar is the earnings calendar between DateFrom and DateTo, keyed by yyyy-MM-dd
type Calendar struct {
	DateFrom string         `json:"date_from" msgpack:"date_from"`
	DateTo   string         `json:"date_to" msgpack:"date_to"`
	Earnings map[string]Day `json:"earnings" msgpack:"earnings"`
}

// Client fetches the earnings calendar
type Client struct {
	baseURL   string
	client    *http.Client
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a client. cacheRepo may be nil.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "stocktwits").Logger(),
	}
}

// YearRange returns the first and last day of t's calendar year
func YearRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
	return start, end
}

// EarningsCalendar returns the calendar between from and to (inclusive days).
// A fresh cached copy is returned when present; if the API fails a stale copy is used.
func (c *Client) EarningsCalendar(ctx context.Context, from, to time.Time) (*Calendar, error) {
	key := from.Format(dateLayout) + "_" + to.Format(dateLayout)

	if c.cacheRepo != nil {
		var cached Calendar
		if found, err := c.cacheRepo.GetIfFresh(clientdata.TableEarningsCalendar, key, &cached); err == nil && found {
			c.log.Debug().Str("range", key).Msg("Cache hit")
			return &cached, nil
		}
	}

	calendar, err := c.fetch(ctx, from, to)
	if err != nil {
		if c.cacheRepo != nil {
			var stale Calendar
			if found, cacheErr := c.cacheRepo.Get(clientdata.TableEarningsCalendar, key, &stale); cacheErr == nil && found {
				c.log.Warn().Err(err).Str("range", key).Msg("API failed, using stale cached calendar")
				return &stale, nil
			}
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableEarningsCalendar, key, calendar, clientdata.TTLEarningsCalendar); err != nil {
			c.log.Warn().Err(err).Str("range", key).Msg("Failed to cache earnings calendar")
		}
	}
	return calendar, nil
}

func (c *Client) fetch(ctx context.Context, from, to time.Time) (*Calendar, error) {
	q := url.Values{}
	q.Set("date_from", from.Format(dateLayout))
	q.Set("date_to", to.Format(dateLayout))
	endpoint := c.baseURL + calendarPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Info().Str("date_from", q.Get("date_from")).Str("date_to", q.Get("date_to")).Msg("Fetching earnings calendar")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("earnings calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("earnings calendar returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var calendar Calendar
	if err := json.NewDecoder(resp.Body).Decode(&calendar); err != nil {
		return nil, fmt.Errorf("failed to parse earnings calendar: %w", err)
	}
	if calendar.Earnings == nil {
		calendar.Earnings = map[string]Day{}
	}
	return &calendar, nil
}
