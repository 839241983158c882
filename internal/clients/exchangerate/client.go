// Package exchangerate provides currency exchange rate fetching and caching functionality.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/portfolio-sync/internal/clientdata"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://v6.exchangerate-api.com"

// RateTable holds conversion rates relative to Base (Base itself maps to 1)
type RateTable struct {
	Base      string             `json:"base" msgpack:"base"`
	Rates     map[string]float64 `json:"rates" msgpack:"rates"`
	UpdatedAt time.Time          `json:"updatedAt" msgpack:"updated_at"`
}

// Convert converts amount from one currency to another through the table base.
func (t *RateTable) Convert(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, err := t.rate(from)
	if err != nil {
		return 0, err
	}
	toRate, err := t.rate(to)
	if err != nil {
		return 0, err
	}
	return amount / fromRate * toRate, nil
}

func (t *RateTable) rate(code string) (float64, error) {
	if code == t.Base {
		return 1, nil
	}
	r, ok := t.Rates[code]
	if !ok || r == 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", t.Base, code)
	}
	return r, nil
}

// Client for exchangerate-api.com v6
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(apiKey, baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

type latestResponse struct {
	Result             string             `json:"result"`
	ErrorType          string             `json:"error-type"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
}

// Latest returns the rate table for base, using the cache first.
// If the API fails, returns stale cached data if available.
func (c *Client) Latest(ctx context.Context, base string) (*RateTable, error) {
	base = strings.ToUpper(base)

	if c.cacheRepo != nil {
		var cached RateTable
		found, err := c.cacheRepo.GetIfFresh(clientdata.TableExchangeRates, base, &cached)
		if err == nil && found {
			c.log.Debug().Str("base", base).Msg("Cache hit")
			return &cached, nil
		}
	}

	table, err := c.fetch(ctx, base)
	if err != nil {
		if stale, ok := c.getStaleFromCache(base); ok {
			c.log.Warn().
				Err(err).
				Str("base", base).
				Time("updated_at", stale.UpdatedAt).
				Msg("API failed, using stale cached rates")
			return stale, nil
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableExchangeRates, base, table, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("base", base).Msg("Failed to cache exchange rates")
		}
	}

	c.log.Info().Str("base", base).Int("currencies", len(table.Rates)).Msg("Fetched rates")
	return table, nil
}

// Rate returns how many units of `to` one unit of `from` buys.
func (c *Client) Rate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1.0, nil
	}
	table, err := c.Latest(ctx, from)
	if err != nil {
		return 0, err
	}
	return table.Convert(1, from, to)
}

func (c *Client) fetch(ctx context.Context, base string) (*RateTable, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("exchange rate API key is not configured")
	}

	url := fmt.Sprintf("%s/v6/%s/latest/%s", c.baseURL, c.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	var result latestResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && result.ErrorType != "" {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, result.ErrorType)
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if result.Result != "success" {
		return nil, fmt.Errorf("API returned %s: %s", result.Result, result.ErrorType)
	}

	code := result.BaseCode
	if code == "" {
		code = base
	}
	return &RateTable{
		Base:      code,
		Rates:     result.ConversionRates,
		UpdatedAt: time.Unix(result.TimeLastUpdateUnix, 0).UTC(),
	}, nil
}

// getStaleFromCache retrieves cached rates even if expired.
func (c *Client) getStaleFromCache(base string) (*RateTable, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var cached RateTable
	found, err := c.cacheRepo.Get(clientdata.TableExchangeRates, base, &cached)
	if err != nil || !found {
		return nil, false
	}
	return &cached, true
}
