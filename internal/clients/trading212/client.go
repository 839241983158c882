// Package trading212 implements the Trading212 public API client and the
// provider adapter that turns its responses into dividends and snapshots.
package trading212

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
	"golang.org/x/time/rate"
)

const (
	LiveBaseURL    = "https://live.trading212.com"
	DemoBaseURL    = "https://demo.trading212.com"
	DefaultTimeout = 30 * time.Second

	pathPortfolio   = "/api/v0/equity/portfolio"
	pathCash        = "/api/v0/equity/account/cash"
	pathInstruments = "/api/v0/equity/metadata/instruments"
	pathDividends   = "/api/v0/history/dividends"

	dividendsPageLimit = 50
	maxErrorBody       = 512
)

// DefaultLimiters returns the documented per-endpoint request pacing.
func DefaultLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		pathPortfolio:   rate.NewLimiter(rate.Every(5*time.Second), 1),
		pathCash:        rate.NewLimiter(rate.Every(2*time.Second), 1),
		pathInstruments: rate.NewLimiter(rate.Every(50*time.Second), 1),
		pathDividends:   rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Client talks to the Trading212 REST API for one API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiters   map[string]*rate.Limiter
	cache      *clientdata.Repository
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter overrides the pacing of one endpoint path
func WithLimiter(path string, limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiters[path] = limiter
	}
}

// WithInstrumentCache serves the instrument catalog from the client data cache
func WithInstrumentCache(cache *clientdata.Repository) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithoutRateLimits disables pacing entirely
func WithoutRateLimits() ClientOption {
	return func(c *Client) {
		for path := range c.limiters {
			c.limiters[path] = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// NewClient creates a new Trading212 client
func NewClient(apiKey string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    LiveBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiters:   DefaultLimiters(),
		log:        log.With().Str("client", "trading212").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-2xx response from Trading212
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trading212 API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a paced GET and decodes the JSON body into result.
// pathAndQuery may carry a query string; pacing is keyed on the path alone.
func (c *Client) get(ctx context.Context, pathAndQuery string, result interface{}) error {
	endpoint := pathAndQuery
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}

	if limiter, ok := c.limiters[endpoint]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Trading212 API request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Endpoint: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	return nil
}

// GetOpenPositions returns every open position in the account
func (c *Client) GetOpenPositions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := c.get(ctx, pathPortfolio, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetCash returns the account cash summary
func (c *Client) GetCash(ctx context.Context) (*Cash, error) {
	var cash Cash
	if err := c.get(ctx, pathCash, &cash); err != nil {
		return nil, err
	}
	return &cash, nil
}

// GetInstruments returns the full instrument catalog.
// The catalog is shared by every account, so it is cached per base URL when a cache is set.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, error) {
	if c.cache != nil {
		var cached []Instrument
		found, err := c.cache.GetIfFresh(clientdata.TableTrading212Instrument, c.baseURL, &cached)
		if err == nil && found {
			c.log.Debug().Int("instruments", len(cached)).Msg("Instrument catalog cache hit")
			return cached, nil
		}
	}

	var instruments []Instrument
	if err := c.get(ctx, pathInstruments, &instruments); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Store(clientdata.TableTrading212Instrument, c.baseURL, instruments, clientdata.TTLInstrumentsIndex); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache instrument catalog")
		}
	}
	return instruments, nil
}

// GetPaidOutDividends walks every page of dividend history for a ticker.
// An empty ticker returns the history of the whole account.
func (c *Client) GetPaidOutDividends(ctx context.Context, ticker string) ([]Dividend, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", dividendsPageLimit))
	if ticker != "" {
		q.Set("ticker", ticker)
	}
	next := pathDividends + "?" + q.Encode()

	var all []Dividend
	seen := make(map[string]bool)
	for next != "" {
		if seen[next] {
			return nil, fmt.Errorf("dividend pagination loop detected at %s", next)
		}
		seen[next] = true

		var page dividendsPage
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		next = ""
		if page.NextPagePath != nil {
			next = *page.NextPagePath
			if next != "" && !strings.HasPrefix(next, "/") {
				next = "/" + next
			}
		}
	}

	return all, nil
}
