// Package store is the REST client for the portfolio store API that holds
// accounts, dividends and snapshots.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Client talks to the store API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a store client authenticating with token
func NewClient(baseURL, token string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log.With().Str("client", "store").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx store response. It unwraps to domain.ErrNotFound for 404
// and domain.ErrAlreadyExists for 409.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap maps well-known statuses onto domain errors
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrAlreadyExists
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-token", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Store API request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Endpoint: method + " " + path}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func accountPath(account domain.Account, resource string) string {
	return fmt.Sprintf("/users/%d/accounts/%d/%s", account.UserID, account.ID, resource)
}

// ListAccounts returns every account across all users
func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListUserAccounts returns the accounts of one user
func (c *Client) ListUserAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/accounts", userID), nil, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateAccount replaces the full account record
func (c *Client) UpdateAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	var updated domain.Account
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/accounts/%d", account.ID), nil, account, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindDividend returns the account's dividend with internalID, or nil when absent
func (c *Client) FindDividend(ctx context.Context, account domain.Account, internalID string) (*domain.DividendRecord, error) {
	var dividends []domain.DividendRecord
	q := url.Values{"internalId": []string{internalID}}
	if err := c.do(ctx, http.MethodGet, accountPath(account, "dividends"), q, nil, &dividends); err != nil {
		return nil, err
	}
	if len(dividends) == 0 {
		return nil, nil
	}
	return &dividends[0], nil
}

// ListDividends returns all dividends of the account, newest payment first
func (c *Client) ListDividends(ctx context.Context, account domain.Account) ([]domain.DividendRecord, error) {
	var dividends []domain.DividendRecord
	q := url.Values{"_sort": []string{"paidOn"}, "_order": []string{"desc"}}
	if err := c.do(ctx, http.MethodGet, accountPath(account, "dividends"), q, nil, &dividends); err != nil {
		return nil, err
	}
	return dividends, nil
}

// CreateDividend stores a new dividend
func (c *Client) CreateDividend(ctx context.Context, account domain.Account, dividend domain.DividendRecord) (*domain.DividendRecord, error) {
	var created domain.DividendRecord
	if err := c.do(ctx, http.MethodPost, accountPath(account, "dividends"), nil, dividend, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// FindSnapshot returns the account's snapshot with snapshotID, or nil when absent.
// The lookup is by id, not syncedOn: the stored copy carries a refreshed syncedOn,
// while the id keeps the provider capture time.
func (c *Client) FindSnapshot(ctx context.Context, account domain.Account, snapshotID string) (*domain.AccountSnapshot, error) {
	var snapshots []domain.AccountSnapshot
	q := url.Values{"id": []string{snapshotID}}
	if err := c.do(ctx, http.MethodGet, accountPath(account, "snapshots"), q, nil, &snapshots); err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// SnapshotQuery filters ListSnapshots. Zero values are ignored.
type SnapshotQuery struct {
	SyncedOn    *time.Time
	SyncedOnDay string
}

// ListSnapshots returns the account's snapshots, newest first
func (c *Client) ListSnapshots(ctx context.Context, account domain.Account, query SnapshotQuery) ([]domain.AccountSnapshot, error) {
	q := url.Values{"_sort": []string{"syncedOn"}, "_order": []string{"desc"}}
	if query.SyncedOn != nil {
		q.Set("syncedOn", query.SyncedOn.UTC().Format(time.RFC3339Nano))
	}
	if query.SyncedOnDay != "" {
		q.Set("syncedOnDay", query.SyncedOnDay)
	}

	var snapshots []domain.AccountSnapshot
	if err := c.do(ctx, http.MethodGet, accountPath(account, "snapshots"), q, nil, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// CreateSnapshot stores a new snapshot
func (c *Client) CreateSnapshot(ctx context.Context, account domain.Account, snapshot domain.AccountSnapshot) (*domain.AccountSnapshot, error) {
	var created domain.AccountSnapshot
	if err := c.do(ctx, http.MethodPost, accountPath(account, "snapshots"), nil, snapshot, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
