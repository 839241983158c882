// Package dividends provides the dividend repository backing the store API.
// Dividends are unique per (account, internal id); the internal id is the
// provider's payment reference.
package dividends

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles dividend database operations in store.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// dividendColumns must match scanDividend
const dividendColumns = `id, user_id, account_id, ticker, internal_ticker, isin, company_name, internal_id,
quantity, amount, gross_amount_per_share, paid_on, metadata, synced_on`

// Filter narrows List. Zero values are ignored.
type Filter struct {
	InternalID string
	Ascending  bool
}

// NewRepository creates a new dividend repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "dividend").Logger(),
	}
}

// List returns the account's dividends ordered by payment date, newest first unless filter.Ascending
func (r *Repository) List(ctx context.Context, accountID int64, filter Filter) ([]domain.DividendRecord, error) {
	query := "SELECT " + dividendColumns + " FROM dividends WHERE account_id = ?"
	args := []interface{}{accountID}
	if filter.InternalID != "" {
		query += " AND internal_id = ?"
		args = append(args, filter.InternalID)
	}
	if filter.Ascending {
		query += " ORDER BY paid_on ASC"
	} else {
		query += " ORDER BY paid_on DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	dividends := make([]domain.DividendRecord, 0)
	for rows.Next() {
		d, err := scanDividend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		dividends = append(dividends, d)
	}
	return dividends, rows.Err()
}

// Create inserts a dividend, assigning an ID when it has none.
// Returns domain.ErrAlreadyExists when the account already has the internal id.
func (r *Repository) Create(ctx context.Context, dividend *domain.DividendRecord) error {
	if dividend.ID == "" {
		dividend.ID = uuid.NewString()
	}
	if dividend.Metadata == nil {
		dividend.Metadata = map[string]interface{}{}
	}
	metadata, err := json.Marshal(dividend.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	var syncedOn interface{}
	if dividend.SyncedOn != nil {
		syncedOn = dividend.SyncedOn.UTC().UnixMilli()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dividends
		(id, user_id, account_id, ticker, internal_ticker, isin, company_name, internal_id,
		 quantity, amount, gross_amount_per_share, paid_on, metadata, synced_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		dividend.ID,
		dividend.UserID,
		dividend.AccountID,
		dividend.Ticker,
		dividend.InternalTicker,
		dividend.ISIN,
		dividend.CompanyName,
		dividend.InternalID,
		dividend.Quantity,
		dividend.Amount,
		dividend.GrossAmountPerShare,
		dividend.PaidOn.UTC().UnixMilli(),
		string(metadata),
		syncedOn,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: dividend %s", domain.ErrAlreadyExists, dividend.InternalID)
		}
		return fmt.Errorf("failed to create dividend: %w", err)
	}

	r.log.Info().
		Int64("account_id", dividend.AccountID).
		Str("ticker", dividend.Ticker).
		Float64("amount", dividend.Amount).
		Str("internal_id", dividend.InternalID).
		Msg("Dividend recorded")
	return nil
}

func scanDividend(rows *sql.Rows) (domain.DividendRecord, error) {
	var (
		d        domain.DividendRecord
		paidOn   int64
		metadata string
		syncedOn sql.NullInt64
	)
	err := rows.Scan(
		&d.ID, &d.UserID, &d.AccountID, &d.Ticker, &d.InternalTicker, &d.ISIN, &d.CompanyName, &d.InternalID,
		&d.Quantity, &d.Amount, &d.GrossAmountPerShare, &paidOn, &metadata, &syncedOn,
	)
	if err != nil {
		return d, err
	}

	d.PaidOn = time.UnixMilli(paidOn).UTC()
	if syncedOn.Valid {
		t := time.UnixMilli(syncedOn.Int64).UTC()
		d.SyncedOn = &t
	}
	if err := json.Unmarshal([]byte(metadata), &d.Metadata); err != nil {
		return d, fmt.Errorf("failed to decode metadata of dividend %s: %w", d.ID, err)
	}
	return d, nil
}
