// Package accounts provides the account repository backing the store API.
package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles account database operations in store.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// accountColumns must match scanAccount
const accountColumns = `id, user_id, name, provider, token, metadata`

// NewRepository creates a new account repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "account").Logger(),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		account  domain.Account
		provider string
		metadata string
	)
	if err := row.Scan(&account.ID, &account.UserID, &account.Name, &provider, &account.Token, &metadata); err != nil {
		return domain.Account{}, err
	}
	account.Provider = domain.ProviderKind(provider)
	if err := json.Unmarshal([]byte(metadata), &account.Metadata); err != nil {
		return domain.Account{}, fmt.Errorf("failed to decode metadata of account %d: %w", account.ID, err)
	}
	return account, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// List returns every account ordered by id
func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	return r.query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id")
}

// ListByUser returns the accounts owned by userID
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	return r.query(ctx, "SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id", userID)
}

// GetByID returns the account or domain.ErrNotFound
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &account, nil
}

// Create inserts a new account and populates its ID
func (r *Repository) Create(ctx context.Context, account *domain.Account) error {
	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	now := time.Now().Unix()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, provider, token, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, account.UserID, account.Name, string(account.Provider), account.Token, string(metadata), now, now)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	account.ID = id

	r.log.Info().Int64("account_id", id).Int64("user_id", account.UserID).Str("provider", string(account.Provider)).Msg("Account created")
	return nil
}

// Replace overwrites every field of an existing account.
// Returns domain.ErrNotFound when the account does not exist.
func (r *Repository) Replace(ctx context.Context, account domain.Account) error {
	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET user_id = ?, name = ?, provider = ?, token = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, account.UserID, account.Name, string(account.Provider), account.Token, string(metadata), time.Now().Unix(), account.ID)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", account.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	r.log.Debug().Int64("account_id", account.ID).Msg("Account replaced")
	return nil
}
