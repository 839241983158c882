// Package snapshots provides the account snapshot repository backing the store API.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles snapshot database operations in store.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// snapshotColumns must match scanSnapshot
const snapshotColumns = `id, account_id, synced_on, balance, metadata, positions`

// Filter narrows List. Zero values are ignored.
type Filter struct {
	ID          string
	SyncedOn    *time.Time
	SyncedOnDay string // yyyy-MM-dd, UTC
	Ascending   bool
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// List returns the account's snapshots ordered by syncedOn, newest first unless filter.Ascending
func (r *Repository) List(ctx context.Context, accountID int64, filter Filter) ([]domain.AccountSnapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots WHERE account_id = ?"
	args := []interface{}{accountID}
	if filter.ID != "" {
		query += " AND id = ?"
		args = append(args, filter.ID)
	}
	if filter.SyncedOn != nil {
		query += " AND synced_on = ?"
		args = append(args, filter.SyncedOn.UTC().UnixMilli())
	}
	if filter.SyncedOnDay != "" {
		query += " AND synced_day = ?"
		args = append(args, filter.SyncedOnDay)
	}
	if filter.Ascending {
		query += " ORDER BY synced_on ASC"
	} else {
		query += " ORDER BY synced_on DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]domain.AccountSnapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Create inserts a snapshot. The ID defaults to domain.SnapshotID of its syncedOn.
// Returns domain.ErrAlreadyExists when the ID is taken.
func (r *Repository) Create(ctx context.Context, snapshot *domain.AccountSnapshot) error {
	if snapshot.SyncedOn.IsZero() {
		return fmt.Errorf("syncedOn is required")
	}
	if snapshot.ID == "" {
		snapshot.ID = domain.SnapshotID(snapshot.AccountID, snapshot.SyncedOn)
	}
	if snapshot.Metadata == nil {
		snapshot.Metadata = map[string]interface{}{}
	}
	if snapshot.Positions == nil {
		snapshot.Positions = []domain.PositionRecord{}
	}

	balance, err := json.Marshal(snapshot.Balance)
	if err != nil {
		return fmt.Errorf("failed to encode balance: %w", err)
	}
	metadata, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	positions, err := json.Marshal(snapshot.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, account_id, synced_on, synced_day, balance, metadata, positions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		snapshot.ID,
		snapshot.AccountID,
		snapshot.SyncedOn.UTC().UnixMilli(),
		domain.SnapshotDay(snapshot.SyncedOn),
		string(balance),
		string(metadata),
		string(positions),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: snapshot %s", domain.ErrAlreadyExists, snapshot.ID)
		}
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	r.log.Info().
		Int64("account_id", snapshot.AccountID).
		Str("snapshot_id", snapshot.ID).
		Int("positions_count", len(snapshot.Positions)).
		Msg("Snapshot recorded")
	return nil
}

func scanSnapshot(rows *sql.Rows) (domain.AccountSnapshot, error) {
	var (
		s                            domain.AccountSnapshot
		syncedOn                     int64
		balance, metadata, positions string
	)
	if err := rows.Scan(&s.ID, &s.AccountID, &syncedOn, &balance, &metadata, &positions); err != nil {
		return s, err
	}

	s.SyncedOn = time.UnixMilli(syncedOn).UTC()
	if err := json.Unmarshal([]byte(balance), &s.Balance); err != nil {
		return s, fmt.Errorf("failed to decode balance of snapshot %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &s.Metadata); err != nil {
		return s, fmt.Errorf("failed to decode metadata of snapshot %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(positions), &s.Positions); err != nil {
		return s, fmt.Errorf("failed to decode positions of snapshot %s: %w", s.ID, err)
	}
	return s, nil
}
