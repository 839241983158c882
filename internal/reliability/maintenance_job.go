// Package reliability keeps the local SQLite databases healthy.
package reliability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/portfolio-sync/internal/database"
	"github.com/rs/zerolog"
)

// MaintenanceJob checks integrity, truncates the WAL and vacuums each database
type MaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job for the named databases
func NewMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Run maintains every database. A failing database does not stop the others.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := j.maintain(ctx, j.databases[name], name); err != nil {
			j.log.Error().Str("database", name).Err(err).Msg("Maintenance failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("failed", len(errs)).
		Msg("Database maintenance completed")
	return errors.Join(errs...)
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

func (j *MaintenanceJob) maintain(ctx context.Context, db *database.DB, name string) error {
	if err := db.HealthCheck(ctx); err != nil {
		return err
	}

	conn := db.Conn()
	if _, err := conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	sizeBefore, err := sizeMB(ctx, db)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}
	sizeAfter, err := sizeMB(ctx, db)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")
	return nil
}

func sizeMB(ctx context.Context, db *database.DB) (float64, error) {
	var pageCount, pageSize int64
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}
	return float64(pageCount*pageSize) / 1024 / 1024, nil
}
