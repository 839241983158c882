// Package earnings refreshes the published earnings calendar asset.
package earnings

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/portfolio-sync/internal/assets"
	"github.com/aristath/portfolio-sync/internal/clients/stocktwits"
	"github.com/rs/zerolog"
)

// CalendarSource provides the earnings calendar for a date range
type CalendarSource interface {
	EarningsCalendar(ctx context.Context, from, to time.Time) (*stocktwits.Calendar, error)
}

// RefreshJob fetches the current calendar year and publishes it
type RefreshJob struct {
	source     CalendarSource
	publishers []assets.Publisher
	now        func() time.Time
	log        zerolog.Logger
}

// NewRefreshJob creates the job. At least one publisher is expected.
func NewRefreshJob(source CalendarSource, log zerolog.Logger, publishers ...assets.Publisher) *RefreshJob {
	return &RefreshJob{
		source:     source,
		publishers: publishers,
		now:        time.Now,
		log:        log.With().Str("job", "earnings_refresh").Logger(),
	}
}

// SetClock overrides the time source
func (j *RefreshJob) SetClock(now func() time.Time) {
	j.now = now
}

// Run fetches and publishes the calendar
func (j *RefreshJob) Run(ctx context.Context) error {
	from, to := stocktwits.YearRange(j.now())
	dateRange := from.Format("2006-01-02") + " / " + to.Format("2006-01-02")

	calendar, err := j.source.EarningsCalendar(ctx, from, to)
	if err != nil {
		j.log.Error().Err(err).Str("date_range", dateRange).Msg("Failed to fetch earnings calendar")
		return fmt.Errorf("failed to fetch earnings calendar: %w", err)
	}

	data, err := assets.EncodeJSON(calendar)
	if err != nil {
		return err
	}

	if err := assets.PublishAll(ctx, data, j.publishers...); err != nil {
		j.log.Error().Err(err).Msg("Failed to publish earnings calendar")
		return err
	}

	targets := make([]string, 0, len(j.publishers))
	for _, p := range j.publishers {
		targets = append(targets, p.Name())
	}
	j.log.Info().
		Strs("targets", targets).
		Str("date_range", dateRange).
		Int("days", len(calendar.Earnings)).
		Msg("Earnings calendar data saved successfully")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "earnings_refresh"
}
