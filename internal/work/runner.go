package work

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/portfolio-sync/internal/clients/exchangerate"
	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/providers"
	"github.com/aristath/portfolio-sync/internal/queue"
	"github.com/aristath/portfolio-sync/internal/reconcile"
	"github.com/rs/zerolog"
)

// Store is everything the sync pass needs from the store API
type Store interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	reconcile.Store
	reconcile.AccountStore
}

// RateSource provides exchange rate tables for snapshot annotation
type RateSource interface {
	Latest(ctx context.Context, base string) (*exchangerate.RateTable, error)
}

// Options tunes a sync pass
type Options struct {
	// Concurrency is the queue worker ceiling (default 5)
	Concurrency int
	// ContinueOnAccountError isolates account failures instead of aborting the run
	ContinueOnAccountError bool
	// StrictMetadataOrdering makes metadata updates wait for their item jobs
	StrictMetadataOrdering bool
	// RatesBase is the base currency requested from the rate source (default USD)
	RatesBase string
}

// Runner executes sync passes over every account in the store
type Runner struct {
	store   Store
	factory *providers.Factory
	rates   RateSource
	opts    Options
	now     func() time.Time
	log     zerolog.Logger
}

// NewRunner creates a runner
func NewRunner(store Store, factory *providers.Factory, opts Options, log zerolog.Logger) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = queue.DefaultConcurrency
	}
	if opts.RatesBase == "" {
		opts.RatesBase = "USD"
	}
	return &Runner{
		store:   store,
		factory: factory,
		opts:    opts,
		now:     time.Now,
		log:     log.With().Str("component", "sync").Logger(),
	}
}

// SetRateSource enables exchange rate annotation of snapshots
func (r *Runner) SetRateSource(rates RateSource) {
	r.rates = rates
}

// SetClock overrides the time source
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// pass holds the state shared by every account of one Run
type pass struct {
	start      time.Time
	queue      *queue.Queue
	reconciler *reconcile.Reconciler
	updater    *reconcile.MetadataUpdater
}

// Run performs one sync pass and returns the aggregated stats.
// A non-nil error means the run did not complete cleanly and the process should exit non-zero.
func (r *Runner) Run(ctx context.Context) (domain.SyncStats, error) {
	var totals domain.SyncStats
	start := time.Now()

	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("Sync failed")
		return totals, fmt.Errorf("failed to list accounts: %w", err)
	}

	reconciler := reconcile.New(r.store, r.log)
	reconciler.SetClock(r.now)

	p := &pass{
		start:      r.now().UTC(),
		queue:      queue.New(r.opts.Concurrency, r.log),
		reconciler: reconciler,
		updater:    reconcile.NewMetadataUpdater(r.store, r.log),
	}

	r.log.Info().Int("accounts", len(accounts)).Int("concurrency", r.opts.Concurrency).Msg("Starting sync")

	var failures []error
	for _, account := range accounts {
		stats, err := r.syncAccount(ctx, p, account)
		totals = totals.Add(stats)
		if err == nil {
			continue
		}

		err = fmt.Errorf("account %d: %w", account.ID, err)
		if !r.opts.ContinueOnAccountError {
			r.log.Error().Err(err).Interface("stats", totals).Msg("Sync failed")
			return totals, err
		}
		r.log.Error().Err(err).Int64("account_id", account.ID).Msg("Account sync failed, continuing")
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		r.log.Error().Err(err).Interface("stats", totals).Int("failed_accounts", len(failures)).Msg("Sync failed")
		return totals, err
	}

	r.log.Info().Interface("stats", totals).Dur("duration", time.Since(start)).Msg("Sync completed successfully")
	return totals, nil
}

// errorList collects job errors from concurrent queue jobs
type errorList struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorList) add(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *errorList) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.errs...)
}

func (r *Runner) syncAccount(ctx context.Context, p *pass, account domain.Account) (domain.SyncStats, error) {
	log := r.log.With().
		Int64("user_id", account.UserID).
		Int64("account_id", account.ID).
		Str("account_name", account.Name).
		Str("provider", string(account.Provider)).
		Logger()

	started := time.Now()
	log.Info().Msg("Initialising provider sync")

	provider, err := r.factory.New(account)
	if err != nil {
		return domain.SyncStats{}, err
	}

	cfg := provider.SyncConfig()
	syncDividends := providers.ShouldSyncDividends(cfg, account, p.start)
	syncPositions := providers.ShouldSyncPositions(cfg, account, p.start)

	if !syncDividends {
		next := providers.NextSyncDue(*account.Metadata.DividendsSyncedOn, cfg.Dividends.FrequencyDays)
		log.Info().Msgf("Skipping dividends sync. Next sync due on %s", next.Format("2006-01-02"))
	}
	if !syncPositions {
		next := providers.NextSyncDue(*account.Metadata.AccountSnapshotSyncedOn, cfg.Positions.FrequencyDays)
		log.Info().Msgf("Skipping positions sync. Next sync due on %s", next.Format("2006-01-02"))
	}

	var (
		dividends []domain.DividendRecord
		snapshot  *domain.AccountSnapshot
	)

	if syncDividends || syncPositions {
		idx, err := provider.LoadInstruments(ctx)
		if err != nil {
			return domain.SyncStats{}, fmt.Errorf("failed to load instruments: %w", err)
		}

		if syncDividends {
			log.Info().Msg("Fetching dividends from provider")
			dividends, err = provider.Dividends(ctx, idx)
			if err != nil {
				return domain.SyncStats{}, fmt.Errorf("failed to fetch dividends: %w", err)
			}
			log.Info().Int("count", len(dividends)).Msg("Provider dividends retrieved")
		}

		if syncPositions {
			log.Info().Msg("Fetching account snapshot from provider")
			snapshot, err = provider.Snapshot(ctx, idx)
			if err != nil {
				return domain.SyncStats{}, fmt.Errorf("failed to fetch account snapshot: %w", err)
			}
			r.annotateSnapshot(ctx, account, snapshot, log)
			log.Info().Int("positions_count", len(snapshot.Positions)).Msg("Provider account snapshot retrieved")
		}
	}

	stats := &reconcile.Stats{}
	jobErrs := &errorList{}

	if syncDividends {
		var items sync.WaitGroup
		for _, d := range dividends {
			items.Add(1)
			p.queue.Add(ctx, "dividend:"+d.InternalID, func(ctx context.Context) {
				defer items.Done()
				p.reconciler.ProcessDividend(ctx, account, d, stats)
			})
		}
		p.queue.Add(ctx, "metadata:dividends", r.metadataJob(p, account, &items, domain.MetadataPatch{DividendsSyncedOn: &p.start}, jobErrs))
	}

	if syncPositions {
		var items sync.WaitGroup
		snap := *snapshot
		items.Add(1)
		p.queue.Add(ctx, "snapshot:"+snap.ID, func(ctx context.Context) {
			defer items.Done()
			p.reconciler.ProcessSnapshot(ctx, account, snap, stats)
		})
		p.queue.Add(ctx, "metadata:positions", r.metadataJob(p, account, &items, domain.MetadataPatch{AccountSnapshotSyncedOn: &p.start}, jobErrs))
	}

	if err := p.queue.OnIdle(ctx); err != nil {
		return stats.Snapshot(), fmt.Errorf("waiting for account jobs: %w", err)
	}

	result := stats.Snapshot()
	log.Info().
		Dur("duration", time.Since(started)).
		Interface("stats", result).
		Msg("Account processing completed")

	return result, jobErrs.err()
}

func (r *Runner) metadataJob(p *pass, account domain.Account, items *sync.WaitGroup, patch domain.MetadataPatch, errs *errorList) queue.Job {
	return func(ctx context.Context) {
		if r.opts.StrictMetadataOrdering {
			items.Wait()
		}
		if err := p.updater.Update(ctx, account, patch); err != nil {
			errs.add(err)
		}
	}
}
