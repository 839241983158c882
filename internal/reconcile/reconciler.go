package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/rs/zerolog"
)

// Store is the persistence the reconciler diffs against
type Store interface {
	FindDividend(ctx context.Context, account domain.Account, internalID string) (*domain.DividendRecord, error)
	CreateDividend(ctx context.Context, account domain.Account, dividend domain.DividendRecord) (*domain.DividendRecord, error)
	FindSnapshot(ctx context.Context, account domain.Account, snapshotID string) (*domain.AccountSnapshot, error)
	CreateSnapshot(ctx context.Context, account domain.Account, snapshot domain.AccountSnapshot) (*domain.AccountSnapshot, error)
}

type claimKey struct {
	accountID  int64
	internalID string
}

// Reconciler creates records that are missing from the store.
// Every Process call swallows its own errors into Stats so sibling jobs keep running.
type Reconciler struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger

	mu     sync.Mutex
	claims map[claimKey]struct{}
}

// New creates a reconciler backed by store
func New(store Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		now:    time.Now,
		log:    log.With().Str("component", "reconciler").Logger(),
		claims: make(map[claimKey]struct{}),
	}
}

// SetClock overrides the time source used for syncedOn stamps
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// claim reserves (account, internalId) for one caller. Duplicates within a run lose.
func (r *Reconciler) claim(key claimKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.claims[key]; taken {
		return false
	}
	r.claims[key] = struct{}{}
	return true
}

func (r *Reconciler) release(key claimKey) {
	r.mu.Lock()
	delete(r.claims, key)
	r.mu.Unlock()
}

func accountLogger(log zerolog.Logger, account domain.Account) zerolog.Logger {
	return log.With().
		Int64("user_id", account.UserID).
		Int64("account_id", account.ID).
		Str("account_name", account.Name).
		Str("provider", string(account.Provider)).
		Logger()
}

// ProcessDividend persists dividend unless a record with the same internalId already exists.
func (r *Reconciler) ProcessDividend(ctx context.Context, account domain.Account, dividend domain.DividendRecord, stats *Stats) {
	log := accountLogger(r.log, account).With().
		Str("ticker", dividend.Ticker).
		Float64("amount", dividend.Amount).
		Str("internal_id", dividend.InternalID).
		Logger()

	// an empty internalId cannot be looked up: the store treats it as no filter
	if strings.TrimSpace(dividend.InternalID) == "" {
		log.Error().Msg("Dividend has no internalId, cannot be processed")
		stats.dividendsFailed.Add(1)
		return
	}

	key := claimKey{accountID: account.ID, internalID: dividend.InternalID}
	if !r.claim(key) {
		log.Debug().Msg("Duplicate dividend in batch, skipping")
		return
	}

	created, err := r.createDividend(ctx, account, dividend, log)
	if err != nil {
		r.release(key)
		log.Error().Err(err).Msg("Dividend failed to be processed")
		stats.dividendsFailed.Add(1)
		return
	}
	if created {
		stats.dividendsProcessed.Add(1)
	}
}

func (r *Reconciler) createDividend(ctx context.Context, account domain.Account, dividend domain.DividendRecord, log zerolog.Logger) (bool, error) {
	existing, err := r.store.FindDividend(ctx, account, dividend.InternalID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	log.Info().Msg("Processing new dividend")

	syncedOn := r.now().UTC()
	dividend.SyncedOn = &syncedOn
	stored, err := r.store.CreateDividend(ctx, account, dividend)
	if errors.Is(err, domain.ErrAlreadyExists) {
		log.Debug().Msg("Dividend stored concurrently, skipping")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log.Info().Str("id", stored.ID).Msg("Dividend successfully stored")
	return true, nil
}

// ProcessSnapshot persists snapshot unless the store already holds it.
// The snapshot ID encodes the provider syncedOn, so it is the lookup key;
// the stored copy gets a refreshed syncedOn.
func (r *Reconciler) ProcessSnapshot(ctx context.Context, account domain.Account, snapshot domain.AccountSnapshot, stats *Stats) {
	log := accountLogger(r.log, account).With().
		Time("synced_on", snapshot.SyncedOn).
		Int("positions_count", len(snapshot.Positions)).
		Logger()

	created, err := r.createSnapshot(ctx, account, snapshot, log)
	if err != nil {
		log.Error().Err(err).Msg("Account snapshot failed to be processed")
		stats.positionsFailed.Add(1)
		return
	}
	if created {
		stats.positionsProcessed.Add(1)
	}
}

func (r *Reconciler) createSnapshot(ctx context.Context, account domain.Account, snapshot domain.AccountSnapshot, log zerolog.Logger) (bool, error) {
	if snapshot.ID == "" {
		snapshot.ID = domain.SnapshotID(account.ID, snapshot.SyncedOn)
	}

	existing, err := r.store.FindSnapshot(ctx, account, snapshot.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	log.Info().Msg("Processing new account snapshot")

	snapshot.SyncedOn = r.now().UTC()
	stored, err := r.store.CreateSnapshot(ctx, account, snapshot)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log.Info().Str("id", stored.ID).Msg("Account snapshot successfully stored")
	return true, nil
}
