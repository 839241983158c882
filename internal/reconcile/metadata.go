package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/rs/zerolog"
)

// AccountStore persists full account records
type AccountStore interface {
	UpdateAccount(ctx context.Context, account domain.Account) (*domain.Account, error)
}

// MetadataUpdater merges metadata patches into the latest known account record and
// writes it back. Updates are serialised so concurrent patches accumulate.
type MetadataUpdater struct {
	store AccountStore
	log   zerolog.Logger

	mu     sync.Mutex
	latest map[int64]domain.Account
}

// NewMetadataUpdater creates an updater
func NewMetadataUpdater(store AccountStore, log zerolog.Logger) *MetadataUpdater {
	return &MetadataUpdater{
		store:  store,
		log:    log.With().Str("component", "metadata_updater").Logger(),
		latest: make(map[int64]domain.Account),
	}
}

// Update applies patch on top of the newest metadata seen for the account and persists it.
func (u *MetadataUpdater) Update(ctx context.Context, account domain.Account, patch domain.MetadataPatch) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	base, ok := u.latest[account.ID]
	if !ok {
		base = account
	}
	next := base
	next.Metadata = base.Metadata.Apply(patch)

	log := accountLogger(u.log, account)
	event := log.Info()
	if next.Metadata.DividendsSyncedOn != nil {
		event = event.Time("dividends_synced_on", *next.Metadata.DividendsSyncedOn)
	}
	if next.Metadata.AccountSnapshotSyncedOn != nil {
		event = event.Time("account_snapshot_synced_on", *next.Metadata.AccountSnapshotSyncedOn)
	}
	event.Msg("Updating account metadata")

	updated, err := u.store.UpdateAccount(ctx, next)
	if err != nil {
		log.Error().Err(err).Msg("Account metadata update failed")
		return fmt.Errorf("failed to update metadata of account %d: %w", account.ID, err)
	}
	if updated != nil {
		next = *updated
	}
	u.latest[account.ID] = next

	log.Info().Msg("Account metadata updated")
	return nil
}

// Latest returns the newest account record written for id, if any
func (u *MetadataUpdater) Latest(id int64) (domain.Account, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	a, ok := u.latest[id]
	return a, ok
}
