package providers

import (
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
)

// ShouldSync reports whether a domain last synced at last is due again at now.
// A missing last sync is always due; otherwise due once now >= last + frequencyDays.
func ShouldSync(last *time.Time, frequencyDays int, now time.Time) bool {
	if last == nil {
		return true
	}
	return !now.Before(NextSyncDue(*last, frequencyDays))
}

// NextSyncDue returns the instant a domain synced at last becomes due.
func NextSyncDue(last time.Time, frequencyDays int) time.Time {
	return last.AddDate(0, 0, frequencyDays)
}

// ShouldSyncDividends applies the dividends cadence to the account's metadata.
func ShouldSyncDividends(cfg SyncConfig, account domain.Account, now time.Time) bool {
	return ShouldSync(account.Metadata.DividendsSyncedOn, cfg.Dividends.FrequencyDays, now)
}

// ShouldSyncPositions applies the positions cadence to the account's metadata.
func ShouldSyncPositions(cfg SyncConfig, account domain.Account, now time.Time) bool {
	return ShouldSync(account.Metadata.AccountSnapshotSyncedOn, cfg.Positions.FrequencyDays, now)
}
