// Package providers defines the contract every brokerage integration implements
// and the policy that decides when an account is due for a sync.
package providers

import (
	"context"

	"github.com/aristath/portfolio-sync/internal/domain"
)

// Provider fetches authoritative data for a single account from a brokerage.
// Implementations never retry; errors are returned to the caller as-is.
type Provider interface {
	// SyncConfig returns the per-domain sync cadence
	SyncConfig() SyncConfig

	// LoadInstruments builds the instrument index for the account's held tickers.
	// The returned index is passed into Dividends and Snapshot.
	LoadInstruments(ctx context.Context) (*domain.InstrumentIndex, error)

	// Dividends returns the full paid-dividend history for every open position
	Dividends(ctx context.Context, idx *domain.InstrumentIndex) ([]domain.DividendRecord, error)

	// Snapshot captures current cash and open positions
	Snapshot(ctx context.Context, idx *domain.InstrumentIndex) (*domain.AccountSnapshot, error)
}

// FrequencyConfig is the minimum number of days between two syncs of one data domain
type FrequencyConfig struct {
	FrequencyDays int `json:"frequencyDays"`
}

// SyncConfig groups the cadence of every synced data domain
type SyncConfig struct {
	Dividends FrequencyConfig `json:"dividends"`
	Positions FrequencyConfig `json:"positions"`
}

// DefaultSyncConfig syncs dividends weekly and positions daily.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Dividends: FrequencyConfig{FrequencyDays: 7},
		Positions: FrequencyConfig{FrequencyDays: 1},
	}
}
