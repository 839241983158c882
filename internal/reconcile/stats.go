// Package reconcile persists provider output that the store does not have yet
// and keeps account sync metadata current.
package reconcile

import (
	"sync/atomic"

	"github.com/aristath/portfolio-sync/internal/domain"
)

// Stats accumulates per-item outcomes. Safe for concurrent use by queue jobs.
type Stats struct {
	dividendsProcessed atomic.Int64
	dividendsFailed    atomic.Int64
	positionsProcessed atomic.Int64
	positionsFailed    atomic.Int64
}

// Snapshot returns the current counter values
func (s *Stats) Snapshot() domain.SyncStats {
	return domain.SyncStats{
		DividendsProcessed: s.dividendsProcessed.Load(),
		DividendsFailed:    s.dividendsFailed.Load(),
		PositionsProcessed: s.positionsProcessed.Load(),
		PositionsFailed:    s.positionsFailed.Load(),
	}
}
