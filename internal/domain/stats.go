package domain

// SyncStats counts per-item outcomes of a sync run
type SyncStats struct {
	DividendsProcessed int64 `json:"dividendsProcessed"`
	DividendsFailed    int64 `json:"dividendsFailed"`
	PositionsProcessed int64 `json:"positionsProcessed"`
	PositionsFailed    int64 `json:"positionsFailed"`
}

// Add returns the field-wise sum of s and other.
func (s SyncStats) Add(other SyncStats) SyncStats {
	return SyncStats{
		DividendsProcessed: s.DividendsProcessed + other.DividendsProcessed,
		DividendsFailed:    s.DividendsFailed + other.DividendsFailed,
		PositionsProcessed: s.PositionsProcessed + other.PositionsProcessed,
		PositionsFailed:    s.PositionsFailed + other.PositionsFailed,
	}
}
