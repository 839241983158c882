package trading212

import (
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
)

func transformInstrument(in Instrument) domain.Instrument {
	return domain.Instrument{
		Ticker:       in.Ticker,
		Type:         in.Type,
		ISIN:         in.ISIN,
		CurrencyCode: in.CurrencyCode,
		Name:         in.Name,
		ShortName:    in.ShortName,
	}
}

// companyName falls back to the raw ticker when no instrument metadata exists.
func companyName(ticker string, idx *domain.InstrumentIndex) string {
	if in, ok := idx.Lookup(ticker); ok && in.Name != "" {
		return in.Name
	}
	return ticker
}

func transformDividend(account domain.Account, position Position, d Dividend, idx *domain.InstrumentIndex) domain.DividendRecord {
	in, _ := idx.Lookup(position.Ticker)
	return domain.DividendRecord{
		UserID:              account.UserID,
		AccountID:           account.ID,
		Ticker:              GlobalTicker(position.Ticker, idx),
		InternalTicker:      d.Ticker,
		ISIN:                in.ISIN,
		CompanyName:         companyName(position.Ticker, idx),
		InternalID:          d.Reference,
		Quantity:            d.Quantity,
		Amount:              d.Amount,
		GrossAmountPerShare: d.GrossAmountPerShare,
		PaidOn:              d.PaidOn,
		Metadata: map[string]interface{}{
			"type": d.Type,
		},
	}
}

func transformPosition(p Position, idx *domain.InstrumentIndex) domain.PositionRecord {
	in, _ := idx.Lookup(p.Ticker)
	return domain.PositionRecord{
		Type:           in.Type,
		ISIN:           in.ISIN,
		CurrencyCode:   in.CurrencyCode,
		CompanyName:    companyName(p.Ticker, idx),
		InternalTicker: p.Ticker,
		Ticker:         GlobalTicker(p.Ticker, idx),
		Quantity:       p.Quantity,
		AveragePrice:   p.AveragePrice,
		CurrentPrice:   p.CurrentPrice,
		PPL:            p.PPL,
		FxPPL:          valueOrZero(p.FxPPL),
	}
}

func transformBalance(c *Cash) domain.Balance {
	return domain.Balance{
		Free:     c.Free,
		Total:    c.Total,
		PPL:      c.PPL,
		Result:   c.Result,
		Invested: c.Invested,
		PieCash:  valueOrZero(c.PieCash),
		Blocked:  valueOrZero(c.Blocked),
	}
}

func transformSnapshot(account domain.Account, positions []Position, cash *Cash, idx *domain.InstrumentIndex, now time.Time) *domain.AccountSnapshot {
	snapshot := &domain.AccountSnapshot{
		ID:        domain.SnapshotID(account.ID, now),
		AccountID: account.ID,
		SyncedOn:  now.UTC(),
		Balance:   transformBalance(cash),
		Metadata:  map[string]interface{}{},
		Positions: make([]domain.PositionRecord, 0, len(positions)),
	}
	for _, p := range positions {
		snapshot.Positions = append(snapshot.Positions, transformPosition(p, idx))
	}
	return snapshot
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
