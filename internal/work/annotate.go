package work

import (
	"context"

	"github.com/aristath/portfolio-sync/internal/currency"
	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/rs/zerolog"
)

// annotateSnapshot adds exchange rates and converted totals to the snapshot metadata.
// Rate lookup failures are logged and leave the snapshot as the provider returned it.
func (r *Runner) annotateSnapshot(ctx context.Context, account domain.Account, snapshot *domain.AccountSnapshot, log zerolog.Logger) {
	if r.rates == nil || snapshot == nil {
		return
	}

	table, err := r.rates.Latest(ctx, r.opts.RatesBase)
	if err != nil {
		log.Warn().Err(err).Str("base", r.opts.RatesBase).Msg("Exchange rates unavailable, snapshot not annotated")
		return
	}

	target := currency.ParseCode(account.Metadata.CurrencyCode)
	if target == "" {
		target = table.Base
	}

	if snapshot.Metadata == nil {
		snapshot.Metadata = make(map[string]interface{})
	}
	snapshot.Metadata["exchangeRates"] = table.Rates
	snapshot.Metadata["exchangeRatesBase"] = table.Base
	snapshot.Metadata["totals"] = currency.SnapshotTotals(snapshot.Positions, target, table)
}
