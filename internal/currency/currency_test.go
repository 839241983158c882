package currency

import (
	"fmt"
	"testing"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/stretchr/testify/assert"
)

type fixedRates map[string]float64

// Convert treats the map as units of each currency per GBP.
func (r fixedRates) Convert(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	f, ok := r[from]
	if !ok {
		return 0, fmt.Errorf("no rate for %s", from)
	}
	t, ok := r[to]
	if !ok {
		return 0, fmt.Errorf("no rate for %s", to)
	}
	return amount / f * t, nil
}

func TestParseCodeAndValue(t *testing.T) {
	assert.True(t, IsGBX("GBX"))
	assert.Equal(t, "GBP", ParseCode("GBX"))
	assert.Equal(t, "USD", ParseCode("USD"))
	assert.Equal(t, 12.34, ParseValue(1234, "GBX"))
	assert.Equal(t, 1234.0, ParseValue(1234, "EUR"))
}

func TestSnapshotTotals(t *testing.T) {
	positions := []domain.PositionRecord{
		{CurrencyCode: "GBX", Quantity: 10, CurrentPrice: 8000, AveragePrice: 7000},
		{CurrencyCode: "USD", Quantity: 2, CurrentPrice: 125, AveragePrice: 100},
		{CurrencyCode: "GBP", Quantity: 1, CurrentPrice: 50, AveragePrice: 40},
		{CurrencyCode: "JPY", Quantity: 1, CurrentPrice: 1000, AveragePrice: 900},
	}
	rates := fixedRates{"GBP": 1, "USD": 1.25}

	totals := SnapshotTotals(positions, "GBP", rates)

	assert.Equal(t, "GBP", totals.Currency)
	assert.InDelta(t, 850.0, totals.ByCurrency["GBP"], 1e-9)
	assert.InDelta(t, 250.0, totals.ByCurrency["USD"], 1e-9)
	assert.InDelta(t, 1050.0, totals.MarketValue, 1e-9)
	assert.InDelta(t, 900.0, totals.Invested, 1e-9)
	assert.Equal(t, []string{"JPY"}, totals.Unconverted)
}

func TestSnapshotTotals_Empty(t *testing.T) {
	totals := SnapshotTotals(nil, "EUR", fixedRates{})
	assert.Equal(t, 0.0, totals.MarketValue)
	assert.Empty(t, totals.ByCurrency)
}
