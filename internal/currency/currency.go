// Package currency normalises quote currencies and computes snapshot totals.
package currency

import (
	"sort"

	"github.com/aristath/portfolio-sync/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// GBX is pence sterling, quoted by London listings
const GBX = "GBX"

// IsGBX reports whether code is pence sterling
func IsGBX(code string) bool {
	return code == GBX
}

// ParseCode maps GBX to GBP and returns every other code unchanged
func ParseCode(code string) string {
	if IsGBX(code) {
		return "GBP"
	}
	return code
}

// ParseValue converts a GBX amount to GBP and returns other amounts unchanged
func ParseValue(value float64, code string) float64 {
	if IsGBX(code) {
		return value / 100
	}
	return value
}

// Converter converts an amount between two currency codes
type Converter interface {
	Convert(amount float64, from, to string) (float64, error)
}

// Totals summarises the holdings of a snapshot
type Totals struct {
	Currency    string             `json:"currency"`
	MarketValue float64            `json:"marketValue"`
	Invested    float64            `json:"invested"`
	ByCurrency  map[string]float64 `json:"byCurrency"`
	Unconverted []string           `json:"unconverted,omitempty"`
}

// SnapshotTotals values every position at current price, groups it by normalised
// currency and converts the sums into target. Positions whose currency cannot be
// converted are left out of the converted totals and listed in Unconverted.
func SnapshotTotals(positions []domain.PositionRecord, target string, conv Converter) Totals {
	market := make(map[string][]float64)
	invested := make(map[string][]float64)

	for _, p := range positions {
		code := ParseCode(p.CurrencyCode)
		if code == "" {
			code = target
		}
		market[code] = append(market[code], ParseValue(p.CurrentPrice, p.CurrencyCode)*p.Quantity)
		invested[code] = append(invested[code], ParseValue(p.AveragePrice, p.CurrencyCode)*p.Quantity)
	}

	totals := Totals{Currency: target, ByCurrency: make(map[string]float64, len(market))}
	codes := make([]string, 0, len(market))
	for code := range market {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var convMarket, convInvested []float64
	for _, code := range codes {
		m := floats.Sum(market[code])
		inv := floats.Sum(invested[code])
		totals.ByCurrency[code] = m

		cm, err := conv.Convert(m, code, target)
		if err != nil {
			totals.Unconverted = append(totals.Unconverted, code)
			continue
		}
		ci, err := conv.Convert(inv, code, target)
		if err != nil {
			totals.Unconverted = append(totals.Unconverted, code)
			continue
		}
		convMarket = append(convMarket, cm)
		convInvested = append(convInvested, ci)
	}

	totals.MarketValue = floats.Sum(convMarket)
	totals.Invested = floats.Sum(convInvested)
	return totals
}
