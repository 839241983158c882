package trading212

import (
	"strings"

	"github.com/aristath/portfolio-sync/internal/domain"
)

// tickerOverrides maps Trading212 tickers whose short name does not resolve
// to the right global listing.
var tickerOverrides = map[string]string{
	"AEDASe_EQ": "AEDAS.MC",
	"AMZd_EQ":   "AMZ.DE",
	"ASMLa_EQ":  "ASML.AS",
	"BBOXl_EQ":  "BBOX.L",
	"IBS_PT_EQ": "IBS.LS",
	"ICSUl_EQ":  "ICSU.L",
	"INRGl_EQ":  "INRG.L",
	"QDVEd_EQ":  "QDVE.DE",
	"RIO_US_EQ": "RIO.L",
	"SGROl_EQ":  "SGRO.L",
}

// GlobalTicker translates a Trading212 ticker into a market-wide symbol.
// Overrides win; otherwise the instrument short name (or the raw ticker) is used
// with its first "." replaced by "-".
func GlobalTicker(internal string, idx *domain.InstrumentIndex) string {
	if t, ok := tickerOverrides[internal]; ok {
		return t
	}

	base := internal
	if in, ok := idx.Lookup(internal); ok && in.ShortName != "" {
		base = in.ShortName
	}
	return strings.Replace(base, ".", "-", 1)
}
