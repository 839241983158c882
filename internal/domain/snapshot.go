package domain

import (
	"fmt"
	"time"
)

// AccountSnapshot is a point-in-time capture of an account's cash and open positions
type AccountSnapshot struct {
	ID        string                 `json:"id"`
	AccountID int64                  `json:"accountId"`
	SyncedOn  time.Time              `json:"syncedOn"`
	Balance   Balance                `json:"balance"`
	Metadata  map[string]interface{} `json:"metadata"`
	Positions []PositionRecord       `json:"positions"`
}

// Balance is the cash side of a snapshot
type Balance struct {
	Free     float64 `json:"free"`
	Total    float64 `json:"total"`
	PPL      float64 `json:"ppl"`
	Result   float64 `json:"result"`
	Invested float64 `json:"invested"`
	PieCash  float64 `json:"pieCash"`
	Blocked  float64 `json:"blocked"`
}

// PositionRecord is one open holding inside a snapshot
type PositionRecord struct {
	Type           string  `json:"type"`
	ISIN           string  `json:"isin"`
	CurrencyCode   string  `json:"currencyCode"`
	CompanyName    string  `json:"companyName"`
	InternalTicker string  `json:"internalTicker"`
	Ticker         string  `json:"ticker"`
	Quantity       float64 `json:"quantity"`
	AveragePrice   float64 `json:"averagePrice"`
	CurrentPrice   float64 `json:"currentPrice"`
	PPL            float64 `json:"ppl"`
	FxPPL          float64 `json:"fxPpl"`
}

// SnapshotID builds the "<accountId>_<timestamp>" identifier.
func SnapshotID(accountID int64, at time.Time) string {
	return fmt.Sprintf("%d_%s", accountID, at.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// SnapshotDay returns the calendar day (UTC) a snapshot belongs to.
func SnapshotDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
