package domain

import "time"

// DividendRecord is a single paid-dividend event.
// InternalID is the provider-issued payment reference; (AccountID, InternalID) is unique.
type DividendRecord struct {
	ID                  string                 `json:"id,omitempty"`
	UserID              int64                  `json:"userId"`
	AccountID           int64                  `json:"accountId"`
	Ticker              string                 `json:"ticker"`
	InternalTicker      string                 `json:"internalTicker"`
	ISIN                string                 `json:"isin"`
	CompanyName         string                 `json:"companyName"`
	InternalID          string                 `json:"internalId"`
	Quantity            float64                `json:"quantity"`
	Amount              float64                `json:"amount"`
	GrossAmountPerShare float64                `json:"grossAmountPerShare"`
	PaidOn              time.Time              `json:"paidOn"`
	Metadata            map[string]interface{} `json:"metadata"`
	SyncedOn            *time.Time             `json:"syncedOn,omitempty"`
}
