package trading212

import "time"

// Position is an open position as returned by /equity/portfolio
type Position struct {
	Ticker          string    `json:"ticker"`
	Quantity        float64   `json:"quantity"`
	AveragePrice    float64   `json:"averagePrice"`
	CurrentPrice    float64   `json:"currentPrice"`
	PPL             float64   `json:"ppl"`
	FxPPL           *float64  `json:"fxPpl"`
	InitialFillDate time.Time `json:"initialFillDate"`
	Frontend        string    `json:"frontend"`
	MaxBuy          float64   `json:"maxBuy"`
	MaxSell         float64   `json:"maxSell"`
	PieQuantity     float64   `json:"pieQuantity"`
}

// Cash is the account cash summary as returned by /equity/account/cash
type Cash struct {
	Free     float64  `json:"free"`
	Total    float64  `json:"total"`
	PPL      float64  `json:"ppl"`
	Result   float64  `json:"result"`
	Invested float64  `json:"invested"`
	PieCash  *float64 `json:"pieCash"`
	Blocked  *float64 `json:"blocked"`
}

// Instrument is a catalog entry as returned by /equity/metadata/instruments
type Instrument struct {
	Ticker            string  `json:"ticker"`
	Type              string  `json:"type"`
	ISIN              string  `json:"isin"`
	CurrencyCode      string  `json:"currencyCode"`
	Name              string  `json:"name"`
	ShortName         string  `json:"shortName"`
	WorkingScheduleID int     `json:"workingScheduleId"`
	MinTradeQuantity  float64 `json:"minTradeQuantity"`
	MaxOpenQuantity   float64 `json:"maxOpenQuantity"`
	AddedOn           string  `json:"addedOn"`
}

// Dividend is one paid-out dividend from /history/dividends
type Dividend struct {
	Ticker              string    `json:"ticker"`
	Reference           string    `json:"reference"`
	Quantity            float64   `json:"quantity"`
	Amount              float64   `json:"amount"`
	AmountInEuro        float64   `json:"amountInEuro"`
	GrossAmountPerShare float64   `json:"grossAmountPerShare"`
	PaidOn              time.Time `json:"paidOn"`
	Type                string    `json:"type"`
}

type dividendsPage struct {
	Items        []Dividend `json:"items"`
	NextPagePath *string    `json:"nextPagePath"`
}
