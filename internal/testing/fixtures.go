package testing

import (
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
)

// NewAccountFixture returns a Trading212 account that has never been synced
func NewAccountFixture(id int64) domain.Account {
	return domain.Account{
		ID:       id,
		UserID:   100 + id,
		Name:     "ISA",
		Provider: domain.ProviderTrading212,
		Token:    "token",
		Metadata: domain.AccountMetadata{CurrencyCode: "GBP"},
	}
}

// NewDividendFixture returns a dividend for account with the given internal id
func NewDividendFixture(account domain.Account, internalID string) domain.DividendRecord {
	return domain.DividendRecord{
		UserID:              account.UserID,
		AccountID:           account.ID,
		Ticker:              "VUSA",
		InternalTicker:      "VUSAl_EQ",
		ISIN:                "IE00B3XXRP09",
		CompanyName:         "Vanguard S&P 500",
		InternalID:          internalID,
		Quantity:            10,
		Amount:              1.25,
		GrossAmountPerShare: 0.125,
		PaidOn:              time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC),
		Metadata:            map[string]interface{}{"type": "ORDINARY"},
	}
}

// NewSnapshotFixture returns a snapshot captured at syncedOn with two positions
func NewSnapshotFixture(account domain.Account, syncedOn time.Time) domain.AccountSnapshot {
	return domain.AccountSnapshot{
		ID:        domain.SnapshotID(account.ID, syncedOn),
		AccountID: account.ID,
		SyncedOn:  syncedOn,
		Balance:   domain.Balance{Free: 50, Total: 1550, Invested: 1400, PPL: 100},
		Metadata:  map[string]interface{}{},
		Positions: []domain.PositionRecord{
			{
				Ticker: "VUSA", InternalTicker: "VUSAl_EQ", CurrencyCode: "GBX",
				Quantity: 10, AveragePrice: 7000, CurrentPrice: 8000, PPL: 100,
			},
			{
				Ticker: "AAPL", InternalTicker: "AAPL_US_EQ", CurrencyCode: "USD",
				Quantity: 2, AveragePrice: 150, CurrentPrice: 175, PPL: 40,
			},
		},
	}
}
