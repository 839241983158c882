package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountMetadata_PreservesUnknownKeys(t *testing.T) {
	input := `{"currencyCode":"EUR","dividendsSyncedOn":"2024-03-01T08:00:00Z","theme":"dark","goals":[1,2]}`

	var meta AccountMetadata
	require.NoError(t, json.Unmarshal([]byte(input), &meta))

	assert.Equal(t, "EUR", meta.CurrencyCode)
	require.NotNil(t, meta.DividendsSyncedOn)
	assert.True(t, meta.DividendsSyncedOn.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)))
	assert.Nil(t, meta.AccountSnapshotSyncedOn)
	assert.Contains(t, meta.Extra, "theme")

	out, err := json.Marshal(meta)
	require.NoError(t, err)

	var roundTrip map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &roundTrip))
	assert.Equal(t, "dark", roundTrip["theme"])
	assert.Equal(t, []interface{}{1.0, 2.0}, roundTrip["goals"])
	assert.Equal(t, "2024-03-01T08:00:00Z", roundTrip["dividendsSyncedOn"])
}

func TestAccountMetadata_EmptyTimestampIsAbsent(t *testing.T) {
	var meta AccountMetadata
	require.NoError(t, json.Unmarshal([]byte(`{"dividendsSyncedOn":"","accountSnapshotSyncedOn":null}`), &meta))

	assert.Nil(t, meta.DividendsSyncedOn)
	assert.Nil(t, meta.AccountSnapshotSyncedOn)
}

func TestAccountMetadata_InvalidTimestamp(t *testing.T) {
	var meta AccountMetadata
	err := json.Unmarshal([]byte(`{"dividendsSyncedOn":"yesterday"}`), &meta)
	assert.Error(t, err)
}

func TestAccountMetadata_ApplyAccumulates(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	meta := AccountMetadata{CurrencyCode: "GBP"}
	meta = meta.Apply(MetadataPatch{DividendsSyncedOn: &d})
	meta = meta.Apply(MetadataPatch{AccountSnapshotSyncedOn: &p})

	require.NotNil(t, meta.DividendsSyncedOn)
	require.NotNil(t, meta.AccountSnapshotSyncedOn)
	assert.True(t, meta.DividendsSyncedOn.Equal(d))
	assert.True(t, meta.AccountSnapshotSyncedOn.Equal(p))
	assert.Equal(t, "GBP", meta.CurrencyCode)
}

func TestSnapshotID(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	assert.Equal(t, "42_2024-01-02T03:04:05.006Z", SnapshotID(42, at))
	assert.Equal(t, "2024-01-02", SnapshotDay(at))
}

func TestInstrumentIndex_Lookup(t *testing.T) {
	idx := NewInstrumentIndex([]Instrument{{Ticker: "AAPL_US_EQ", Name: "Apple"}})

	in, ok := idx.Lookup("AAPL_US_EQ")
	assert.True(t, ok)
	assert.Equal(t, "Apple", in.Name)

	_, ok = idx.Lookup("MSFT_US_EQ")
	assert.False(t, ok)

	var empty *InstrumentIndex
	_, ok = empty.Lookup("AAPL_US_EQ")
	assert.False(t, ok)
	assert.Equal(t, 0, empty.Len())
}

func TestSyncStats_Add(t *testing.T) {
	a := SyncStats{DividendsProcessed: 2, PositionsFailed: 1}
	b := SyncStats{DividendsProcessed: 1, DividendsFailed: 3, PositionsProcessed: 1}

	assert.Equal(t, SyncStats{
		DividendsProcessed: 3,
		DividendsFailed:    3,
		PositionsProcessed: 1,
		PositionsFailed:    1,
	}, a.Add(b))
}
