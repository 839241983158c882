package domain

// Instrument is provider metadata for a tradable ticker
type Instrument struct {
	Ticker       string `json:"ticker"`
	Type         string `json:"type"`
	ISIN         string `json:"isin"`
	CurrencyCode string `json:"currencyCode"`
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
}

// InstrumentIndex is an immutable ticker -> Instrument lookup built once per account pass.
type InstrumentIndex struct {
	byTicker map[string]Instrument
}

// NewInstrumentIndex copies the given instruments into a new index.
func NewInstrumentIndex(instruments []Instrument) *InstrumentIndex {
	idx := &InstrumentIndex{byTicker: make(map[string]Instrument, len(instruments))}
	for _, in := range instruments {
		idx.byTicker[in.Ticker] = in
	}
	return idx
}

// Lookup returns the instrument for a provider ticker. A nil index behaves as empty.
func (idx *InstrumentIndex) Lookup(ticker string) (Instrument, bool) {
	if idx == nil {
		return Instrument{}, false
	}
	in, ok := idx.byTicker[ticker]
	return in, ok
}

// Len returns the number of indexed instruments.
func (idx *InstrumentIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byTicker)
}
