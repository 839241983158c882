package clientdata

import "time"

// TTL constants for different data types.
const (
	TTLExchangeRate     = time.Hour          // conversion tables move intraday
	TTLInstrumentsIndex = 24 * time.Hour     // Trading212 catalog changes rarely
	TTLEarningsCalendar = 7 * 24 * time.Hour // refreshed weekly by the earnings job
)
