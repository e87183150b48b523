package clientdata

import "time"

// TTL constants added to time.Now() when storing to calculate expires_at.
const (
	// Company name and sector barely change
	TTLOverview = 7 * 24 * time.Hour

	// Symbol search results for a given prefix
	TTLSymbolSearch = 24 * time.Hour
)

// Quotes are stored with the configured retention window as TTL; freshness is
// decided by the in-memory cache from the quote's fetch time, not by expires_at.
