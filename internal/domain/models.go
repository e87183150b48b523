// Package domain provides core domain models and types.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,14}$`)

// NormalizeSymbol trims and uppercases a ticker and checks it is well formed.
// Holdings and watchlist items are always keyed by the normalized form.
func NormalizeSymbol(symbol string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return "", NewValidationError("symbol", "must not be empty")
	}
	if !symbolPattern.MatchString(normalized) {
		return "", NewValidationError("symbol", "malformed ticker "+normalized)
	}
	return normalized, nil
}

// ValidateOwnerID rejects empty owner identifiers
func ValidateOwnerID(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return NewValidationError("owner_id", "must not be empty")
	}
	if strings.Contains(ownerID, "/") {
		return NewValidationError("owner_id", "must not contain '/'")
	}
	return nil
}

// Holding is a recorded position. One per (OwnerID, Symbol).
type Holding struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Invested returns PurchasePrice × Quantity. Always recomputed, never stored.
func (h Holding) Invested() decimal.Decimal {
	return h.PurchasePrice.Mul(decimal.NewFromInt(h.Quantity))
}

// WatchlistItem is a symbol a user tracks without owning a position.
type WatchlistItem struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Symbol      string    `json:"symbol"`
	DisplayName string    `json:"display_name"`
	Sector      string    `json:"sector"`
	AddedDate   time.Time `json:"added_date"`
}

// Quote is an immutable market snapshot for a symbol
type Quote struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	Change           decimal.Decimal `json:"change"`
	ChangePercent    decimal.Decimal `json:"change_percent"`
	LatestTradingDay string          `json:"latest_trading_day,omitempty"`
	FetchedAt        time.Time       `json:"fetched_at"`
}

// CacheEntry is a quote together with the moment it stops being fresh
type CacheEntry struct {
	Quote     Quote
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its freshness window at now
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// QuoteResult is what the quote cache hands back: a quote and whether it is
// a last-known-good value served past its freshness window.
type QuoteResult struct {
	Quote Quote `json:"quote"`
	Stale bool  `json:"stale"`
}

// CompanyOverview is descriptive data about a listed company
type CompanyOverview struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// SymbolSuggestion is one search-as-you-type match
type SymbolSuggestion struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Region     string          `json:"region"`
	Currency   string          `json:"currency"`
	MatchScore decimal.Decimal `json:"match_score"`
}
