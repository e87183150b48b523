package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus says how trustworthy the price behind a valuation line is
type QuoteStatus string

const (
	QuoteStatusFresh       QuoteStatus = "fresh"
	QuoteStatusStale       QuoteStatus = "stale"
	QuoteStatusUnavailable QuoteStatus = "unavailable"
)

// HoldingValuation is the per-holding line of a valuation.
// Current, ProfitLoss and ROIPercent are null (Valid=false) when no quote could be
// obtained; they are never reported as zero in that case.
type HoldingValuation struct {
	Symbol         string              `json:"symbol"`
	Quantity       int64               `json:"quantity"`
	PurchasePrice  decimal.Decimal     `json:"purchase_price"`
	Invested       decimal.Decimal     `json:"invested"`
	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	Current        decimal.NullDecimal `json:"current"`
	ProfitLoss     decimal.NullDecimal `json:"profit_loss"`
	ROIPercent     decimal.NullDecimal `json:"roi_percent"`
	Status         QuoteStatus         `json:"status"`
	QuoteFetchedAt *time.Time          `json:"quote_fetched_at,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// ValuationTotals aggregates holdings symbol-wise.
// Invested covers every holding; PricedInvested, Current and ProfitLoss cover only
// holdings with a quote. ROIPercent is derived from those totals, never averaged.
type ValuationTotals struct {
	Invested         decimal.Decimal `json:"invested"`
	PricedInvested   decimal.Decimal `json:"priced_invested"`
	Current          decimal.Decimal `json:"current"`
	ProfitLoss       decimal.Decimal `json:"profit_loss"`
	ROIPercent       decimal.Decimal `json:"roi_percent"`
	Partial          bool            `json:"partial"`
	StaleCount       int             `json:"stale_count"`
	UnavailableCount int             `json:"unavailable_count"`
}

// ValuationResult is derived on demand and never stored
type ValuationResult struct {
	OwnerID  string             `json:"owner_id"`
	Holdings []HoldingValuation `json:"holdings"`
	Totals   ValuationTotals    `json:"totals"`
	ValuedAt time.Time          `json:"valued_at"`
}
