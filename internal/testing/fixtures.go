package testing

import (
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// NewQuote builds a quote fixture; price is a decimal string such as "120.00"
func NewQuote(symbol, price string) domain.Quote {
	return domain.Quote{
		Symbol:           symbol,
		Price:            decimal.RequireFromString(price),
		Change:           decimal.Zero,
		ChangePercent:    decimal.Zero,
		LatestTradingDay: "2024-01-15",
		FetchedAt:        time.Now(),
	}
}

// NewQuoteFixtures returns quotes for a small US large-cap universe
func NewQuoteFixtures() []domain.Quote {
	return []domain.Quote{
		NewQuote("AAPL", "120.00"),
		NewQuote("MSFT", "410.50"),
		NewQuote("TSLA", "250.25"),
		NewQuote("IBM", "186.20"),
	}
}
