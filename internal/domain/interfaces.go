package domain

import "context"

// QuoteClient fetches a single quote from the upstream provider.
// Expected upstream conditions come back as errors matching ErrNotFound,
// ErrUpstreamRateLimited or ErrUpstreamUnavailable; implementations never panic
// on them and make exactly one outbound call per invocation.
type QuoteClient interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// OverviewProvider returns descriptive company data for a symbol
type OverviewProvider interface {
	CompanyOverview(ctx context.Context, symbol string) (CompanyOverview, error)
}

// SymbolSearcher returns ticker matches for a free-text query
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, keywords string) ([]SymbolSuggestion, error)
}

// QuoteSource is the read side of the quote cache, as consumed by valuation
// and the watchlist synchronizer.
type QuoteSource interface {
	GetOrFetch(ctx context.Context, symbol string, client QuoteClient) (QuoteResult, error)
}
