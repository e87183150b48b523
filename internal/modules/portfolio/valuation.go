package portfolio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var hundred = decimal.NewFromInt(100)

// HoldingLister is the read side of PositionStore used by valuation
type HoldingLister interface {
	ListFor(ctx context.Context, ownerID string) ([]domain.Holding, error)
}

// ValuationEngine derives per-holding and aggregate metrics from holdings and quotes
type ValuationEngine struct {
	holdings    HoldingLister
	quotes      domain.QuoteSource
	client      domain.QuoteClient
	concurrency int
	locks       *utils.KeyedMutex
	log         zerolog.Logger
	now         func() time.Time
}

// NewValuationEngine creates a valuation engine. concurrency bounds parallel quote fetches.
func NewValuationEngine(holdings HoldingLister, quotes domain.QuoteSource, client domain.QuoteClient, concurrency int, log zerolog.Logger) *ValuationEngine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ValuationEngine{
		holdings:    holdings,
		quotes:      quotes,
		client:      client,
		concurrency: concurrency,
		locks:       utils.NewKeyedMutex(),
		log:         log.With().Str("service", "valuation").Logger(),
		now:         time.Now,
	}
}

type quoteOutcome struct {
	result domain.QuoteResult
	err    error
}

// Valuate values every holding of the owner. Holdings whose quote cannot be
// obtained keep their invested amount but report null current/profit/ROI and
// mark the totals as partial. Only context cancellation and storage errors fail the call.
func (e *ValuationEngine) Valuate(ctx context.Context, ownerID string) (domain.ValuationResult, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return domain.ValuationResult{}, err
	}

	unlock := e.locks.Lock(ownerID)
	defer unlock()
	defer utils.OperationTimer("valuate", e.log)()

	holdings, err := e.holdings.ListFor(ctx, ownerID)
	if err != nil {
		return domain.ValuationResult{}, err
	}

	outcomes, err := e.fetchQuotes(ctx, holdings)
	if err != nil {
		return domain.ValuationResult{}, err
	}

	result := domain.ValuationResult{
		OwnerID:  ownerID,
		Holdings: make([]domain.HoldingValuation, 0, len(holdings)),
		Totals: domain.ValuationTotals{
			Invested:       decimal.Zero,
			PricedInvested: decimal.Zero,
			Current:        decimal.Zero,
			ProfitLoss:     decimal.Zero,
			ROIPercent:     decimal.Zero,
		},
		ValuedAt: e.now().UTC(),
	}

	for _, h := range holdings {
		line := valueHolding(h, outcomes[h.Symbol])
		result.Holdings = append(result.Holdings, line)

		t := &result.Totals
		t.Invested = t.Invested.Add(line.Invested)
		switch line.Status {
		case domain.QuoteStatusUnavailable:
			t.UnavailableCount++
			continue
		case domain.QuoteStatusStale:
			t.StaleCount++
		}
		t.PricedInvested = t.PricedInvested.Add(line.Invested)
		t.Current = t.Current.Add(line.Current.Decimal)
	}

	t := &result.Totals
	t.ProfitLoss = t.Current.Sub(t.PricedInvested)
	t.ROIPercent = roiPercent(t.ProfitLoss, t.PricedInvested)
	t.Partial = t.UnavailableCount > 0

	if t.Partial || t.StaleCount > 0 {
		e.log.Warn().
			Str("owner_id", ownerID).
			Int("holdings", len(holdings)).
			Int("stale", t.StaleCount).
			Int("unavailable", t.UnavailableCount).
			Msg("Valuation built from incomplete market data")
	}

	return result, nil
}

// fetchQuotes fetches each distinct symbol once, with bounded concurrency.
// Per-symbol failures are recorded, not returned; upstream errors are never retried here.
func (e *ValuationEngine) fetchQuotes(ctx context.Context, holdings []domain.Holding) (map[string]quoteOutcome, error) {
	outcomes := make(map[string]quoteOutcome, len(holdings))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		if seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true

		symbol := h.Symbol
		g.Go(func() error {
			res, err := e.quotes.GetOrFetch(ctx, symbol, e.client)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				e.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable for valuation")
			}

			mu.Lock()
			outcomes[symbol] = quoteOutcome{result: res, err: err}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func valueHolding(h domain.Holding, outcome quoteOutcome) domain.HoldingValuation {
	line := domain.HoldingValuation{
		Symbol:        h.Symbol,
		Quantity:      h.Quantity,
		PurchasePrice: h.PurchasePrice,
		Invested:      h.Invested(),
	}

	if outcome.err != nil {
		line.Status = domain.QuoteStatusUnavailable
		line.Error = describeQuoteError(outcome.err)
		return line
	}

	quote := outcome.result.Quote
	current := quote.Price.Mul(decimal.NewFromInt(h.Quantity))
	profitLoss := current.Sub(line.Invested)
	fetchedAt := quote.FetchedAt

	line.CurrentPrice = decimal.NewNullDecimal(quote.Price)
	line.Current = decimal.NewNullDecimal(current)
	line.ProfitLoss = decimal.NewNullDecimal(profitLoss)
	line.ROIPercent = decimal.NewNullDecimal(roiPercent(profitLoss, line.Invested))
	line.QuoteFetchedAt = &fetchedAt
	line.Status = domain.QuoteStatusFresh
	if outcome.result.Stale {
		line.Status = domain.QuoteStatusStale
	}

	return line
}

// roiPercent is profitLoss / invested × 100 rounded to 2 places, and 0 when nothing was invested
func roiPercent(profitLoss, invested decimal.Decimal) decimal.Decimal {
	if invested.IsZero() {
		return decimal.Zero
	}
	return profitLoss.Mul(hundred).Div(invested).Round(2)
}

func describeQuoteError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return "quote provider rate limited"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "quote provider unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "symbol not found"
	default:
		return err.Error()
	}
}
