package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/httpapi"
)

// Suggester returns symbol suggestions for the latest query of a session
type Suggester interface {
	Suggest(ctx context.Context, session, prefix string) ([]domain.SymbolSuggestion, error)
}

// StocksHandlers serves single-symbol quote lookups and search suggestions
type StocksHandlers struct {
	quotes    domain.QuoteSource
	client    domain.QuoteClient
	suggester Suggester
	log       zerolog.Logger
}

// NewStocksHandlers creates stock lookup handlers
func NewStocksHandlers(quotes domain.QuoteSource, client domain.QuoteClient, suggester Suggester, log zerolog.Logger) *StocksHandlers {
	return &StocksHandlers{
		quotes:    quotes,
		client:    client,
		suggester: suggester,
		log:       log.With().Str("handler", "stocks").Logger(),
	}
}

// RegisterRoutes registers stock routes
func (h *StocksHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/quote", h.HandleQuote)
		r.Get("/search", h.HandleSearch)
	})
}

// QuoteResponse is a quote flattened together with its staleness flag
type QuoteResponse struct {
	domain.Quote
	Stale bool `json:"stale"`
}

// HandleQuote handles GET /api/stocks/quote?symbol=
func (h *StocksHandlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol, err := domain.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	res, err := h.quotes.GetOrFetch(r.Context(), symbol, h.client)
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, QuoteResponse{Quote: res.Quote, Stale: res.Stale})
}

// HandleSearch handles GET /api/stocks/search?session=&q=
// session identifies one typing client, e.g. a browser tab, and is required.
// A request replaced by a newer one from the same session answers 204.
func (h *StocksHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		httpapi.WriteDomainError(w, h.log, domain.NewValidationError("session", "is required"))
		return
	}

	results, err := h.suggester.Suggest(r.Context(), session, r.URL.Query().Get("q"))
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}
