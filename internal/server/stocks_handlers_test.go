package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/modules/quotes"
	testutil "github.com/aristath/finfolio/internal/testing"
)

type stubSuggester struct {
	results  []domain.SymbolSuggestion
	err      error
	sessions []string
}

func (s *stubSuggester) Suggest(ctx context.Context, session, prefix string) ([]domain.SymbolSuggestion, error) {
	s.sessions = append(s.sessions, session)
	return s.results, s.err
}

func newStocksRouter(t *testing.T, client *testutil.MockQuoteClient, sug Suggester) http.Handler {
	t.Helper()
	cache := quotes.NewCache(quotes.Config{
		TTL:          time.Minute,
		FetchTimeout: time.Second,
		Retention:    time.Hour,
	}, nil, zerolog.Nop())

	r := chi.NewRouter()
	NewStocksHandlers(cache, client, sug, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func TestHandleQuote(t *testing.T) {
	client := testutil.NewMockQuoteClient()
	client.SetQuote(testutil.NewQuote("AAPL", "190.50"))
	router := newStocksRouter(t, client, &stubSuggester{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks/quote?symbol=aapl", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
		Stale  bool            `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Symbol)
	assert.Equal(t, "190.50", body.Price.StringFixed(2))
	assert.False(t, body.Stale)
}

func TestHandleQuote_Errors(t *testing.T) {
	client := testutil.NewMockQuoteClient()
	client.SetError("MSFT", domain.ErrUpstreamRateLimited)
	router := newStocksRouter(t, client, &stubSuggester{})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing symbol", "/stocks/quote", http.StatusBadRequest},
		{"invalid symbol", "/stocks/quote?symbol=%24%24", http.StatusBadRequest},
		{"unknown symbol", "/stocks/quote?symbol=ZZZZ", http.StatusNotFound},
		{"rate limited", "/stocks/quote?symbol=MSFT", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleSearch(t *testing.T) {
	sug := &stubSuggester{results: []domain.SymbolSuggestion{{Symbol: "TSLA", Name: "Tesla Inc"}}}
	router := newStocksRouter(t, testutil.NewMockQuoteClient(), sug)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks/search?session=tab-1&q=tes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []domain.SymbolSuggestion `json:"results"`
		Count   int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "TSLA", body.Results[0].Symbol)
	assert.Equal(t, []string{"tab-1"}, sug.sessions)
}

func TestHandleSearch_SessionRequired(t *testing.T) {
	sug := &stubSuggester{results: []domain.SymbolSuggestion{}}
	router := newStocksRouter(t, testutil.NewMockQuoteClient(), sug)

	// Clients sharing an address must not share a session
	for _, addr := range []string{"10.0.0.7:51234", "10.0.0.7:51235"} {
		req := httptest.NewRequest(http.MethodGet, "/stocks/search?q=a", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid session: is required")
	}
	assert.Empty(t, sug.sessions)
}

func TestHandleSearch_SupersededIsNoContent(t *testing.T) {
	router := newStocksRouter(t, testutil.NewMockQuoteClient(), &stubSuggester{err: domain.ErrSuperseded})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stocks/search?session=s&q=ap", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
