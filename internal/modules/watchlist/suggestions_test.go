package watchlist

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/database"
	"github.com/aristath/finfolio/internal/domain"
	testutil "github.com/aristath/finfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestion(symbol, name string) domain.SymbolSuggestion {
	return domain.SymbolSuggestion{
		Symbol:     symbol,
		Name:       name,
		Type:       "Equity",
		Region:     "United States",
		Currency:   "USD",
		MatchScore: decimal.RequireFromString("1.0000"),
	}
}

func TestSuggest_ReturnsMatchesAfterQuietWindow(t *testing.T) {
	searcher := testutil.NewMockSymbolSearcher()
	searcher.SetResults("micro", []domain.SymbolSuggestion{suggestion("MSFT", "Microsoft Corporation")})
	s := NewSuggester(searcher, nil, 5*time.Millisecond, 0, zerolog.Nop())

	results, err := s.Suggest(context.Background(), "sess", " micro ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "MSFT", results[0].Symbol)
	assert.False(t, s.pending("sess"))
}

func TestSuggest_NewerKeystrokeSupersedesOlder(t *testing.T) {
	searcher := testutil.NewMockSymbolSearcher()
	searcher.SetResults("ap", []domain.SymbolSuggestion{suggestion("APA", "APA Corp")})
	searcher.SetResults("app", []domain.SymbolSuggestion{suggestion("AAPL", "Apple Inc")})
	s := NewSuggester(searcher, nil, 100*time.Millisecond, 0, zerolog.Nop())

	older := make(chan error, 1)
	go func() {
		_, err := s.Suggest(context.Background(), "sess", "ap")
		older <- err
	}()
	require.Eventually(t, func() bool { return s.pending("sess") }, time.Second, time.Millisecond)

	results, err := s.Suggest(context.Background(), "sess", "app")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "AAPL", results[0].Symbol)

	assert.ErrorIs(t, <-older, domain.ErrSuperseded)
	assert.Equal(t, []string{"app"}, searcher.Queries(), "superseded query never reaches upstream")
}

func TestSuggest_SessionsAreIndependent(t *testing.T) {
	searcher := testutil.NewMockSymbolSearcher()
	searcher.SetResults("ibm", []domain.SymbolSuggestion{suggestion("IBM", "IBM")})
	s := NewSuggester(searcher, nil, 20*time.Millisecond, 0, zerolog.Nop())

	errs := make(chan error, 2)
	for _, session := range []string{"a", "b"} {
		session := session
		go func() {
			_, err := s.Suggest(context.Background(), session, "ibm")
			errs <- err
		}()
	}
	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
}

func TestSuggest_CallerCancellation(t *testing.T) {
	s := NewSuggester(testutil.NewMockSymbolSearcher(), nil, time.Hour, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Suggest(ctx, "sess", "abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrSuperseded)
}

func TestSuggest_EmptyAndOversizedPrefix(t *testing.T) {
	searcher := testutil.NewMockSymbolSearcher()
	s := NewSuggester(searcher, nil, 0, 0, zerolog.Nop())

	results, err := s.Suggest(context.Background(), "sess", "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)

	_, err = s.Suggest(context.Background(), "sess", strings.Repeat("x", 65))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, searcher.Queries())
}

func TestSuggest_SessionRequired(t *testing.T) {
	searcher := testutil.NewMockSymbolSearcher()
	s := NewSuggester(searcher, nil, 0, 0, zerolog.Nop())

	_, err := s.Suggest(context.Background(), "", "ibm")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, searcher.Queries())

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.sessions)
}

func TestSuggest_UpstreamErrorPropagates(t *testing.T) {
	searcher := testutil.NewMockSymbolSearcher()
	searcher.SetError(domain.ErrUpstreamRateLimited)
	s := NewSuggester(searcher, nil, 0, 0, zerolog.Nop())

	_, err := s.Suggest(context.Background(), "sess", "tsla")
	assert.ErrorIs(t, err, domain.ErrUpstreamRateLimited)
}

func TestSuggest_CachedInClientData(t *testing.T) {
	db := testutil.NewTestDB(t, database.NameClientData)
	cache := clientdata.NewRepository(db.Conn())

	searcher := testutil.NewMockSymbolSearcher()
	searcher.SetResults("tesla", []domain.SymbolSuggestion{suggestion("TSLA", "Tesla Inc")})
	s := NewSuggester(searcher, cache, 0, 0, zerolog.Nop())

	first, err := s.Suggest(context.Background(), "sess", "tesla")
	require.NoError(t, err)

	second, err := s.Suggest(context.Background(), "other", "TESLA")
	require.NoError(t, err)

	assert.Equal(t, []string{"tesla"}, searcher.Queries())
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Symbol, second[0].Symbol)
	assert.True(t, first[0].MatchScore.Equal(second[0].MatchScore))
}
