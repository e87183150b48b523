package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

)

var (
	_ domain.QuoteClient      = (*Client)(nil)
	_ domain.OverviewProvider = (*Client)(nil)
	_ domain.SymbolSearcher   = (*Client)(nil)
)

const ibmQuote = `{
	"Global Quote": {
		"01. symbol": "IBM",
		"02. open": "185.00",
		"03. high": "186.50",
		"04. low": "184.50",
		"05. price": "186.20",
		"06. volume": "3456789",
		"07. latest trading day": "2024-01-15",
		"08. previous close": "185.00",
		"09. change": "1.20",
		"10. change percent": "0.65%"
	}
}`

func newTestServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, 25, client.GetRemainingRequests())
}

func TestNewClient_Options(t *testing.T) {
	client := NewClient("k", zerolog.Nop(), WithBaseURL("http://localhost:9999/"), WithDailyLimit(500), WithTimeout(time.Second))

	assert.Equal(t, "http://localhost:9999", client.baseURL)
	assert.Equal(t, 500, client.DailyLimit())
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

func TestFetchQuote_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(ibmQuote))
	}))
	defer server.Close()

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))
	quote, err := client.FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, "IBM", quote.Symbol)
	assert.True(t, decimal.RequireFromString("186.20").Equal(quote.Price))
	assert.True(t, decimal.RequireFromString("1.20").Equal(quote.Change))
	assert.True(t, decimal.RequireFromString("0.65").Equal(quote.ChangePercent))
	assert.Equal(t, "2024-01-15", quote.LatestTradingDay)
	assert.False(t, quote.FetchedAt.IsZero())
	assert.Equal(t, 24, client.GetRemainingRequests())
}

func TestFetchQuote_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"note throttle", http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`, domain.ErrUpstreamRateLimited},
		{"information throttle", http.StatusOK, `{"Information": "Our standard API rate limit is 25 requests per day."}`, domain.ErrUpstreamRateLimited},
		{"http 429", http.StatusTooManyRequests, `{}`, domain.ErrUpstreamRateLimited},
		{"error message", http.StatusOK, `{"Error Message": "Invalid API call. Please retry or visit the documentation"}`, domain.ErrNotFound},
		{"empty global quote", http.StatusOK, `{"Global Quote": {}}`, domain.ErrNotFound},
		{"server error", http.StatusBadGateway, `oops`, domain.ErrUpstreamUnavailable},
		{"malformed body", http.StatusOK, `<html>`, domain.ErrUpstreamUnavailable},
		{"missing price", http.StatusOK, `{"Global Quote": {"01. symbol": "IBM", "05. price": "None"}}`, domain.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := newTestServer(t, tt.status, tt.body, &calls)
			client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))

			_, err := client.FetchQuote(context.Background(), "IBM")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			// No retries
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestFetchQuote_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchQuote(ctx, "IBM")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchQuote_TransportError(t *testing.T) {
	server := newTestServer(t, http.StatusOK, ibmQuote, nil)
	url := server.URL
	server.Close()

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(url))
	_, err := client.FetchQuote(context.Background(), "IBM")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestCompanyOverview(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{
		"Symbol": "IBM",
		"AssetType": "Common Stock",
		"Name": "International Business Machines",
		"Sector": "TECHNOLOGY"
	}`, nil)

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))
	overview, err := client.CompanyOverview(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, "IBM", overview.Symbol)
	assert.Equal(t, "International Business Machines", overview.Name)
	assert.Equal(t, "TECHNOLOGY", overview.Sector)
}

func TestCompanyOverview_EmptyIsNotFound(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{}`, nil)

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))
	_, err := client.CompanyOverview(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		assert.Equal(t, "tesc", r.URL.Query().Get("keywords"))
		_, _ = w.Write([]byte(`{
			"bestMatches": [
				{
					"1. symbol": "TSCO.LON",
					"2. name": "Tesco PLC",
					"3. type": "Equity",
					"4. region": "United Kingdom",
					"8. currency": "GBX",
					"9. matchScore": "0.7273"
				},
				{"1. symbol": ""}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))
	matches, err := client.SearchSymbols(context.Background(), "tesc")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "TSCO.LON", matches[0].Symbol)
	assert.Equal(t, "Tesco PLC", matches[0].Name)
	assert.Equal(t, "GBX", matches[0].Currency)
	assert.True(t, decimal.RequireFromString("0.7273").Equal(matches[0].MatchScore))
}

func TestSearchSymbols_ErrorMessageIsEmptyResult(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"Error Message": "Invalid API call."}`, nil)

	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL))
	matches, err := client.SearchSymbols(context.Background(), "???")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRequestBudgetIsAdvisory(t *testing.T) {
	var calls int32
	server := newTestServer(t, http.StatusOK, ibmQuote, &calls)
	client := NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL), WithDailyLimit(2))

	for i := 0; i < 3; i++ {
		_, err := client.FetchQuote(context.Background(), "IBM")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, client.GetRemainingRequests())

	client.ResetDailyCounter()
	assert.Equal(t, 2, client.GetRemainingRequests())
}

func TestErrorTypes(t *testing.T) {
	t.Run("ErrRateLimitExceeded", func(t *testing.T) {
		err := ErrRateLimitExceeded{}
		assert.Contains(t, err.Error(), "rate limit")
		assert.ErrorIs(t, err, domain.ErrUpstreamRateLimited)
	})

	t.Run("ErrInvalidAPIKey", func(t *testing.T) {
		err := ErrInvalidAPIKey{}
		assert.Contains(t, err.Error(), "invalid")
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})

	t.Run("ErrSymbolNotFound", func(t *testing.T) {
		err := ErrSymbolNotFound{Symbol: "XYZ"}
		assert.Contains(t, err.Error(), "XYZ")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAPIErrorDetection(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	tests := []struct {
		name      string
		body      string
		errorType error
	}{
		{"Rate limit note", `{"Note": "Thank you for using Alpha Vantage!"}`, ErrRateLimitExceeded{}},
		{"Error message", `{"Error Message": "Invalid symbol"}`, ErrSymbolNotFound{Symbol: "IBM"}},
		{"Invalid key", `{"Error Message": "the parameter apikey is invalid or missing"}`, ErrInvalidAPIKey{}},
		{"Thank you text", `Thank you for using Alpha Vantage`, ErrRateLimitExceeded{}},
		{"Valid response", `{"Global Quote": {"01. symbol": "IBM"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.checkAPIError([]byte(tt.body), "IBM")
			if tt.errorType == nil {
				assert.NoError(t, err)
				return
			}
			assert.IsType(t, tt.errorType, err)
		})
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"123.45", "123.45", true},
		{"0", "0", true},
		{"0.65%", "0.65", true},
		{"-1.5%", "-1.5", true},
		{"None", "0", false},
		{"", "0", false},
		{"-", "0", false},
		{"invalid", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseDecimal(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}
