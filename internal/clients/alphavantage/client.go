// Package alphavantage provides a client for the Alpha Vantage market data API.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL    = "https://www.alphavantage.co"
	defaultDailyLimit = 25 // free tier
	defaultTimeout    = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

// Client is the Alpha Vantage API client.
// Every exported call performs exactly one outbound request; retries are the caller's business.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time

	mu            sync.Mutex
	dailyLimit    int
	requestsToday int
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different host (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithDailyLimit sets the request budget reported by GetRemainingRequests
func WithDailyLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.dailyLimit = limit
		}
	}
}

// WithTimeout sets the http.Client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.With().Str("client", "alphavantage").Logger(),
		now:        time.Now,
		dailyLimit: defaultDailyLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRemainingRequests returns how much of the daily budget is left
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remaining := c.dailyLimit - c.requestsToday; remaining > 0 {
		return remaining
	}
	return 0
}

// DailyLimit returns the configured daily budget
func (c *Client) DailyLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dailyLimit
}

// ResetDailyCounter clears the request counter (scheduled at midnight)
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	c.requestsToday = 0
	c.mu.Unlock()
	c.log.Debug().Msg("Daily request counter reset")
}

// recordRequest counts an outbound call. The budget is advisory: Alpha Vantage
// enforces the real limit and answers with a "Note" we map to ErrRateLimitExceeded.
func (c *Client) recordRequest() {
	c.mu.Lock()
	c.requestsToday++
	over := c.requestsToday > c.dailyLimit
	count := c.requestsToday
	c.mu.Unlock()

	if over {
		c.log.Warn().Int("requests_today", count).Msg("Daily request budget exceeded")
	}
}

// checkAPIError detects the error payloads Alpha Vantage returns with HTTP 200.
func (c *Client) checkAPIError(body []byte, symbol string) error {
	if strings.Contains(string(body), "Thank you for using Alpha Vantage") {
		return ErrRateLimitExceeded{}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		// Not an object; leave it to the parser
		return nil
	}

	if _, ok := probe["Note"]; ok {
		return ErrRateLimitExceeded{}
	}
	if raw, ok := probe["Information"]; ok {
		if strings.Contains(strings.ToLower(string(raw)), "api key") && strings.Contains(strings.ToLower(string(raw)), "invalid") {
			return ErrInvalidAPIKey{}
		}
		return ErrRateLimitExceeded{}
	}
	if raw, ok := probe["Error Message"]; ok {
		if strings.Contains(strings.ToLower(string(raw)), "apikey") {
			return ErrInvalidAPIKey{}
		}
		return ErrSymbolNotFound{Symbol: symbol}
	}

	return nil
}

// doRequest performs a single GET against /query and returns the body after API error checks.
func (c *Client) doRequest(ctx context.Context, function, symbol string, params url.Values) ([]byte, error) {
	params.Set("function", function)
	params.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ErrUnavailable{Symbol: symbol, Err: err}
	}

	c.recordRequest()
	start := c.now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("function", function).Str("symbol", symbol).Msg("Request failed")
		return nil, ErrUnavailable{Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ErrUnavailable{Symbol: symbol, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.log.Debug().
		Str("function", function).
		Str("symbol", symbol).
		Int("status", resp.StatusCode).
		Dur("duration", c.now().Sub(start)).
		Msg("Alpha Vantage response")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimitExceeded{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrUnavailable{Symbol: symbol, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if err := c.checkAPIError(body, symbol); err != nil {
		return nil, err
	}

	return body, nil
}

// FetchQuote fetches the latest quote via GLOBAL_QUOTE.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	body, err := c.doRequest(ctx, "GLOBAL_QUOTE", symbol, url.Values{"symbol": {symbol}})
	if err != nil {
		return domain.Quote{}, err
	}

	quote, err := parseGlobalQuote(body, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	quote.FetchedAt = c.now()

	return quote, nil
}

// CompanyOverview fetches name and sector via OVERVIEW.
func (c *Client) CompanyOverview(ctx context.Context, symbol string) (domain.CompanyOverview, error) {
	body, err := c.doRequest(ctx, "OVERVIEW", symbol, url.Values{"symbol": {symbol}})
	if err != nil {
		return domain.CompanyOverview{}, err
	}
	return parseCompanyOverview(body, symbol)
}

// SearchSymbols returns best matches for keywords via SYMBOL_SEARCH.
// An unknown prefix yields an empty slice, not ErrSymbolNotFound.
func (c *Client) SearchSymbols(ctx context.Context, keywords string) ([]domain.SymbolSuggestion, error) {
	body, err := c.doRequest(ctx, "SYMBOL_SEARCH", keywords, url.Values{"keywords": {keywords}})
	if err != nil {
		var notFound ErrSymbolNotFound
		if errors.As(err, &notFound) {
			return []domain.SymbolSuggestion{}, nil
		}
		return nil, err
	}

	matches, err := parseSymbolSearch(body)
	if err != nil {
		return nil, ErrUnavailable{Symbol: keywords, Err: err}
	}
	return matches, nil
}
