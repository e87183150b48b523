package testing

import (
	"context"
	"sync"

	"github.com/aristath/finfolio/internal/domain"
)

type quoteResponse struct {
	quote domain.Quote
	err   error
}

// MockQuoteClient is a scripted domain.QuoteClient.
// Responses are set per symbol; an optional gate blocks fetches until released.
type MockQuoteClient struct {
	mu        sync.Mutex
	responses map[string]quoteResponse
	calls     map[string]int
	gate      chan struct{}
	started   chan string
	cancelled chan string
}

// NewMockQuoteClient creates a mock with no scripted responses
func NewMockQuoteClient() *MockQuoteClient {
	return &MockQuoteClient{
		responses: make(map[string]quoteResponse),
		calls:     make(map[string]int),
	}
}

// SetQuote scripts a successful response for symbol
func (m *MockQuoteClient) SetQuote(q domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[q.Symbol] = quoteResponse{quote: q}
}

// SetError scripts a failure for symbol
func (m *MockQuoteClient) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[symbol] = quoteResponse{err: err}
}

// Block makes subsequent fetches wait until Release is called or their context ends.
// Each blocked fetch announces its symbol on Started().
func (m *MockQuoteClient) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.started = make(chan string, 64)
	m.cancelled = make(chan string, 64)
}

// Started reports symbols of fetches that reached the gate
func (m *MockQuoteClient) Started() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Cancelled reports symbols of blocked fetches whose context ended before Release
func (m *MockQuoteClient) Cancelled() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Release unblocks all waiting and future fetches
func (m *MockQuoteClient) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Calls returns how many times symbol was fetched
func (m *MockQuoteClient) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// TotalCalls returns the number of fetches across all symbols
func (m *MockQuoteClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FetchQuote implements domain.QuoteClient
func (m *MockQuoteClient) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	m.mu.Lock()
	m.calls[symbol]++
	gate, started, cancelled := m.gate, m.started, m.cancelled
	m.mu.Unlock()

	if gate != nil {
		started <- symbol
		select {
		case <-gate:
		case <-ctx.Done():
			cancelled <- symbol
			return domain.Quote{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.responses[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return resp.quote, resp.err
}

// MockOverviewProvider is a scripted domain.OverviewProvider
type MockOverviewProvider struct {
	mu        sync.Mutex
	overviews map[string]domain.CompanyOverview
	err       error
	calls     int
}

// NewMockOverviewProvider creates an empty mock
func NewMockOverviewProvider() *MockOverviewProvider {
	return &MockOverviewProvider{overviews: make(map[string]domain.CompanyOverview)}
}

// SetOverview scripts the overview for its symbol
func (m *MockOverviewProvider) SetOverview(o domain.CompanyOverview) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overviews[o.Symbol] = o
}

// SetError makes every call fail with err
func (m *MockOverviewProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of lookups
func (m *MockOverviewProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CompanyOverview implements domain.OverviewProvider
func (m *MockOverviewProvider) CompanyOverview(ctx context.Context, symbol string) (domain.CompanyOverview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.CompanyOverview{}, m.err
	}
	o, ok := m.overviews[symbol]
	if !ok {
		return domain.CompanyOverview{}, domain.ErrNotFound
	}
	return o, nil
}

// MockSymbolSearcher is a scripted domain.SymbolSearcher that records every query
type MockSymbolSearcher struct {
	mu      sync.Mutex
	results map[string][]domain.SymbolSuggestion
	queries []string
	err     error
}

// NewMockSymbolSearcher creates an empty mock
func NewMockSymbolSearcher() *MockSymbolSearcher {
	return &MockSymbolSearcher{results: make(map[string][]domain.SymbolSuggestion)}
}

// SetResults scripts the matches for keywords
func (m *MockSymbolSearcher) SetResults(keywords string, results []domain.SymbolSuggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[keywords] = results
}

// SetError makes every search fail with err
func (m *MockSymbolSearcher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Queries returns the keywords searched so far, in order
func (m *MockSymbolSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// SearchSymbols implements domain.SymbolSearcher
func (m *MockSymbolSearcher) SearchSymbols(ctx context.Context, keywords string) ([]domain.SymbolSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, keywords)
	if m.err != nil {
		return nil, m.err
	}
	return m.results[keywords], nil
}
