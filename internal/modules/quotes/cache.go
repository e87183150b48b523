// Package quotes provides the shared short-TTL quote cache.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Config holds cache settings
type Config struct {
	TTL          time.Duration // freshness window
	FetchTimeout time.Duration // bound on a shared upstream fetch
	Retention    time.Duration // how long last-good quotes are kept for stale fallback
}

// Cache is a symbol-keyed quote cache safe for concurrent use across owners.
// Concurrent misses for one symbol share a single upstream fetch.
type Cache struct {
	cfg     Config
	persist *clientdata.Repository
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]domain.CacheEntry

	inflight  singleflight.Group
	flightMu  sync.Mutex
	flights   map[string]*flight
	flightGen uint64
}

// flight is one shared upstream fetch. Its context is cancelled once every
// caller waiting on it has returned.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewCache creates a quote cache. persist is optional; when set, successful
// fetches are written through and used to seed the cache after a restart.
func NewCache(cfg Config, persist *clientdata.Repository, log zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Retention < cfg.TTL {
		cfg.Retention = 24 * time.Hour
	}
	return &Cache{
		cfg:     cfg,
		persist: persist,
		log:     log.With().Str("component", "quote_cache").Logger(),
		now:     time.Now,
		entries: make(map[string]domain.CacheEntry),
		flights: make(map[string]*flight),
	}
}

// Get returns the in-memory entry for symbol, expired or not
func (c *Cache) Get(symbol string) (domain.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[symbol]
	return entry, ok
}

// Put stores quote with expiresAt = now + TTL and writes it through to the persistent tier
func (c *Cache) Put(symbol string, quote domain.Quote) {
	c.mu.Lock()
	c.entries[symbol] = domain.CacheEntry{Quote: quote, ExpiresAt: c.now().Add(c.cfg.TTL)}
	c.mu.Unlock()

	c.persistQuote(symbol, quote)
}

// Len returns the number of in-memory entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrFetch returns a fresh cached quote, or fetches one through client.
// On a rate-limited or unavailable upstream it falls back to any retained quote
// with Stale set; the error surfaces only when there is nothing to fall back on.
// NotFound always surfaces.
func (c *Cache) GetOrFetch(ctx context.Context, symbol string, client domain.QuoteClient) (domain.QuoteResult, error) {
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.QuoteResult{}, err
	}

	if entry, ok := c.lookup(symbol); ok && !entry.Expired(c.now()) {
		return domain.QuoteResult{Quote: entry.Quote}, nil
	}

	// The fetch is detached from the first caller: a caller that gives up must
	// not fail the others sharing it. It is cancelled when no caller is left.
	f := c.join(symbol)
	defer c.leave(symbol, f)

	ch := c.inflight.DoChan(f.key, func() (interface{}, error) {
		defer c.finish(symbol, f)

		quote, err := client.FetchQuote(f.ctx, symbol)
		if err != nil {
			return nil, classifyFetchError(symbol, err)
		}
		if quote.FetchedAt.IsZero() {
			quote.FetchedAt = c.now()
		}
		c.Put(symbol, quote)
		return quote, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.QuoteResult{}, ctx.Err()
	case res = <-ch:
	}

	if res.Err == nil {
		return domain.QuoteResult{Quote: res.Val.(domain.Quote)}, nil
	}

	if domain.IsUpstreamFailure(res.Err) {
		if entry, ok := c.lookup(symbol); ok {
			c.log.Warn().
				Err(res.Err).
				Str("symbol", symbol).
				Time("fetched_at", entry.Quote.FetchedAt).
				Msg("Upstream failed, serving stale quote")
			return domain.QuoteResult{Quote: entry.Quote, Stale: true}, nil
		}
	}

	return domain.QuoteResult{}, fmt.Errorf("quote %s: %w", symbol, res.Err)
}

// join registers a waiter on the symbol's in-flight fetch, starting a new one if needed
func (c *Cache) join(symbol string) *flight {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	f, ok := c.flights[symbol]
	if !ok {
		c.flightGen++
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
		f = &flight{
			key:    fmt.Sprintf("%s#%d", symbol, c.flightGen),
			ctx:    ctx,
			cancel: cancel,
		}
		c.flights[symbol] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter; the last one out cancels the fetch
func (c *Cache) leave(symbol string, f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[symbol] == f {
		delete(c.flights, symbol)
	}
}

// finish detaches a completed fetch so later misses start a new one
func (c *Cache) finish(symbol string, f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if c.flights[symbol] == f {
		delete(c.flights, symbol)
	}
}

// classifyFetchError maps deadline and transport errors the client left untyped onto Unavailable
func classifyFetchError(symbol string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || domain.IsUpstreamFailure(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: fetch %s timed out", domain.ErrUpstreamUnavailable, symbol)
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}

// lookup returns the memory entry, seeding it from the persistent tier on a miss
func (c *Cache) lookup(symbol string) (domain.CacheEntry, bool) {
	if entry, ok := c.Get(symbol); ok {
		return entry, true
	}
	if c.persist == nil {
		return domain.CacheEntry{}, false
	}

	var cached cachedQuote
	found, err := c.persist.GetIfFresh(clientdata.TableQuotes, symbol, &cached)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read persisted quote")
		return domain.CacheEntry{}, false
	}
	if !found {
		return domain.CacheEntry{}, false
	}

	quote, err := cached.toQuote()
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Discarding undecodable persisted quote")
		return domain.CacheEntry{}, false
	}

	entry := domain.CacheEntry{Quote: quote, ExpiresAt: quote.FetchedAt.Add(c.cfg.TTL)}

	c.mu.Lock()
	// A concurrent Put wins over the persisted copy
	if existing, ok := c.entries[symbol]; ok {
		entry = existing
	} else {
		c.entries[symbol] = entry
	}
	c.mu.Unlock()

	c.log.Debug().Str("symbol", symbol).Msg("Seeded quote from persistent cache")
	return entry, true
}

// Prune drops in-memory entries fetched more than maxAge ago and returns how many were removed
func (c *Cache) Prune(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for symbol, entry := range c.entries {
		if entry.Quote.FetchedAt.Before(cutoff) {
			delete(c.entries, symbol)
			removed++
		}
	}
	return removed
}

func (c *Cache) persistQuote(symbol string, quote domain.Quote) {
	if c.persist == nil {
		return
	}
	// expires_at marks the end of the retention window, not freshness
	ttl := c.cfg.Retention - c.now().Sub(quote.FetchedAt)
	if ttl <= 0 {
		return
	}
	if err := c.persist.Store(clientdata.TableQuotes, symbol, newCachedQuote(quote), ttl); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist quote")
	}
}

// cachedQuote is the msgpack shape of a persisted quote; decimals travel as strings
type cachedQuote struct {
	Symbol           string `msgpack:"symbol"`
	Price            string `msgpack:"price"`
	Change           string `msgpack:"change"`
	ChangePercent    string `msgpack:"change_percent"`
	LatestTradingDay string `msgpack:"latest_trading_day"`
	FetchedAt        int64  `msgpack:"fetched_at"` // unix nanoseconds
}

func newCachedQuote(q domain.Quote) cachedQuote {
	return cachedQuote{
		Symbol:           q.Symbol,
		Price:            q.Price.String(),
		Change:           q.Change.String(),
		ChangePercent:    q.ChangePercent.String(),
		LatestTradingDay: q.LatestTradingDay,
		FetchedAt:        q.FetchedAt.UnixNano(),
	}
}

func (cq cachedQuote) toQuote() (domain.Quote, error) {
	price, err := decimal.NewFromString(cq.Price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("price: %w", err)
	}
	change, err := decimal.NewFromString(cq.Change)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("change: %w", err)
	}
	pct, err := decimal.NewFromString(cq.ChangePercent)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("change percent: %w", err)
	}
	return domain.Quote{
		Symbol:           cq.Symbol,
		Price:            price,
		Change:           change,
		ChangePercent:    pct,
		LatestTradingDay: cq.LatestTradingDay,
		FetchedAt:        time.Unix(0, cq.FetchedAt),
	}, nil
}
