package watchlist

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ItemState is the lifecycle position of a watched item inside one view
type ItemState string

const (
	// StateAdded: no quote has been obtained yet
	StateAdded ItemState = "added"
	// StatePolling: the last poll returned a fresh quote
	StatePolling ItemState = "polling"
	// StateStaleDegraded: the last poll failed; the last known quote is retained
	StateStaleDegraded ItemState = "stale_degraded"
	// StateRemoved is terminal
	StateRemoved ItemState = "removed"
)

// ItemLister is the read side of the watchlist store
type ItemLister interface {
	List(ctx context.Context, ownerID string) ([]domain.WatchlistItem, error)
}

// ItemStatus is one row of a view snapshot. Quote is nil until one has been seen.
type ItemStatus struct {
	Symbol      string        `json:"symbol"`
	DisplayName string        `json:"display_name"`
	Sector      string        `json:"sector"`
	State       ItemState     `json:"state"`
	Quote       *domain.Quote `json:"quote"`
	Stale       bool          `json:"stale"`
	Error       string        `json:"error,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Snapshot is the state of every item in a view after a poll or removal
type Snapshot struct {
	ViewID   string       `json:"view_id"`
	OwnerID  string       `json:"owner_id"`
	Items    []ItemStatus `json:"items"`
	PolledAt time.Time    `json:"polled_at"`
}

// Synchronizer refreshes watchlist quotes for open views. Each view polls on its
// own ticker, independently of valuations.
type Synchronizer struct {
	items       ItemLister
	quotes      domain.QuoteSource
	client      domain.QuoteClient
	interval    time.Duration
	concurrency int
	log         zerolog.Logger
	now         func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewSynchronizer creates a synchronizer whose views poll every interval by default
func NewSynchronizer(items ItemLister, quotes domain.QuoteSource, client domain.QuoteClient, interval time.Duration, concurrency int, log zerolog.Logger) *Synchronizer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Synchronizer{
		items:       items,
		quotes:      quotes,
		client:      client,
		interval:    interval,
		concurrency: concurrency,
		log:         log.With().Str("component", "watchlist_sync").Logger(),
		now:         time.Now,
		views:       make(map[string]*View),
	}
}

// ViewOption configures a single view
type ViewOption func(*View)

// WithInterval overrides the poll interval of one view
func WithInterval(d time.Duration) ViewOption {
	return func(v *View) {
		if d > 0 {
			v.interval = d
		}
	}
}

// Watch opens a view on the owner's watchlist. The view polls immediately and
// then on every tick until Stop is called or ctx ends.
func (s *Synchronizer) Watch(ctx context.Context, ownerID string, opts ...ViewOption) *View {
	ctx, v := s.newView(ctx, ownerID, opts...)

	s.mu.Lock()
	s.views[v.id] = v
	s.mu.Unlock()

	s.log.Debug().Str("view_id", v.id).Str("owner_id", ownerID).Dur("interval", v.interval).Msg("View opened")

	go v.run(ctx)
	return v
}

func (s *Synchronizer) newView(ctx context.Context, ownerID string, opts ...ViewOption) (context.Context, *View) {
	ctx, cancel := context.WithCancel(ctx)
	v := &View{
		id:       uuid.New().String(),
		ownerID:  ownerID,
		interval: s.interval,
		sync:     s,
		cancel:   cancel,
		updates:  make(chan Snapshot, 1),
		done:     make(chan struct{}),
		items:    make(map[string]*trackedItem),
	}
	for _, opt := range opts {
		opt(v)
	}
	return ctx, v
}

// ViewCount returns the number of open views
func (s *Synchronizer) ViewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// ItemRemoved retires symbol in every open view of the owner
func (s *Synchronizer) ItemRemoved(ownerID, symbol string) {
	s.mu.Lock()
	var targets []*View
	for _, v := range s.views {
		if v.ownerID == ownerID {
			targets = append(targets, v)
		}
	}
	s.mu.Unlock()

	for _, v := range targets {
		v.markRemoved(symbol)
	}
}

// Close stops every open view without waiting for them
func (s *Synchronizer) Close() {
	s.mu.Lock()
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	s.mu.Unlock()

	for _, v := range views {
		v.Stop()
	}
}

func (s *Synchronizer) forget(v *View) {
	s.mu.Lock()
	delete(s.views, v.id)
	s.mu.Unlock()
}

type trackedItem struct {
	id       string
	status   ItemStatus
	reported bool // removal delivered in a snapshot
}

// View is one live subscription to an owner's watchlist
type View struct {
	id       string
	ownerID  string
	interval time.Duration
	sync     *Synchronizer
	cancel   context.CancelFunc
	updates  chan Snapshot
	done     chan struct{}

	mu    sync.Mutex
	items map[string]*trackedItem
	order []string

	sendMu sync.Mutex
	closed bool
}

// ID identifies the view
func (v *View) ID() string { return v.id }

// Updates delivers snapshots. Only the latest undelivered snapshot is kept.
// The channel is closed once the view has stopped.
func (v *View) Updates() <-chan Snapshot { return v.updates }

// Done is closed once the poll loop has exited
func (v *View) Done() <-chan struct{} { return v.done }

// Stop cancels the ticker and any in-flight fetches. It does not wait.
func (v *View) Stop() { v.cancel() }

func (v *View) run(ctx context.Context) {
	defer func() {
		v.sync.forget(v)
		v.sendMu.Lock()
		v.closed = true
		close(v.updates)
		v.sendMu.Unlock()
		close(v.done)
		v.sync.log.Debug().Str("view_id", v.id).Msg("View closed")
	}()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	v.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.poll(ctx)
		}
	}
}

type pollResult struct {
	result domain.QuoteResult
	err    error
}

func (v *View) poll(ctx context.Context) {
	s := v.sync

	items, err := s.items.List(ctx, v.ownerID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Str("owner_id", v.ownerID).Msg("Failed to list watchlist")
		}
		return
	}

	results := make([]pollResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			res, err := s.quotes.GetOrFetch(gctx, item.Symbol, s.client)
			results[i] = pollResult{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	v.apply(items, results)
	v.publish()
}

// apply advances each item's state from the poll results
func (v *View) apply(items []domain.WatchlistItem, results []pollResult) {
	now := v.sync.now().UTC()

	v.mu.Lock()
	defer v.mu.Unlock()

	present := make(map[string]bool, len(items))
	for i, item := range items {
		present[item.Symbol] = true

		tracked, ok := v.items[item.Symbol]
		if ok && tracked.id == item.ID && tracked.status.State == StateRemoved {
			// Listed before the removal landed
			continue
		}
		if !ok || tracked.id != item.ID {
			// New item, or removed and re-added: start over
			tracked = &trackedItem{id: item.ID, status: ItemStatus{State: StateAdded}}
			v.items[item.Symbol] = tracked
			if !slices.Contains(v.order, item.Symbol) {
				v.order = append(v.order, item.Symbol)
			}
		}

		st := &tracked.status
		st.Symbol = item.Symbol
		st.DisplayName = item.DisplayName
		st.Sector = item.Sector
		st.UpdatedAt = now

		res := results[i]
		switch {
		case res.err == nil && !res.result.Stale:
			q := res.result.Quote
			st.Quote, st.Stale, st.Error = &q, false, ""
			st.State = StatePolling
		case res.err == nil:
			q := res.result.Quote
			st.Quote, st.Stale, st.Error = &q, true, ""
			st.State = StateStaleDegraded
		default:
			st.Error = describeError(res.err)
			if st.Quote != nil {
				st.Stale = true
				st.State = StateStaleDegraded
			}
		}
	}

	// Items that vanished from the store without an explicit removal
	for _, symbol := range v.order {
		if tracked := v.items[symbol]; !present[symbol] && tracked.status.State != StateRemoved {
			tracked.status.State = StateRemoved
			tracked.status.UpdatedAt = now
		}
	}

	// Reported removals the store no longer lists cannot be resurrected
	for symbol, tracked := range v.items {
		if tracked.reported && !present[symbol] {
			delete(v.items, symbol)
		}
	}
}

func (v *View) markRemoved(symbol string) {
	v.mu.Lock()
	tracked, ok := v.items[symbol]
	if !ok || tracked.status.State == StateRemoved {
		v.mu.Unlock()
		return
	}
	tracked.status.State = StateRemoved
	tracked.status.UpdatedAt = v.sync.now().UTC()
	v.mu.Unlock()

	v.publish()
}

// publish sends a snapshot, replacing any the reader has not taken yet.
// Removed items are reported once and then left out of later snapshots.
func (v *View) publish() {
	v.sendMu.Lock()
	defer v.sendMu.Unlock()
	if v.closed {
		return
	}

	v.mu.Lock()
	snap := Snapshot{
		ViewID:   v.id,
		OwnerID:  v.ownerID,
		Items:    make([]ItemStatus, 0, len(v.order)),
		PolledAt: v.sync.now().UTC(),
	}
	kept := v.order[:0]
	for _, symbol := range v.order {
		tracked := v.items[symbol]
		snap.Items = append(snap.Items, tracked.status)
		if tracked.status.State == StateRemoved {
			tracked.reported = true
		} else {
			kept = append(kept, symbol)
		}
	}
	v.order = kept
	v.mu.Unlock()

	for {
		select {
		case v.updates <- snap:
			return
		default:
		}
		select {
		case <-v.updates:
		default:
		}
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "symbol not found"
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return "quote provider rate limited"
	default:
		return "quote unavailable"
	}
}
