// Package watchlist tracks symbols a user follows without owning them,
// keeps their quotes refreshed per open view and serves search suggestions.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/storage"
	"github.com/aristath/finfolio/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	itemKind      = "watchlist"
	unknownSector = "Unknown"
)

// RemovalListener is told about explicit removals so open views can retire the item
type RemovalListener interface {
	ItemRemoved(ownerID, symbol string)
}

// Service owns the watchlist records. Duplicate adds are rejected with ErrConflict.
type Service struct {
	items           *storage.Collection[domain.WatchlistItem]
	locks           *utils.KeyedMutex
	overviews       domain.OverviewProvider
	overviewCache   *clientdata.Repository
	overviewTimeout time.Duration
	log             zerolog.Logger
	now             func() time.Time

	listenersMu sync.RWMutex
	listeners   []RemovalListener
}

// NewService creates a watchlist service. overviewCache may be nil.
func NewService(
	store storage.RecordStore,
	overviews domain.OverviewProvider,
	overviewCache *clientdata.Repository,
	overviewTimeout time.Duration,
	log zerolog.Logger,
) *Service {
	if overviewTimeout <= 0 {
		overviewTimeout = 10 * time.Second
	}
	return &Service{
		items:           storage.NewCollection[domain.WatchlistItem](store, itemKind),
		locks:           utils.NewKeyedMutex(),
		overviews:       overviews,
		overviewCache:   overviewCache,
		overviewTimeout: overviewTimeout,
		log:             log.With().Str("service", "watchlist").Logger(),
		now:             time.Now,
	}
}

// AddRemovalListener registers l for ItemRemoved callbacks
func (s *Service) AddRemovalListener(l RemovalListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Add puts symbol on the owner's watchlist.
// Name and sector come from the company overview; an upstream failure degrades
// them to the symbol and "Unknown", but an unknown symbol fails with ErrNotFound.
func (s *Service) Add(ctx context.Context, ownerID, symbol string) (domain.WatchlistItem, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return domain.WatchlistItem{}, err
	}
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.WatchlistItem{}, err
	}

	// Reject duplicates before spending an upstream call on them
	if err := s.checkAbsent(ctx, ownerID, symbol); err != nil {
		return domain.WatchlistItem{}, err
	}

	overview, err := s.lookupOverview(ctx, symbol)
	if err != nil {
		return domain.WatchlistItem{}, err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	// Re-check under the lock: a concurrent Add may have won
	_, found, err := s.items.Get(ctx, ownerID, symbol)
	if err != nil {
		return domain.WatchlistItem{}, fmt.Errorf("failed to load watchlist item %s: %w", symbol, err)
	}
	if found {
		return domain.WatchlistItem{}, fmt.Errorf("watchlist item %s: %w", symbol, domain.ErrConflict)
	}

	item := domain.WatchlistItem{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Symbol:      symbol,
		DisplayName: overview.Name,
		Sector:      overview.Sector,
		AddedDate:   s.now().UTC(),
	}
	if err := s.items.Put(ctx, ownerID, symbol, item); err != nil {
		return domain.WatchlistItem{}, fmt.Errorf("failed to save watchlist item %s: %w", symbol, err)
	}

	s.log.Info().Str("owner_id", ownerID).Str("symbol", symbol).Msg("Watchlist item added")
	return item, nil
}

func (s *Service) checkAbsent(ctx context.Context, ownerID, symbol string) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	_, found, err := s.items.Get(ctx, ownerID, symbol)
	if err != nil {
		return fmt.Errorf("failed to load watchlist item %s: %w", symbol, err)
	}
	if found {
		return fmt.Errorf("watchlist item %s: %w", symbol, domain.ErrConflict)
	}
	return nil
}

// lookupOverview is cache-first; upstream failures degrade to placeholder metadata
func (s *Service) lookupOverview(ctx context.Context, symbol string) (domain.CompanyOverview, error) {
	fallback := domain.CompanyOverview{Symbol: symbol, Name: symbol, Sector: unknownSector}

	if s.overviewCache != nil {
		var cached domain.CompanyOverview
		ok, err := s.overviewCache.GetIfFresh(clientdata.TableOverviews, symbol, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cached overview")
		} else if ok {
			return withDefaults(cached, symbol), nil
		}
	}

	if s.overviews == nil {
		return fallback, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.overviewTimeout)
	defer cancel()

	overview, err := s.overviews.CompanyOverview(fetchCtx, symbol)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return domain.CompanyOverview{}, fmt.Errorf("symbol %s: %w", symbol, err)
	case ctx.Err() != nil:
		return domain.CompanyOverview{}, ctx.Err()
	default:
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Company overview unavailable, using placeholders")
		return fallback, nil
	}

	overview = withDefaults(overview, symbol)
	if s.overviewCache != nil {
		if err := s.overviewCache.Store(clientdata.TableOverviews, symbol, overview, clientdata.TTLOverview); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache overview")
		}
	}
	return overview, nil
}

func withDefaults(o domain.CompanyOverview, symbol string) domain.CompanyOverview {
	o.Symbol = symbol
	if o.Name == "" {
		o.Name = symbol
	}
	if o.Sector == "" {
		o.Sector = unknownSector
	}
	return o
}

// Remove deletes symbol from the owner's watchlist; ErrNotFound when absent
func (s *Service) Remove(ctx context.Context, ownerID, symbol string) error {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return err
	}
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(ownerID)
	removed, err := s.items.Delete(ctx, ownerID, symbol)
	unlock()
	if err != nil {
		return fmt.Errorf("failed to remove watchlist item %s: %w", symbol, err)
	}
	if !removed {
		return fmt.Errorf("watchlist item %s: %w", symbol, domain.ErrNotFound)
	}

	s.log.Info().Str("owner_id", ownerID).Str("symbol", symbol).Msg("Watchlist item removed")

	s.listenersMu.RLock()
	listeners := append([]RemovalListener(nil), s.listeners...)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		l.ItemRemoved(ownerID, symbol)
	}
	return nil
}

// List returns the owner's watchlist in the order items were added
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.WatchlistItem, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	items, err := s.items.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return items, nil
}
