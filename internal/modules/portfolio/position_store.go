// Package portfolio provides holding storage and valuation.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/storage"
	"github.com/aristath/finfolio/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const holdingKind = "holding"

// PositionStore keeps one Holding per (owner, symbol) in insertion order.
// All operations for an owner are serialized.
type PositionStore struct {
	holdings *storage.Collection[domain.Holding]
	locks    *utils.KeyedMutex
	log      zerolog.Logger
	now      func() time.Time
}

// NewPositionStore creates a position store over a record store
func NewPositionStore(store storage.RecordStore, log zerolog.Logger) *PositionStore {
	return &PositionStore{
		holdings: storage.NewCollection[domain.Holding](store, holdingKind),
		locks:    utils.NewKeyedMutex(),
		log:      log.With().Str("repo", "positions").Logger(),
		now:      time.Now,
	}
}

// Upsert creates or replaces the holding for (owner, symbol).
// Replacing keeps the original ID, creation time and list position.
// A zero purchaseDate defaults to today.
func (s *PositionStore) Upsert(ctx context.Context, ownerID, symbol string, quantity int64, purchasePrice decimal.Decimal, purchaseDate time.Time) (domain.Holding, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return domain.Holding{}, err
	}
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.Holding{}, err
	}
	if quantity <= 0 {
		return domain.Holding{}, domain.NewValidationError("quantity", "must be positive")
	}
	if purchasePrice.IsNegative() {
		return domain.Holding{}, domain.NewValidationError("purchase_price", "must not be negative")
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	now := s.now().UTC()
	if purchaseDate.IsZero() {
		purchaseDate = now
	}

	existing, found, err := s.holdings.Get(ctx, ownerID, symbol)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to load holding %s: %w", symbol, err)
	}

	holding := domain.Holding{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Symbol:        symbol,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		PurchaseDate:  purchaseDate.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if found {
		holding.ID = existing.ID
		holding.CreatedAt = existing.CreatedAt
	}

	if err := s.holdings.Put(ctx, ownerID, symbol, holding); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to save holding %s: %w", symbol, err)
	}

	s.log.Info().
		Str("owner_id", ownerID).
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Bool("replaced", found).
		Msg("Holding saved")

	return holding, nil
}

// Remove deletes the holding for (owner, symbol); ErrNotFound when absent
func (s *PositionStore) Remove(ctx context.Context, ownerID, symbol string) error {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return err
	}
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	removed, err := s.holdings.Delete(ctx, ownerID, symbol)
	if err != nil {
		return fmt.Errorf("failed to remove holding %s: %w", symbol, err)
	}
	if !removed {
		return fmt.Errorf("holding %s: %w", symbol, domain.ErrNotFound)
	}

	s.log.Info().Str("owner_id", ownerID).Str("symbol", symbol).Msg("Holding removed")
	return nil
}

// ListFor returns the owner's holdings in insertion order
func (s *PositionStore) ListFor(ctx context.Context, ownerID string) ([]domain.Holding, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	holdings, err := s.holdings.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return holdings, nil
}
