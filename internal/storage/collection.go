package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Collection stores JSON-encoded values keyed by (owner, symbol), preserving
// insertion order through a per-owner index record.
//
// Layout:
//
//	<kind>/<owner>/<SYMBOL>   -> JSON value
//	<kind>-index/<owner>      -> JSON []string of symbols in insertion order
//
// Callers serialize writes per owner.
type Collection[T any] struct {
	store RecordStore
	kind  string
}

// NewCollection creates a collection for kind (e.g. "holding", "watchlist")
func NewCollection[T any](store RecordStore, kind string) *Collection[T] {
	return &Collection[T]{store: store, kind: kind}
}

// RecordKey returns the key of the value for (owner, symbol)
func (c *Collection[T]) RecordKey(owner, symbol string) string {
	return c.kind + "/" + owner + "/" + symbol
}

// IndexKey returns the key of the owner's order index
func (c *Collection[T]) IndexKey(owner string) string {
	return c.kind + "-index/" + owner
}

// Get loads the value for (owner, symbol). found is false when absent.
func (c *Collection[T]) Get(ctx context.Context, owner, symbol string) (value T, found bool, err error) {
	raw, err := c.store.Get(ctx, c.RecordKey(owner, symbol))
	if errors.Is(err, ErrRecordNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("failed to decode %s: %w", c.RecordKey(owner, symbol), err)
	}
	return value, true, nil
}

// Put writes value and appends symbol to the index if it is new
func (c *Collection[T]) Put(ctx context.Context, owner, symbol string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.kind, err)
	}

	index, err := c.loadIndex(ctx, owner)
	if err != nil {
		return err
	}

	puts := []Record{{Key: c.RecordKey(owner, symbol), Value: raw}}
	if !slices.Contains(index, symbol) {
		index = append(index, symbol)
		indexRaw, err := json.Marshal(index)
		if err != nil {
			return fmt.Errorf("failed to encode index: %w", err)
		}
		puts = append(puts, Record{Key: c.IndexKey(owner), Value: indexRaw})
	}

	return c.store.Batch(ctx, puts, nil)
}

// Delete removes (owner, symbol). removed is false when nothing was stored.
func (c *Collection[T]) Delete(ctx context.Context, owner, symbol string) (removed bool, err error) {
	if _, err := c.store.Get(ctx, c.RecordKey(owner, symbol)); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	index, err := c.loadIndex(ctx, owner)
	if err != nil {
		return false, err
	}

	kept := make([]string, 0, len(index))
	for _, s := range index {
		if s != symbol {
			kept = append(kept, s)
		}
	}

	var puts []Record
	deletes := []string{c.RecordKey(owner, symbol)}
	if len(kept) == 0 {
		deletes = append(deletes, c.IndexKey(owner))
	} else {
		indexRaw, err := json.Marshal(kept)
		if err != nil {
			return false, fmt.Errorf("failed to encode index: %w", err)
		}
		puts = append(puts, Record{Key: c.IndexKey(owner), Value: indexRaw})
	}

	if err := c.store.Batch(ctx, puts, deletes); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the owner's values in insertion order. Records missing from the
// index (e.g. written by an older version) follow in key order.
func (c *Collection[T]) List(ctx context.Context, owner string) ([]T, error) {
	records, err := c.store.Scan(ctx, c.kind+"/"+owner+"/")
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]byte, len(records))
	var unindexed []string
	prefix := c.kind + "/" + owner + "/"
	for _, r := range records {
		bySymbol[strings.TrimPrefix(r.Key, prefix)] = r.Value
	}

	index, err := c.loadIndex(ctx, owner)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(bySymbol))
	for _, s := range index {
		if _, ok := bySymbol[s]; ok {
			order = append(order, s)
		}
	}
	for s := range bySymbol {
		if !slices.Contains(index, s) {
			unindexed = append(unindexed, s)
		}
	}
	slices.Sort(unindexed)
	order = append(order, unindexed...)

	out := make([]T, 0, len(order))
	for _, s := range order {
		var v T
		if err := json.Unmarshal(bySymbol[s], &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", c.RecordKey(owner, s), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) loadIndex(ctx context.Context, owner string) ([]string, error) {
	raw, err := c.store.Get(ctx, c.IndexKey(owner))
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var index []string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("failed to decode index for %s: %w", owner, err)
	}
	return index, nil
}
