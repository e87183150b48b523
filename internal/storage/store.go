// Package storage provides the key-value record store that holdings and
// watchlist entries are persisted in.
package storage

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by Get when no record exists under the key
var ErrRecordNotFound = errors.New("record not found")

// Record is a single key/value pair
type Record struct {
	Key   string
	Value []byte
}

// RecordStore is a flat key-value store with prefix scans and atomic batches.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for missing keys
	Delete(ctx context.Context, key string) error
	// Scan returns all records whose key starts with prefix, ordered by key
	Scan(ctx context.Context, prefix string) ([]Record, error)
	// Batch applies puts and deletes atomically
	Batch(ctx context.Context, puts []Record, deletes []string) error
}
