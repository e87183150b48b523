package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/finfolio/internal/database"
	"github.com/rs/zerolog"
)

// SQLiteStore is a RecordStore backed by the records table (records.db)
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteStore creates a store over an already-migrated connection
func NewSQLiteStore(db *sql.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: log.With().Str("repo", "records").Logger(),
	}
}

// Get returns the value stored under key
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return value, nil
}

// Put upserts value under key
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to put record %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

// Scan returns records under prefix ordered by key
func (s *SQLiteStore) Scan(ctx context.Context, prefix string) ([]Record, error) {
	// Keys compare byte-wise (BINARY collation), so a half-open key range
	// selects the prefix without character-counting functions.
	query := "SELECT key, value FROM records WHERE key >= ? ORDER BY key"
	args := []interface{}{prefix}
	if upper, ok := prefixUpperBound(prefix); ok {
		query = "SELECT key, value FROM records WHERE key >= ? AND key < ? ORDER BY key"
		args = append(args, upper)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// prefixUpperBound returns the smallest string greater than every string
// starting with prefix. ok is false when no such bound exists.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// Batch applies puts and deletes in one transaction
func (s *SQLiteStore) Batch(ctx context.Context, puts []Record, deletes []string) error {
	now := time.Now().Unix()

	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		for _, r := range puts {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
				r.Key, r.Value, now); err != nil {
				return fmt.Errorf("put %s: %w", r.Key, err)
			}
		}
		for _, k := range deletes {
			if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE key = ?", k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Int("puts", len(puts)).Int("deletes", len(deletes)).Msg("Batch write failed")
	}
	return err
}
