// Package clientdata provides persistent caching for upstream market-data responses.
// Payloads are msgpack blobs with an expiration timestamp, which keeps cache-first
// lookups working across restarts.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Table names in client_data.db
const (
	TableQuotes       = "quotes"
	TableOverviews    = "overviews"
	TableSymbolSearch = "symbol_search"
)

// AllTables lists all tables in client_data.db for cleanup operations.
var AllTables = []string{
	TableQuotes,
	TableOverviews,
	TableSymbolSearch,
}

var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable guards the fmt.Sprintf'd table names against injection.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with expiration = now + ttl (upsert).
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (symbol, data, expires_at) VALUES (?, ?, ?)", table)
	if _, err := r.db.Exec(query, key, blob, r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh decodes the entry into out only if it has not expired.
// Returns false with a nil error when the key is missing or expired.
func (r *Repository) GetIfFresh(table, key string, out interface{}) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE symbol = ? AND expires_at > ?", table)
	return r.load(table, out, query, key, r.now().Unix())
}

// Get decodes the entry into out regardless of expiration.
// Use this as a fallback when the upstream call fails.
func (r *Repository) Get(table, key string, out interface{}) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE symbol = ?", table)
	return r.load(table, out, query, key)
}

func (r *Repository) load(table string, out interface{}, query string, args ...interface{}) (bool, error) {
	var blob []byte
	err := r.db.QueryRow(query, args...).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to decode data from %s: %w", table, err)
	}
	return true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE symbol = ?", table)
	if _, err := r.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes all rows where expires_at < now and returns the count.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)
	result, err := r.db.Exec(query, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}
