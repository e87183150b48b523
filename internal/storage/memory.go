package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process RecordStore (STORE_BACKEND=memory and tests)
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Get returns a copy of the value stored under key
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return copyBytes(v), nil
}

// Put stores value under key
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.records[key] = copyBytes(value)
	m.mu.Unlock()
	return nil
}

// Delete removes key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

// Scan returns records under prefix ordered by key
func (m *MemoryStore) Scan(ctx context.Context, prefix string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for k, v := range m.records {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Record{Key: k, Value: copyBytes(v)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Batch applies puts then deletes under a single lock
func (m *MemoryStore) Batch(ctx context.Context, puts []Record, deletes []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range puts {
		m.records[r.Key] = copyBytes(r.Value)
	}
	for _, k := range deletes {
		delete(m.records, k)
	}
	return nil
}
