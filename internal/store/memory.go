package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps records in process. Used by tests and single-node dev runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Record{}, ErrUnavailable
	}
	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Create(_ context.Context, key string, data []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, ErrUnavailable
	}
	if _, ok := m.records[key]; ok {
		return Record{}, ErrAlreadyExists
	}
	rec := Record{Key: key, Version: 1, Data: cloneBytes(data), UpdatedAt: time.Now().UTC()}
	m.records[key] = rec
	return cloneRecord(rec), nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, key string, version int64, data []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, ErrUnavailable
	}
	cur, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if cur.Version != version {
		return Record{}, ErrConflict
	}
	rec := Record{Key: key, Version: version + 1, Data: cloneBytes(data), UpdatedAt: time.Now().UTC()}
	m.records[key] = rec
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, ErrUnavailable
	}
	rec := Record{Key: key, Version: m.records[key].Version + 1, Data: cloneBytes(data), UpdatedAt: time.Now().UTC()}
	m.records[key] = rec
	return cloneRecord(rec), nil
}

func (m *MemoryStore) List(_ context.Context, prefix string, limit, offset int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	keys := make([]string, 0)
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	keys = page(keys, limit, offset)
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneRecord(m.records[k]))
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrUnavailable
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func cloneRecord(r Record) Record {
	r.Data = cloneBytes(r.Data)
	return r
}
