package testutil

import (
	"context"
	"sync"

	"github.com/airstudent2/Tournament-200-26/internal/store"
)

// FaultStore wraps a RecordStore and lets tests inject errors per key.
// A hook returning nil lets the call through.
type FaultStore struct {
	store.RecordStore

	mu       sync.Mutex
	onCreate func(key string) error
	onCAS    func(key string) error
}

func NewFaultStore(inner store.RecordStore) *FaultStore {
	return &FaultStore{RecordStore: inner}
}

func (f *FaultStore) FailCreate(fn func(key string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCreate = fn
}

func (f *FaultStore) FailCompareAndSwap(fn func(key string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCAS = fn
}

func (f *FaultStore) Create(ctx context.Context, key string, data []byte) (store.Record, error) {
	f.mu.Lock()
	hook := f.onCreate
	f.mu.Unlock()
	if hook != nil {
		if err := hook(key); err != nil {
			return store.Record{}, err
		}
	}
	return f.RecordStore.Create(ctx, key, data)
}

func (f *FaultStore) CompareAndSwap(ctx context.Context, key string, version int64, data []byte) (store.Record, error) {
	f.mu.Lock()
	hook := f.onCAS
	f.mu.Unlock()
	if hook != nil {
		if err := hook(key); err != nil {
			return store.Record{}, err
		}
	}
	return f.RecordStore.CompareAndSwap(ctx, key, version, data)
}
