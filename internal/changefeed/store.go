package changefeed

import (
	"context"

	"github.com/airstudent2/Tournament-200-26/internal/store"
)

// FeedStore publishes every successful write of the wrapped store to a Hub.
type FeedStore struct {
	store.RecordStore
	hub *Hub
}

func Wrap(inner store.RecordStore, hub *Hub) *FeedStore {
	return &FeedStore{RecordStore: inner, hub: hub}
}

func (f *FeedStore) Create(ctx context.Context, key string, data []byte) (store.Record, error) {
	rec, err := f.RecordStore.Create(ctx, key, data)
	if err == nil {
		f.hub.Publish(OpCreate, key, rec.Version, data)
	}
	return rec, err
}

func (f *FeedStore) CompareAndSwap(ctx context.Context, key string, version int64, data []byte) (store.Record, error) {
	rec, err := f.RecordStore.CompareAndSwap(ctx, key, version, data)
	if err == nil {
		f.hub.Publish(OpUpdate, key, rec.Version, data)
	}
	return rec, err
}

func (f *FeedStore) Put(ctx context.Context, key string, data []byte) (store.Record, error) {
	rec, err := f.RecordStore.Put(ctx, key, data)
	if err == nil {
		f.hub.Publish(OpPut, key, rec.Version, data)
	}
	return rec, err
}
