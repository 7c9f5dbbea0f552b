package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not_found")
	ErrAlreadyExists = errors.New("already_exists")
	// ErrConflict means the record changed since it was read. Update retries it.
	ErrConflict    = errors.New("version_conflict")
	ErrUnavailable = errors.New("store_unavailable")
)

const pingTimeout = 2 * time.Second

// Record is one versioned JSON document. Version starts at 1 on create and
// grows by one on every successful write.
type Record struct {
	Key       string          `json:"key"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RecordStore is a key/value document store with atomic per-key
// compare-and-set. It is the only shared state in the service.
type RecordStore interface {
	Get(ctx context.Context, key string) (Record, error)
	// Create writes key only if it does not exist yet.
	Create(ctx context.Context, key string, data []byte) (Record, error)
	// CompareAndSwap replaces data only if the stored version equals version.
	CompareAndSwap(ctx context.Context, key string, version int64, data []byte) (Record, error)
	// Put is an unconditional upsert.
	Put(ctx context.Context, key string, data []byte) (Record, error)
	// List returns records whose key starts with prefix, ordered by key.
	// limit <= 0 means no limit.
	List(ctx context.Context, prefix string, limit, offset int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
