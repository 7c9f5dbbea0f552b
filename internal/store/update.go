package store

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var conflictRetries = expvar.NewInt("store_conflict_retries")

func conflictBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.RandomizationFactor = 0.5
	// Conflicts mean another writer made progress; keep going until ctx ends.
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Update runs one read-modify-CAS cycle on key and repeats it while the CAS
// loses to a concurrent writer. An error from fn aborts the cycle without
// writing anything and is returned unchanged.
func Update(ctx context.Context, rs RecordStore, key string, fn func(cur Record) ([]byte, error)) (Record, error) {
	var out Record
	op := func() error {
		cur, err := rs.Get(ctx, key)
		if err != nil {
			return backoff.Permanent(err)
		}
		next, err := fn(cur)
		if err != nil {
			return backoff.Permanent(err)
		}
		rec, err := rs.CompareAndSwap(ctx, key, cur.Version, next)
		if errors.Is(err, ErrConflict) {
			conflictRetries.Add(1)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		out = rec
		return nil
	}
	if err := backoff.Retry(op, conflictBackOff(ctx)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrConflict) {
			return Record{}, unavailable(err)
		}
		return Record{}, err
	}
	return out, nil
}

// UpdateJSON decodes key into T, lets fn mutate it and writes it back with
// Update. It returns the value that was committed.
func UpdateJSON[T any](ctx context.Context, rs RecordStore, key string, fn func(v *T) error) (T, error) {
	var committed T
	_, err := Update(ctx, rs, key, func(cur Record) ([]byte, error) {
		var v T
		if err := json.Unmarshal(cur.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		committed = v
		return b, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return committed, nil
}

func GetJSON[T any](ctx context.Context, rs RecordStore, key string) (T, error) {
	var v T
	rec, err := rs.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func CreateJSON(ctx context.Context, rs RecordStore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = rs.Create(ctx, key, b)
	return err
}

func PutJSON(ctx context.Context, rs RecordStore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = rs.Put(ctx, key, b)
	return err
}

func ListJSON[T any](ctx context.Context, rs RecordStore, prefix string, limit, offset int) ([]T, error) {
	recs, err := rs.List(ctx, prefix, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
