package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisRecordPrefix = "rec:"
	redisIndexKey     = "rec:index"
	redisPutAttempts  = 8
)

// RedisStore keeps each record in a hash (v, d, ts) and every key in one
// sorted set so prefix listing can use ZRANGEBYLEX. Writes use WATCH/MULTI.
type RedisStore struct {
	Client *redis.Client
}

func NewRedis(addr, password string, db int) *RedisStore {
	return &RedisStore{Client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return unavailable(s.Client.Ping(ctx).Err())
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	fields, err := s.Client.HGetAll(ctx, redisRecordPrefix+key).Result()
	if err != nil {
		return Record{}, unavailable(err)
	}
	return decodeRedisRecord(key, fields)
}

func (s *RedisStore) Create(ctx context.Context, key string, data []byte) (Record, error) {
	hk := redisRecordPrefix + key
	var rec Record
	err := s.Client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, hk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		rec, err = s.write(ctx, tx, key, 1, data)
		return err
	}, hk)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, redis.TxFailedErr):
		return Record{}, ErrAlreadyExists
	case errors.Is(err, ErrAlreadyExists):
		return Record{}, err
	default:
		return Record{}, unavailable(err)
	}
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, version int64, data []byte) (Record, error) {
	hk := redisRecordPrefix + key
	var rec Record
	err := s.Client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, hk, "v").Int64()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur != version {
			return ErrConflict
		}
		rec, err = s.write(ctx, tx, key, version+1, data)
		return err
	}, hk)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, redis.TxFailedErr):
		return Record{}, ErrConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return Record{}, err
	default:
		return Record{}, unavailable(err)
	}
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) (Record, error) {
	hk := redisRecordPrefix + key
	for attempt := 0; attempt < redisPutAttempts; attempt++ {
		var rec Record
		err := s.Client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGet(ctx, hk, "v").Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			rec, err = s.write(ctx, tx, key, cur+1, data)
			return err
		}, hk)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return Record{}, unavailable(err)
		}
	}
	return Record{}, unavailable(ErrConflict)
}

func (s *RedisStore) write(ctx context.Context, tx *redis.Tx, key string, version int64, data []byte) (Record, error) {
	now := time.Now().UTC()
	_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, redisRecordPrefix+key, "v", version, "d", string(data), "ts", now.UnixNano())
		p.ZAdd(ctx, redisIndexKey, &redis.Z{Score: 0, Member: key})
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Version: version, Data: cloneBytes(data), UpdatedAt: now}, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string, limit, offset int) ([]Record, error) {
	if offset < 0 {
		offset = 0
	}
	by := &redis.ZRangeBy{Min: "-", Max: "+", Offset: int64(offset), Count: -1}
	if prefix != "" {
		by.Min = "[" + prefix
		by.Max = "[" + prefix + "\xff"
	}
	if limit > 0 {
		by.Count = int64(limit)
	}
	keys, err := s.Client.ZRangeByLex(ctx, redisIndexKey, by).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRedisRecord(key string, fields map[string]string) (Record, error) {
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	version, err := strconv.ParseInt(fields["v"], 10, 64)
	if err != nil {
		return Record{}, unavailable(err)
	}
	rec := Record{Key: key, Version: version, Data: []byte(fields["d"])}
	if ts, err := strconv.ParseInt(fields["ts"], 10, 64); err == nil {
		rec.UpdatedAt = time.Unix(0, ts).UTC()
	}
	return rec, nil
}
