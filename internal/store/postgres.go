package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every record as one row of the versioned records table.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return unavailable(s.Pool.Ping(ctx))
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Record, error) {
	rec := Record{Key: key}
	err := s.Pool.QueryRow(ctx,
		`SELECT version, data, updated_at FROM records WHERE key = $1`, key,
	).Scan(&rec.Version, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, unavailable(err)
	}
	return rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, key string, data []byte) (Record, error) {
	rec := Record{Key: key, Data: cloneBytes(data)}
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO records (key, version, data) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO NOTHING
		 RETURNING version, updated_at`, key, data,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrAlreadyExists
	}
	if err != nil {
		return Record{}, unavailable(err)
	}
	return rec, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, version int64, data []byte) (Record, error) {
	rec := Record{Key: key, Data: cloneBytes(data)}
	err := s.Pool.QueryRow(ctx,
		`UPDATE records SET data = $3, version = version + 1, updated_at = now()
		 WHERE key = $1 AND version = $2
		 RETURNING version, updated_at`, key, version, data,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, unavailable(err)
	}
	var exists bool
	if err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM records WHERE key = $1)`, key).Scan(&exists); err != nil {
		return Record{}, unavailable(err)
	}
	if !exists {
		return Record{}, ErrNotFound
	}
	return Record{}, ErrConflict
}

func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) (Record, error) {
	rec := Record{Key: key, Data: cloneBytes(data)}
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO records (key, version, data) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE
		 SET data = EXCLUDED.data, version = records.version + 1, updated_at = now()
		 RETURNING version, updated_at`, key, data,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err != nil {
		return Record{}, unavailable(err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string, limit, offset int) ([]Record, error) {
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT key, version, data, updated_at FROM records
		 WHERE key LIKE $1 ESCAPE '\'
		 ORDER BY key
		 LIMIT $2 OFFSET $3`, likePrefix(prefix), lim, offset,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.Version, &rec.Data, &rec.UpdatedAt); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
