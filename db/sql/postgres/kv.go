package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/adeilh/carefeed/cache"
)

// Backend persists cache entries in a single PostgreSQL table.
type Backend struct {
	db      *sql.DB
	ownsDB  bool
	queries kvQueries
}

type kvQueries struct {
	get, upsert, del, keys string
}

var _ cache.Backend = (*Backend)(nil)

// NewBackend opens a connection pool and ensures the key-value table exists.
func NewBackend(ctx context.Context, opts ...Option) (*Backend, error) {
	db, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	b, err := NewBackendFromDB(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.ownsDB = true
	return b, nil
}

// NewBackendFromDB wraps an existing connection; Close leaves it open.
func NewBackendFromDB(ctx context.Context, db *sql.DB, opts ...Option) (*Backend, error) {
	cfg := applyOptions(opts...)
	if err := ApplyMigrations(ctx, db, kvSchema(cfg.Table)...); err != nil {
		return nil, err
	}
	t := pq.QuoteIdentifier(cfg.Table)
	return &Backend{
		db: db,
		queries: kvQueries{
			get: `SELECT value FROM ` + t + ` WHERE key = $1`,
			upsert: `INSERT INTO ` + t + ` (key, value, updated_at) VALUES ($1, $2, now())
			         ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			del:  `DELETE FROM ` + t + ` WHERE key = $1`,
			keys: `SELECT key FROM ` + t + ` WHERE left(key, length($1)) = $1 ORDER BY key`,
		},
	}, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, b.queries.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	return value, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	if _, err := b.db.ExecContext(ctx, b.queries.upsert, key, value); err != nil {
		return fmt.Errorf("postgres: set %q: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	res, err := b.db.ExecContext(ctx, b.queries.del, key)
	if err != nil {
		return fmt.Errorf("postgres: delete %q: %w", key, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, b.queries.keys, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres: keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the pool when the backend opened it.
func (b *Backend) Close() error {
	if b == nil || !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
