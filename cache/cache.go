package cache

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("cache: key not found")

// Backend is the durable key-value layer underneath Store. Values are opaque
// bytes; absent keys must be reported as ErrNotFound. Implementations live in
// this package (memory), cache/redis, cache/filestore, db/sql/sqlite and
// db/sql/postgres.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key that starts with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
