package main

import (
	"context"
	"fmt"

	"github.com/adeilh/carefeed/cache"
	"github.com/adeilh/carefeed/cache/filestore"
	"github.com/adeilh/carefeed/cache/redis"
	"github.com/adeilh/carefeed/config"
	"github.com/adeilh/carefeed/db/sql/postgres"
	"github.com/adeilh/carefeed/db/sql/sqlite"
)

func nopClose() error { return nil }

// openBackend builds the persisted key-value store named by cache.backend.
func openBackend(ctx context.Context, cfg *config.Config) (cache.Backend, func() error, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return cache.NewMemoryBackend(), nopClose, nil
	case config.BackendSQLite:
		b, err := sqlite.Open(ctx, cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return b, b.Close, nil
	case config.BackendFile:
		b, err := filestore.New(cfg.Cache.FileDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file cache: %w", err)
		}
		return b, nopClose, nil
	case config.BackendRedis:
		b := redis.New(redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := b.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return b, b.Close, nil
	case config.BackendPostgres:
		b, err := postgres.NewBackend(ctx,
			postgres.WithDSN(cfg.Cache.PostgresDSN),
			postgres.WithTable(cfg.Cache.PostgresTable),
			postgres.WithMaxOpenConns(cfg.Cache.PostgresMaxOpenConns),
			postgres.WithMaxIdleConns(cfg.Cache.PostgresMaxIdleConns),
			postgres.WithConnMaxLifetime(cfg.PostgresConnMaxLifetime()),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres cache: %w", err)
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
