package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/civil-registry-booking/internal/config"
	"github.com/hackgods/civil-registry-booking/internal/db"
)

// Open builds the KV store selected by cfg.StorageDriver. The returned pool
// is non-nil only for the postgres driver and belongs to the caller.
func Open(ctx context.Context, cfg config.Config, rdb *redis.Client) (KV, *pgxpool.Pool, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return NewMemoryKV(), nil, nil

	case config.DriverFile:
		kv, err := NewFileKV(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return kv, nil, nil

	case config.DriverRedis:
		if rdb == nil {
			return nil, nil, errors.New("redis storage driver needs a redis connection")
		}
		return NewRedisKV(rdb), nil, nil

	case config.DriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection error: %w", err)
		}
		kv := NewPgKV(pool)
		if err := kv.EnsureSchema(pgCtx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("connected to Postgres")
		return kv, pool, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
