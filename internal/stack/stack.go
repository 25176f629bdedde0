// Package stack opens the Postgres, Redis and queue connections every binary
// needs and builds a warehouse.Engine on top of them.
package stack

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/DockGuard/internal/config"
	"github.com/dharsanguruparan/DockGuard/internal/database"
	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/queue"
	"github.com/dharsanguruparan/DockGuard/internal/repository"
	"github.com/dharsanguruparan/DockGuard/internal/scanlock"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

// Stack holds live connections. Close releases all of them.
type Stack struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Queue  *asynq.Client
	Engine *warehouse.Engine
}

// Open connects to Postgres and Redis, ensures the schema exists and
// constructs the engine. When manifest export is enabled, every dock release
// enqueues a manifest:export task.
func Open(ctx context.Context, cfg *config.Config) (*Stack, error) {
	pool, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseConn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	rdb := redis.NewClient(RedisOptions(cfg))
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := &Stack{
		Pool:  pool,
		Redis: rdb,
		Queue: asynq.NewClient(RedisClientOpt(cfg)),
	}
	opts := warehouse.Options{
		LockPrefix:      cfg.ScanLockPrefix,
		PalletScanTTL:   cfg.PalletScanTTL,
		DockScanTTL:     cfg.DockScanTTL,
		DefaultCapacity: cfg.Capacity(),
	}
	if cfg.ManifestExport {
		opts.OnRelease = func(ctx context.Context, shipment *model.Shipment) error {
			return queue.EnqueueManifest(ctx, s.Queue, queue.ManifestPayload{ShipmentRef: shipment.ReferenceNumber})
		}
	}
	s.Engine = warehouse.New(repository.NewStore(pool), scanlock.NewRedis(rdb), opts)
	return s, nil
}

// Close releases the connections in reverse order of creation.
func (s *Stack) Close() {
	if err := s.Queue.Close(); err != nil {
		log.Printf("close queue client: %v", err)
	}
	if err := s.Redis.Close(); err != nil {
		log.Printf("close redis: %v", err)
	}
	s.Pool.Close()
}

// RedisOptions maps the config onto go-redis options.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// RedisClientOpt maps the config onto asynq's connection options.
func RedisClientOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
