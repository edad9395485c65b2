package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/store"
)

// openStore connects the user store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("database connection established", zap.String("driver", "postgres"))
		return s, nil
	case "mongo":
		s, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		log.Info("database connection established", zap.String("driver", "mongo"), zap.String("database", cfg.MongoDatabase))
		return s, nil
	default:
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	}
}

// openRedis returns nil when REDIS_ADDR is unset. The rate limiter and the
// draft store then fall back to no-op and in-memory behaviour.
func openRedis(ctx context.Context, cfg Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, rate limiting disabled and drafts kept in memory")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	return rdb, nil
}

func newDraftStore(rdb *redis.Client) store.DraftStore {
	if rdb == nil {
		return store.NewMemoryDrafts()
	}
	return store.NewRedisDrafts(rdb)
}
