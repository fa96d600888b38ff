package config

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis opens the Redis client used by the auth middleware as an
// identity cache. Returns nil when Redis is not configured or not
// reachable; callers treat a nil client as "caching disabled".
func ConnectRedis(cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set, identity caching disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		slog.Error("failed to connect to Redis, identity caching disabled", "error", err)
		return nil
	}

	slog.Info("connected to Redis")
	return rdb
}
