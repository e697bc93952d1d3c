package database

import (
	"context"
	"fmt"
	"time"

	"github.com/oncotrack-ai/platform/pkg/common/config"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// NewRedis returns a Redis client for the given config. Connectivity is probed
// once at startup; a failed ping is logged but not fatal, since Redis only
// backs the rollup cache, every cache operation is best effort, and the
// service degrades to recomputing.
func NewRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Warn("Redis ping failed, rollup cache will recompute until it recovers")
	} else {
		logger.Log.Info("Connected to Redis")
	}

	return client
}

func CloseRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
