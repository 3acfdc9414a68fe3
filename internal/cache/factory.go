package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type StoreConfig struct {
	Backend string
	Prefix  string

	// Cleanup interval for the memory backend.
	CleanupInterval time.Duration
}

func NewStore(cfg StoreConfig, redisClient *redis.Client) Store {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	default:
		return NewMemoryStore(cfg.CleanupInterval)
	}
}
