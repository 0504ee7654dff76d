package pkg

import (
	"context"
	"fmt"

	"github.com/learnsphere/exam-service/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis. An empty RedisURL returns a nil client;
// the cache layer degrades gracefully without one.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}
