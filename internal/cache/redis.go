// Package cache connects to the Redis instance backing request rate limits.
package cache

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/config"

	"github.com/redis/go-redis/v9"
)

// Connect creates a Redis client and verifies the connection with a ping
func Connect(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
