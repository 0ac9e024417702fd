package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisDedupCache keeps processed webhook keys in Redis so every replica shares one window
type RedisDedupCache struct {
	client *redis.Client
	prefix string
}

// NewRedisDedupCache creates a cache on the given client
func NewRedisDedupCache(client *redis.Client) *RedisDedupCache {
	return &RedisDedupCache{
		client: client,
		prefix: "raffle:webhook:",
	}
}

// NewRedisClient connects to addr and verifies the connection
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Claim records the key for ttl. It returns false if the key was already claimed.
func (c *RedisDedupCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("dedup key is empty")
	}
	if ttl <= 0 {
		return false, errors.New("dedup ttl must be positive")
	}

	ok, err := c.client.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim dedup key: %w", err)
	}
	return ok, nil
}

// Release forgets the key
func (c *RedisDedupCache) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release dedup key: %w", err)
	}
	return nil
}
