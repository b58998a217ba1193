package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"presence/pkg/platform/sentinel"
)

// RedisReportCache shares computed reports across engine replicas. Redis
// owns expiry through the entry TTL.
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReportCache(client *redis.Client, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, ttl: ttl}
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (Cached, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cached{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Cached{}, fmt.Errorf("get cached report: %w", err)
	}

	var value Cached
	if err := json.Unmarshal(raw, &value); err != nil {
		// A corrupt entry reads as a miss; the recompute overwrites it.
		return Cached{}, sentinel.ErrNotFound
	}
	return value, nil
}

func (c *RedisReportCache) Put(ctx context.Context, key string, value Cached) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cached report: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached report: %w", err)
	}
	return nil
}
