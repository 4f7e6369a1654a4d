package breach

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RangeCache stores range responses by hash prefix.
type RangeCache interface {
	Get(ctx context.Context, prefix string) (string, bool, error)
	Set(ctx context.Context, prefix, body string, ttl time.Duration) error
}

const rangeKeyPrefix = "fv:hibp:range:"

// RedisRangeCache is a RangeCache on Redis.
type RedisRangeCache struct {
	rc *redis.Client
}

var _ RangeCache = (*RedisRangeCache)(nil)

// NewRedisRangeCache wraps rc.
func NewRedisRangeCache(rc *redis.Client) *RedisRangeCache {
	return &RedisRangeCache{rc: rc}
}

// Get returns the cached body; a miss is ("", false, nil).
func (c *RedisRangeCache) Get(ctx context.Context, prefix string) (string, bool, error) {
	v, err := c.rc.Get(ctx, rangeKeyPrefix+prefix).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores body for ttl.
func (c *RedisRangeCache) Set(ctx context.Context, prefix, body string, ttl time.Duration) error {
	return c.rc.Set(ctx, rangeKeyPrefix+prefix, body, ttl).Err()
}
