package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter shares rate limit windows between replicas.
type RedisCounter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCounter(client redis.Cmdable, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "hrdash:ratelimit:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	fullKey := c.prefix + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	ttl := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis incr %s: %w", fullKey, err)
	}

	resetAfter := ttl.Val()
	if resetAfter < 0 {
		if err := c.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire %s: %w", fullKey, err)
		}
		resetAfter = window
	}
	return int(incr.Val()), resetAfter, nil
}
