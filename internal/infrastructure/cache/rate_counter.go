package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateCounter counts requests per key in fixed windows shared by all
// instances
type RedisRateCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateCounter creates a counter under prefix ("ratelimit:" if empty)
func NewRedisRateCounter(client redis.UniversalClient, prefix string) *RedisRateCounter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisRateCounter{client: client, prefix: prefix}
}

// Hit increments the counter of key and returns the count in the current
// window. The window starts at the first hit.
func (r *RedisRateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, r.prefix+key)
		pipe.ExpireNX(ctx, r.prefix+key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
