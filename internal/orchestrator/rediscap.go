package orchestrator

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"coldcall-platform/pkg/utils"
)

// RedisSessionCap bounds open calls across every dialer instance sharing
// the Redis counter. The TTL keeps a crashed instance from leaking slots
// forever.
type RedisSessionCap struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration
}

func NewRedisSessionCap(rdb *redis.Client, key string, limit int, ttl time.Duration) *RedisSessionCap {
	if key == "" {
		key = "coldcall:active_calls"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSessionCap{rdb: rdb, key: key, limit: limit, ttl: ttl}
}

func (c *RedisSessionCap) TryAcquire(ctx context.Context) (bool, error) {
	return utils.AcquireCallSlot(ctx, c.rdb, c.key, c.limit, c.ttl)
}

func (c *RedisSessionCap) Release(ctx context.Context) error {
	return utils.ReleaseCallSlot(ctx, c.rdb, c.key)
}
