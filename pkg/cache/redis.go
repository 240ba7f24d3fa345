package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/collabdesk/engine/pkg/logger"
)

// RedisCache implements Cache on top of a shared redis instance.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Cache is an optimization only; a redis failure degrades to a direct read.
		logger.L().Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.Set(ctx, key, out, ttl).Err(); err != nil {
		logger.L().Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		logger.L().Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
