package repository

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/insect-id/internal/logging"
)

// RedisKV is a KV backed by go-redis. Keys never expire.
type RedisKV struct {
	client *redis.Client
	retrier
}

// NewRedisKV constructs a new Redis-backed adapter.
func NewRedisKV(client *redis.Client, logger *zap.Logger) *RedisKV {
	return &RedisKV{client: client, retrier: newRetrier(logger.Named("redis_kv"))}
}

func (c *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.executeWithRetry(ctx, "redis_kv.get", logging.RequestIDFromContext(ctx), func() error {
		v, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (c *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return c.executeWithRetry(ctx, "redis_kv.set", logging.RequestIDFromContext(ctx), func() error {
		return c.client.Set(ctx, key, value, 0).Err()
	})
}

func (c *RedisKV) Delete(ctx context.Context, key string) error {
	return c.executeWithRetry(ctx, "redis_kv.delete", logging.RequestIDFromContext(ctx), func() error {
		return c.client.Del(ctx, key).Err()
	})
}

func (c *RedisKV) Ping(ctx context.Context) error {
	return logging.NewOperationError("redis_kv.ping", "", c.client.Ping(ctx).Err())
}
