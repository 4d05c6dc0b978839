package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/cartstore/internal/port"
)

// RedisAdapter keeps cart snapshots as plain string values without expiry.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	blob, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return blob, nil
}

func (r *RedisAdapter) Save(ctx context.Context, key string, blob []byte) error {
	if err := r.client.Set(ctx, key, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
