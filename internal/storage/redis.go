package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisSlot(client *redis.Client) *RedisSlot {
	return &RedisSlot{
		client:  client,
		baseTTL: 30 * 24 * time.Hour,
	}
}

// RedisSlot keeps carts in redis. Abandoned carts expire after baseTTL plus jitter.
type RedisSlot struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisSlot) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r RedisSlot) Write(ctx context.Context, key string, data []byte) error {
	jitter := time.Duration(rand.Intn(5)) * 24 * time.Hour
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisSlot) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
