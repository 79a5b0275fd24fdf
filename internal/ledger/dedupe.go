package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultDedupeTTL = 30 * 24 * time.Hour
	keyPrefix        = "paystack:action:"
)

// Deduper claims action ids so each is applied once.
type Deduper interface {
	// Acquire reports false when id was already claimed.
	Acquire(ctx context.Context, id string) (bool, error)
	// Release forgets a claim so a redelivery can retry it.
	Release(ctx context.Context, id string) error
}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Acquire(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+id, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim action %s: %w", id, err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to release action %s: %w", id, err)
	}
	return nil
}
