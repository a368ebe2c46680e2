package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix  = "shirttrack:idem:"
	defaultIdempotencyTTL = 24 * time.Hour
)

type RedisAdapter struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisAdapter(client redis.UniversalClient, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseIdempotency drops a claimed key so the request can be retried.
func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
