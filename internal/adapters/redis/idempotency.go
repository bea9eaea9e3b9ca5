package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

func idempKey(key string) string {
	return "idemp:" + key
}

// Load returns the stored record, or nil when the key is unknown.
func (i *Idempotency) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := i.client.Get(ctx, idempKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (i *Idempotency) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return i.client.Set(ctx, idempKey(key), data, ttl).Err()
}
