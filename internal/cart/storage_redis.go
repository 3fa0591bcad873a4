package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps a cart as a JSON string under one redis key. Each save
// slides the expiry forward.
type RedisStorage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, key string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, key: key, ttl: ttl}
}

// RedisFactory returns a StorageFactory producing session-scoped RedisStorage.
func RedisFactory(client *redis.Client, ttl time.Duration) StorageFactory {
	return func(sessionID string) Storage {
		return NewRedisStorage(client, StorageKey(sessionID), ttl)
	}
}

func (r *RedisStorage) Load(ctx context.Context) (*Cart, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

func (r *RedisStorage) Save(ctx context.Context, c *Cart) error {
	data, err := encode(c)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
