package kv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in Redis, for widget hosts that already run one
// and want session state shared across processes.
type RedisStore struct {
	client *redis.Client
}

var _ Store = &RedisStore{}

func NewRedisStore(addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis kv store: empty address")
	}
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}, nil
}

// NewRedisStoreFromClient wraps an existing client; the caller keeps
// ownership and Close becomes a no-op.
func NewRedisStoreFromClient(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis kv store: nil client")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, errors.New("redis kv store: nil client")
	}
	if key == "" {
		return "", false, errors.New("redis kv store: key is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis kv store: get")
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s == nil || s.client == nil {
		return errors.New("redis kv store: nil client")
	}
	if key == "" {
		return errors.New("redis kv store: key is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrap(err, "redis kv store: set")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return errors.New("redis kv store: nil client")
	}
	if key == "" {
		return errors.New("redis kv store: key is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis kv store: delete")
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
