// Package redis implements the repository interfaces on go-redis.
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/crawlgraph/internal/repository"
)

const keyPrefix = "crawlgraph:"

// KeyValueStore persists whole values with SET; a write is all or nothing.
type KeyValueStore struct {
	client *redis.Client
}

func NewKeyValueStore(client *redis.Client) *KeyValueStore {
	return &KeyValueStore{client: client}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrKeyNotFound
	}
	return val, err
}

func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, keyPrefix+key, value, 0).Err()
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
