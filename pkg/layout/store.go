// Package layout persists and computes the sidebar layout: its width and
// whether it is open. State survives restarts through a Store.
package layout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Durable keys.
const (
	KeyWidth  = "sidebarWidth"
	KeyStatus = "sidebarStatus"
)

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// RedisKeyPrefix namespaces layout keys in Redis.
const RedisKeyPrefix = "browser:layout"

// RedisStore is a Store backed by Redis. Keys do not expire.
type RedisStore struct {
	redis *redis.Client
	scope string
}

// NewRedisStore creates a store whose keys are scoped, e.g. per user.
func NewRedisStore(client *redis.Client, scope string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if scope == "" {
		scope = "default"
	}
	return &RedisStore{redis: client, scope: scope}
}

func (s *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:%s:%s", RedisKeyPrefix, s.scope, name)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
