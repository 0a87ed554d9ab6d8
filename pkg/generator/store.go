package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Store holds answers keyed by prompt digest.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, answer string) error
}

// MemoryStore is an in-process LRU with optional expiry.
type MemoryStore struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryStore creates a store holding at most size answers (0 is unbounded).
// A non-positive ttl keeps answers until evicted by size.
//
// With a positive ttl the LRU starts an expiry goroutine that lives as long as
// the process. Build one such store per process and share it between caches.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get returns the stored answer for key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

// Set stores the answer for key.
func (s *MemoryStore) Set(_ context.Context, key, answer string) error {
	s.lru.Add(key, answer)
	return nil
}

// Len returns the number of stored answers.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

// RedisStore shares answers between processes through Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A non-positive ttl stores without expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the stored answer for key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set stores the answer for key.
func (s *RedisStore) Set(ctx context.Context, key, answer string) error {
	if err := s.client.Set(ctx, s.prefix+key, answer, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
