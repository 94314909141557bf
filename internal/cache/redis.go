/**
 * @description
 * This package provides the Redis-backed read cache used by the movement
 * query paths and the invalidator used by the mutation paths. Pattern
 * eviction is implemented with SCAN so glob knowledge stays here; the
 * orchestrators only hand over keys and patterns.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/redis/go-redis/v9: The Redis client library.
 */

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Invalidator evicts cache entries after a successful mutation. Eviction is
// best-effort: failures are logged, never surfaced to the caller.
type Invalidator interface {
	Evict(ctx context.Context, key string)
	EvictPattern(ctx context.Context, pattern string)
}

// Store is the read-through cache consumed by the query paths.
type Store interface {
	Invalidator
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore with the given entry TTL.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads a cached JSON value into dest. A miss or decode failure returns
// false; a stale undecodable entry is dropped.
func (s *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("level=warn component=cache msg=\"get failed\" key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("level=warn component=cache msg=\"decode failed; evicting\" key=%s err=%v", key, err)
		s.Evict(ctx, key)
		return false
	}
	return true
}

// Set stores a JSON-encoded value under key with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("level=warn component=cache msg=\"encode failed\" key=%s err=%v", key, err)
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"set failed\" key=%s err=%v", key, err)
	}
}

// Evict removes a single key.
func (s *RedisStore) Evict(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"evict failed\" key=%s err=%v", key, err)
	}
}

// EvictPattern removes every key matching a glob pattern using SCAN, so a
// large keyspace is never blocked the way KEYS would.
func (s *RedisStore) EvictPattern(ctx context.Context, pattern string) {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("level=warn component=cache msg=\"evict failed\" key=%s err=%v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"pattern scan failed\" pattern=%s err=%v", pattern, err)
	}
}

// NoopStore satisfies Store when Redis is not configured; reads always miss.
type NoopStore struct{}

func (NoopStore) Get(ctx context.Context, key string, dest any) bool { return false }
func (NoopStore) Set(ctx context.Context, key string, value any)     {}
func (NoopStore) Evict(ctx context.Context, key string)              {}
func (NoopStore) EvictPattern(ctx context.Context, pattern string)   {}
