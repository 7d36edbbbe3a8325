package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "nguide:cache:"

// ListCache stores JSON-encoded list responses in Redis with a fixed TTL.
type ListCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewListCache creates a ListCache. A non-positive ttl disables caching.
func NewListCache(rdb redis.UniversalClient, ttl time.Duration) *ListCache {
	return &ListCache{rdb: rdb, ttl: ttl}
}

// MakeKey builds a stable key from a prefix and query parameters. Parameters
// are sorted by name and query-escaped, so distinct sets never share a key.
func MakeKey(prefix string, params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return prefix + "?" + values.Encode()
}

// Get decodes the cached value for key into dest. It reports false on a miss.
func (c *ListCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, keyNamespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for the cache TTL.
func (c *ListCache) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if err := c.rdb.Set(ctx, keyNamespace+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// InvalidatePrefix removes every key starting with prefix.
func (c *ListCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, keyNamespace+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache prefix %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache prefix %s: %w", prefix, err)
	}
	return nil
}
