package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuogn/logistics-front-sub000/internal/cache"
)

// DefaultCacheTTL is how long resolved routes are reused.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores resolved routes. Only provider-backed routes are stored;
// great-circle estimates are recomputed every time.
type Cache interface {
	Get(ctx context.Context, key string) (Route, bool, error)
	Set(ctx context.Context, key string, route Route) error
	Clear(ctx context.Context) error
}

// CacheKey builds the cache key of a request. Coordinates are rounded to five
// decimals (about one metre).
func CacheKey(req RouteRequest) string {
	mode := req.Mode
	if mode == "" {
		mode = ModeCar
	}
	return fmt.Sprintf("%s:%.5f,%.5f:%.5f,%.5f",
		mode,
		req.Origin.Lat, req.Origin.Lng,
		req.Destination.Lat, req.Destination.Lng,
	)
}

// MemoryCache is an in-process route cache. Routes are copied on the way in
// and out so callers never share geometry.
type MemoryCache struct {
	entries *cache.TTL[Route]
}

// NewMemoryCache creates an in-process cache with the given TTL.
func NewMemoryCache(ttl time.Duration, opts ...cache.Option) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{entries: cache.NewTTL[Route](ttl, opts...)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (Route, bool, error) {
	r, ok := c.entries.Get(key)
	if !ok {
		return Route{}, false, nil
	}
	return r.Clone(), true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, route Route) error {
	c.entries.Set(key, route.Clone())
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.entries.Clear()
	return nil
}

// Stats returns entry counts.
func (c *MemoryCache) Stats() cache.Stats {
	return c.entries.Stats()
}

// RedisCache shares resolved routes between processes.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// RedisCacheConfig holds configuration for RedisCache.
type RedisCacheConfig struct {
	Client redis.Cmdable
	Prefix string        // Key prefix. Default: "route:"
	TTL    time.Duration // Default: DefaultCacheTTL
}

// NewRedisCache creates a Redis-backed route cache.
func NewRedisCache(cfg RedisCacheConfig) *RedisCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "route:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: cfg.Client, prefix: prefix, ttl: ttl}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (Route, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Route{}, false, nil
		}
		return Route{}, false, fmt.Errorf("redis get: %w", err)
	}

	var route Route
	if err := json.Unmarshal(data, &route); err != nil {
		return Route{}, false, fmt.Errorf("decode cached route: %w", err)
	}
	return route, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, route Route) error {
	data, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("encode route: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every key under the cache prefix using SCAN.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
