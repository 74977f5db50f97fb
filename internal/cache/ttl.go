// Package cache provides a small keyed cache with time-based expiry.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the expiry used when a cache is created with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time. Tests replace it to control expiry.
type Clock func() time.Time

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// TTL is a concurrency-safe map whose entries expire after a fixed duration.
// Expired entries are reported as absent and are replaced on the next Set;
// there is no size bound and no background eviction.
type TTL[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     Clock
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.now = c
	}
}

// NewTTL creates a cache whose entries are valid for ttl.
func NewTTL[T any](ttl time.Duration, opts ...Option) *TTL[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     o.now,
	}
}

// Get returns the value for key if it was stored less than TTL ago.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[T]) Set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Delete removes a single key.
func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *TTL[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

// Stats reports how many entries are stored and how many of them are still valid.
func (c *TTL[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	stats := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if now.Sub(e.storedAt) < c.ttl {
			stats.Valid++
		}
	}
	return stats
}

// TTL returns the configured expiry.
func (c *TTL[T]) TTL() time.Duration {
	return c.ttl
}

// Stats contains cache statistics.
type Stats struct {
	Entries int `json:"entries"`
	Valid   int `json:"valid"`
}
