// Package cache provides typed in-process caches.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// TTLCache is a Cache whose entries expire after a fixed duration.
// Expired entries are purged by a background janitor.
type TTLCache[T any] struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewTTLCache creates a cache with the given entry lifetime and janitor
// interval.
func NewTTLCache[T any](ttl, cleanupInterval time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		c:   gocache.New(ttl, cleanupInterval),
		ttl: ttl,
	}
}

func (t *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := t.c.Get(key)
	if !ok {
		return zero, false
	}
	data, ok := v.(T)
	if !ok {
		return zero, false
	}
	return data, true
}

func (t *TTLCache[T]) Set(key string, data T) {
	t.c.Set(key, data, gocache.DefaultExpiration)
}

func (t *TTLCache[T]) Delete(key string) {
	t.c.Delete(key)
}

// Size counts entries including expired ones not yet purged.
func (t *TTLCache[T]) Size() int {
	return t.c.ItemCount()
}

// Flush removes every entry.
func (t *TTLCache[T]) Flush() {
	t.c.Flush()
}

// TTL returns the entry lifetime.
func (t *TTLCache[T]) TTL() time.Duration {
	return t.ttl
}
