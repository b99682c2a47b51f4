// Package cache provides a generic TTL loader cache combining expirable LRU
// storage with singleflight to coalesce concurrent loads for the same key.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// LoaderCache is a cache that loads values on miss via a callback and
// coalesces concurrent loads for the same key using singleflight. Without
// singleflight, a burst of N concurrent misses for the same key would trigger
// N loads; with it, one load runs and the rest wait for and share that result.
// Entries expire after the configured TTL so registry changes made outside
// this process are eventually observed even without explicit invalidation.
type LoaderCache[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// NewLoaderCache creates a loader cache with the given max entries and TTL.
func NewLoaderCache[V any](maxEntries int, ttl time.Duration) *LoaderCache[V] {
	return &LoaderCache[V]{
		lru: expirable.NewLRU[string, V](maxEntries, nil, ttl),
	}
}

// Get returns the value for key, loading it via load on cache miss.
// On miss, only one goroutine runs load() for that key; others block and
// receive the same result.
func (c *LoaderCache[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		loaded, loadErr := load(ctx)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		c.lru.Add(key, loaded)

		return loaded, nil
	})
	if err != nil {
		return zero[V](), err
	}

	return val.(V), nil
}

// Invalidate removes the entry for key.
func (c *LoaderCache[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// InvalidateAll removes all entries.
func (c *LoaderCache[V]) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of live entries in the cache.
func (c *LoaderCache[V]) Len() int {
	return c.lru.Len()
}

func zero[V any]() (z V) { return z }
