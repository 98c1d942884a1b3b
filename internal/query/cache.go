package query

import (
	"context"
	"sync"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
)

// Match decides whether a cached key answers a requested key.
type Match[K any] func(cached, requested K) bool

// Equal matches comparable keys exactly.
func Equal[K comparable](cached, requested K) bool {
	return cached == requested
}

// CacheRecorder receives one call per lookup.
type CacheRecorder interface {
	CacheLookup(provider string, hit bool)
}

type cacheEntry[K, V any] struct {
	key    K
	future *async.Future[V]
}

// Cache memoises futures of an inner provider. Entries are matched by a
// predicate and scanned in insertion order, first match wins. A pending
// entry is shared by every caller that matches it. Failed entries are
// evicted so the next matching query retries. Entries never expire.
type Cache[K, V any] struct {
	name     string
	inner    Provider[K, V]
	match    Match[K]
	recorder CacheRecorder

	mu      sync.Mutex
	entries []*cacheEntry[K, V]
}

// CacheOption configures a Cache.
type CacheOption[K, V any] func(*Cache[K, V])

// WithRecorder reports hits and misses under name.
func WithRecorder[K, V any](name string, r CacheRecorder) CacheOption[K, V] {
	return func(c *Cache[K, V]) {
		c.name = name
		c.recorder = r
	}
}

// NewCache wraps inner with a cache keyed by match.
func NewCache[K, V any](inner Provider[K, V], match Match[K], opts ...CacheOption[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{inner: inner, match: match}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query returns the future of the first matching entry, or queries inner
// and remembers the result.
func (c *Cache[K, V]) Query(ctx context.Context, key K) *async.Future[V] {
	c.mu.Lock()
	for _, e := range c.entries {
		if c.match(e.key, key) {
			c.mu.Unlock()
			c.record(true)
			return e.future
		}
	}

	// Reserve the slot before calling inner so concurrent callers share it.
	p, f := async.New[V](async.Inline)
	entry := &cacheEntry[K, V]{key: key, future: f}
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
	c.record(false)

	inner := c.inner.Query(ctx, key)
	p.Follow(inner.OnError(func(error) { c.evict(entry) }))
	return f
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) evict(entry *cacheEntry[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e == entry {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

func (c *Cache[K, V]) record(hit bool) {
	if c.recorder != nil {
		c.recorder.CacheLookup(c.name, hit)
	}
}
