package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ElementEntry is a cached resolved element handle, keyed by the
// canonicalized selector chain that produced it.
type ElementEntry struct {
	// NativeRef opaquely identifies the underlying platform element handle.
	// Consumers type-assert this to the concrete handle type for their OS.
	NativeRef any
	// ResolvedAt records when the element was last resolved, used to decide
	// whether a cached entry should be revalidated before reuse.
	ResolvedAt time.Time
}

// ElementCache caches resolved element handles by selector key, bounded by
// entry count. Entries are not trusted indefinitely: callers are expected to
// revalidate a hit (e.g. check IsStillValid) before acting on it, since the
// underlying UI element may have been destroyed.
type ElementCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, ElementEntry]
	ttl time.Duration
}

// NewElementCache creates a cache holding at most size resolved elements.
// Entries older than ttl are treated as misses even if still present;
// ttl <= 0 disables expiry.
func NewElementCache(size int, ttl time.Duration) *ElementCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, ElementEntry](size)
	return &ElementCache{lru: c, ttl: ttl}
}

// Get returns the cached entry for key, if present and not expired.
func (c *ElementCache) Get(key string) (ElementEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return ElementEntry{}, false
	}
	if c.ttl > 0 && time.Since(entry.ResolvedAt) > c.ttl {
		c.lru.Remove(key)
		return ElementEntry{}, false
	}
	return entry, true
}

// Put stores a resolved element handle under key, stamped with the current time.
func (c *ElementCache) Put(key string, nativeRef any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, ElementEntry{NativeRef: nativeRef, ResolvedAt: time.Now()})
}

// Invalidate removes a single cached entry, e.g. after an action that is
// known to have destroyed or replaced the underlying element.
func (c *ElementCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear removes all cached entries, e.g. on window focus change.
func (c *ElementCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the current number of cached entries.
func (c *ElementCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
