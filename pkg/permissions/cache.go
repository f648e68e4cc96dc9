package permissions

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize bounds the number of cached contexts per process
	DefaultCacheSize = 4096

	// DefaultCacheTTL is the staleness window for cached contexts. Callers
	// that mutate role data must invalidate explicitly rather than rely on
	// expiry alone.
	DefaultCacheTTL = 5 * time.Minute
)

// CacheStats reports cache usage for observability
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// ContextCache is an in-memory TTL cache for permission contexts, shared by
// all checker instances in the process. Entries carry invalidation tags
// (user:<id>, team:<id>, project:<id>) so that role changes can evict every
// context that mentioned the affected user or resource without string
// matching on keys.
//
// It is safe for concurrent use. It is a per-process memoization layer, not
// a consistency-critical store: no cross-process coordination is attempted.
type ContextCache[T any] struct {
	// mu serializes mutating operations. indexMu guards only the tag maps:
	// the LRU invokes the eviction callback synchronously from Add, Remove,
	// and Purge while mu is held, so the callback needs its own lock.
	// Lock order is always mu, then indexMu; never the reverse.
	mu        sync.Mutex
	indexMu   sync.Mutex
	lru       *lru.LRU[string, T]
	byTag     map[string]map[string]struct{}
	tagsByKey map[string][]string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewContextCache creates a context cache holding at most size entries, each
// expiring ttl after it was set.
func NewContextCache[T any](size int, ttl time.Duration) *ContextCache[T] {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &ContextCache[T]{
		byTag:     make(map[string]map[string]struct{}),
		tagsByKey: make(map[string][]string),
	}
	// Keeps the tag index in step with capacity and TTL eviction, so the
	// index cannot outgrow the LRU as keys churn through it.
	onEvict := func(key string, _ T) {
		c.indexMu.Lock()
		c.dropIndex(key)
		c.indexMu.Unlock()
	}
	c.lru = lru.NewLRU[string, T](size, onEvict, ttl)
	return c
}

// Get returns the cached value for key. Expired entries are never returned.
func (c *ContextCache[T]) Get(key string) (T, bool) {
	value, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		var zero T
		return zero, false
	}
	c.hits.Add(1)
	return value, true
}

// Set inserts or overwrites the entry under key with a fresh TTL and records
// its invalidation tags.
func (c *ContextCache[T]) Set(key string, value T, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Add may evict the oldest entry; the eviction callback drops its
	// index slots before Add returns.
	c.lru.Add(key, value)

	c.indexMu.Lock()
	c.dropIndex(key)
	if len(tags) > 0 {
		c.tagsByKey[key] = tags
		for _, tag := range tags {
			keys, ok := c.byTag[tag]
			if !ok {
				keys = make(map[string]struct{})
				c.byTag[tag] = keys
			}
			keys[key] = struct{}{}
		}
	}
	c.indexMu.Unlock()
}

// Invalidate removes exactly one entry if present; no-op otherwise.
func (c *ContextCache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lru.Remove(key) {
		c.indexMu.Lock()
		c.dropIndex(key)
		c.indexMu.Unlock()
	}
}

// InvalidateTag removes every entry that was set with the given tag and
// returns the number of entries removed.
func (c *ContextCache[T]) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.indexMu.Lock()
	keys := make([]string, 0, len(c.byTag[tag]))
	for key := range c.byTag[tag] {
		keys = append(keys, key)
	}
	c.indexMu.Unlock()

	removed := 0
	for _, key := range keys {
		if c.lru.Remove(key) {
			removed++
		} else {
			c.indexMu.Lock()
			c.dropIndex(key)
			c.indexMu.Unlock()
		}
	}
	return removed
}

// Clear removes all entries.
func (c *ContextCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()

	c.indexMu.Lock()
	c.byTag = make(map[string]map[string]struct{})
	c.tagsByKey = make(map[string][]string)
	c.indexMu.Unlock()
}

// Stats returns entry count and hit/miss counters.
func (c *ContextCache[T]) Stats() CacheStats {
	stats := CacheStats{
		Entries: c.lru.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// dropIndex removes key from the tag index. Callers must hold c.indexMu.
func (c *ContextCache[T]) dropIndex(key string) {
	for _, tag := range c.tagsByKey[key] {
		if keys, ok := c.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
	delete(c.tagsByKey, key)
}
