package permissions

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextCache_SetGet(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	cache.Set("k1", "v1", "user:1")

	value, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", value)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestContextCache_Defaults(t *testing.T) {
	cache := NewContextCache[int](0, 0)
	cache.Set("k", 1)

	value, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, value)
}

func TestContextCache_Expiry(t *testing.T) {
	cache := NewContextCache[string](16, 20*time.Millisecond)

	cache.Set("k1", "v1")
	_, ok := cache.Get("k1")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = cache.Get("k1")
	assert.False(t, ok, "expired entry must never be returned")
}

func TestContextCache_Overwrite(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	cache.Set("k1", "old", "team:1")
	cache.Set("k1", "new", "team:2")

	value, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "new", value)

	// The old tag must no longer reach the entry
	assert.Equal(t, 0, cache.InvalidateTag("team:1"))
	assert.Equal(t, 1, cache.InvalidateTag("team:2"))
	_, ok = cache.Get("k1")
	assert.False(t, ok)
}

func TestContextCache_Invalidate(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	cache.Set("k1", "v1")
	cache.Set("k2", "v2")

	cache.Invalidate("k1")
	cache.Invalidate("never-existed") // no-op

	_, ok := cache.Get("k1")
	assert.False(t, ok)
	_, ok = cache.Get("k2")
	assert.True(t, ok)
}

func TestContextCache_InvalidateTag(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	cache.Set("team:1:10", "a", "user:1", "team:10")
	cache.Set("team:2:10", "b", "user:2", "team:10")
	cache.Set("team:1:20", "c", "user:1", "team:20")

	removed := cache.InvalidateTag("team:10")
	assert.Equal(t, 2, removed)

	_, ok := cache.Get("team:1:10")
	assert.False(t, ok)
	_, ok = cache.Get("team:2:10")
	assert.False(t, ok)
	_, ok = cache.Get("team:1:20")
	assert.True(t, ok, "entries under other tags must survive")

	assert.Equal(t, 0, cache.InvalidateTag("team:10"), "tag already drained")
	assert.Equal(t, 0, cache.InvalidateTag("unknown"))
}

func TestContextCache_InvalidateTagSharedEntries(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	// One entry under several tags: removing via either tag must drop it
	// from both indexes.
	cache.Set("project:1:5", "x", "user:1", "project:5", "team:7")

	assert.Equal(t, 1, cache.InvalidateTag("team:7"))
	assert.Equal(t, 0, cache.InvalidateTag("project:5"))
	assert.Equal(t, 0, cache.InvalidateTag("user:1"))
}

func TestContextCache_Clear(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	cache.Set("k1", "v1", "user:1")
	cache.Set("k2", "v2", "user:2")

	cache.Clear()

	_, ok := cache.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.InvalidateTag("user:1"))
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestContextCache_Stats(t *testing.T) {
	cache := NewContextCache[string](16, time.Minute)

	cache.Set("k1", "v1")
	cache.Get("k1")
	cache.Get("k1")
	cache.Get("missing")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestContextCache_EvictionBound(t *testing.T) {
	cache := NewContextCache[int](4, time.Minute)

	for i := 0; i < 10; i++ {
		cache.Set(fmt.Sprintf("k%d", i), i, "all")
	}

	assert.LessOrEqual(t, cache.Stats().Entries, 4)

	// Tag invalidation after LRU eviction must not panic or over-count.
	removed := cache.InvalidateTag("all")
	assert.LessOrEqual(t, removed, 4)
	assert.Equal(t, 0, cache.Stats().Entries)
}

// indexSize reports the tag index footprint for leak assertions.
func (c *ContextCache[T]) indexSize() (keys, tags int) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	return len(c.tagsByKey), len(c.byTag)
}

func TestContextCache_EvictionPrunesTagIndex(t *testing.T) {
	cache := NewContextCache[int](4, time.Minute)

	for i := 0; i < 1000; i++ {
		cache.Set(fmt.Sprintf("k%d", i), i, fmt.Sprintf("user:%d", i), "all")
	}

	assert.Equal(t, 4, cache.Stats().Entries)

	// The index must track survivors only, not every key that ever
	// churned through the cache.
	keys, tags := cache.indexSize()
	assert.Equal(t, 4, keys)
	assert.Equal(t, 5, tags, "4 distinct user tags plus the shared tag")

	assert.Equal(t, 4, cache.InvalidateTag("all"))
	assert.Equal(t, 0, cache.Stats().Entries)

	keys, tags = cache.indexSize()
	assert.Equal(t, 0, keys)
	assert.Equal(t, 0, tags)
}

func TestContextCache_ExpiryPrunesTagIndex(t *testing.T) {
	cache := NewContextCache[string](16, 20*time.Millisecond)

	for i := 0; i < 8; i++ {
		cache.Set(fmt.Sprintf("k%d", i), "v", "team:1")
	}

	keys, _ := cache.indexSize()
	require.Equal(t, 8, keys)

	// Expiry removal runs on the cache's own schedule; poll rather than
	// assume a single sleep is enough.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if keys, _ = cache.indexSize(); keys == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tag index still holds %d keys after expiry", keys)
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, 0, cache.Stats().Entries)
	assert.Equal(t, 0, cache.InvalidateTag("team:1"))
}

func TestContextCache_ConcurrentAccess(t *testing.T) {
	cache := NewContextCache[int](128, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				switch i % 4 {
				case 0:
					cache.Set(key, i, fmt.Sprintf("user:%d", i%8))
				case 1:
					cache.Get(key)
				case 2:
					cache.Invalidate(key)
				default:
					cache.InvalidateTag(fmt.Sprintf("user:%d", i%8))
				}
			}
		}(g)
	}
	wg.Wait()
}
