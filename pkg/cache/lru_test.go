package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

type prefs struct {
	Timezone string
	Muted    []string
}

func TestLRUCache_PutGet(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, prefs](4)

	_, ok := c.Get("u1")
	assert.False(t, ok, "empty cache misses")

	_, replaced := c.Put("u1", prefs{Timezone: "UTC"})
	assert.False(t, replaced)

	prev, replaced := c.Put("u1", prefs{Timezone: "Europe/Berlin"})
	assert.True(t, replaced)
	assert.Equal(t, "UTC", prev.Timezone)

	got, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := cache.NewLRUCache[string, int](2)
	c.SetEvictCallback(func(key string, _ int) { evicted = append(evicted, key) })

	c.Put("u1", 1)
	c.Put("u2", 2)
	c.Get("u1")
	c.Put("u3", 3)

	_, ok := c.Get("u2")
	assert.False(t, ok)
	_, ok = c.Get("u1")
	assert.True(t, ok, "read refreshed recency")
	assert.Equal(t, []string{"u2"}, evicted)

	t.Run("single slot", func(t *testing.T) {
		one := cache.NewLRUCache[string, int](1)
		one.Put("a", 1)
		one.Put("b", 2)
		_, ok := one.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 1, one.Len())
	})
}

func TestLRUCache_RemoveAndClear(t *testing.T) {
	t.Parallel()

	var evicted int
	c := cache.NewLRUCache[string, int](3)
	c.SetEvictCallback(func(string, int) { evicted++ })
	c.Put("u1", 1)
	c.Put("u2", 2)
	c.Put("u3", 3)

	v, ok := c.Remove("u1")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Remove("u1")
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Equal(t, 3, evicted, "remove and clear report every entry")
}

func TestLRUCache_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := cache.NewLRUCache[string, int](3,
		cache.WithTTL(30*time.Second),
		cache.WithClock(func() time.Time { return now }),
	)

	c.Put("u1", 1)
	now = now.Add(29 * time.Second)
	v, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Second)
	_, ok = c.Get("u1")
	assert.False(t, ok, "expires exactly at the deadline")
	assert.Zero(t, c.Len(), "collected on access")

	c.Put("u2", 1)
	now = now.Add(time.Minute)
	_, replaced := c.Put("u2", 2)
	assert.False(t, replaced, "expired value is not reported as previous")
	v, ok = c.Get("u2")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLRUCache_InvalidCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { cache.NewLRUCache[string, int](0) })
	assert.Panics(t, func() { cache.NewLRUCache[string, int](-1) })
}

func TestLRUCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, int](50, cache.WithTTL(time.Hour))
	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("user-%d", i%75)
			c.Put(key, i)
			c.Get(key)
			if i%5 == 0 {
				c.Remove(key)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
