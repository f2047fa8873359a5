package cache_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-standings/internal/cache"
)

func TestLRUGetMiss(t *testing.T) {
	c := cache.NewLRU[string, int](4)

	v, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestLRUPutGet(t *testing.T) {
	c := cache.NewLRU[string, int](4)
	c.Put("a", 1)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRUOverwriteKeepsSize(t *testing.T) {
	c := cache.NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("a", 2)

	assert.Equal(t, 1, c.Len())

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

// Inserting capacity+1 distinct keys must evict the first inserted key when
// it was never re-accessed, for every capacity.
func TestLRUEvictsOldestAcrossCapacities(t *testing.T) {
	for capacity := 1; capacity <= 8; capacity++ {
		t.Run(fmt.Sprintf("capacity_%d", capacity), func(t *testing.T) {
			c := cache.NewLRU[string, int](capacity)
			for i := 0; i <= capacity; i++ {
				c.Put(fmt.Sprintf("key-%d", i), i)
			}

			_, ok := c.Get("key-0")
			assert.False(t, ok, "first-inserted key should be evicted")
			assert.Equal(t, capacity, c.Len())

			// Every later key survives.
			for i := 1; i <= capacity; i++ {
				_, ok := c.Get(fmt.Sprintf("key-%d", i))
				assert.True(t, ok, "key-%d should still be cached", i)
			}
		})
	}
}

// A Get immediately before an eviction-triggering Put must protect the read
// key: recency is updated on read, so a different entry is evicted.
func TestLRUGetPromotesBeforeEviction(t *testing.T) {
	c := cache.NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", 3) // Evicts "b", not "a".

	_, ok = c.Get("a")
	assert.True(t, ok, "recently read key must survive eviction")
	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-used key must be evicted")
}

func TestLRUPutRefreshesRecencyOnOverwrite(t *testing.T) {
	c := cache.NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10) // Overwrite promotes "a".
	c.Put("c", 3)  // Evicts "b".

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestLRURemove(t *testing.T) {
	c := cache.NewLRU[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("a")
	c.Remove("missing") // No-op.

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestLRUClear(t *testing.T) {
	c := cache.NewLRU[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)

	// Cache remains usable with the same capacity after Clear.
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("key-%d", i), i)
	}
	assert.Equal(t, 4, c.Len())
}

func TestLRUInvalidCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { cache.NewLRU[string, int](0) })
	assert.Panics(t, func() { cache.NewLRU[string, int](-3) })
}

// Size must never overshoot capacity even under concurrent mixed operations.
func TestLRUConcurrentAccess(t *testing.T) {
	const capacity = 16
	c := cache.NewLRU[int, int](capacity)

	// Track the largest size observed by any goroutine and assert on it
	// after the group has finished; FailNow is not safe off the test
	// goroutine.
	var maxLen atomic.Int64

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := (seed*31 + i) % 64
				switch i % 4 {
				case 0:
					c.Put(key, i)
				case 1:
					c.Get(key)
				case 2:
					c.Remove(key)
				default:
					c.Put(key, i)
					c.Get(key)
				}
				observed := int64(c.Len())
				for {
					prev := maxLen.Load()
					if observed <= prev || maxLen.CompareAndSwap(prev, observed) {
						break
					}
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, maxLen.Load(), int64(capacity))
	assert.LessOrEqual(t, c.Len(), capacity)
}
