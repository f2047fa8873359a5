// Package cache provides a bounded in-memory key-value cache with
// least-recently-used eviction. Two independently sized instances back the
// standings engine: one protecting raw upstream fetches and one protecting
// aggregated contest results. Entries are opaque to the cache; recency of
// access, not insertion, determines eviction order.
package cache

import (
	"container/list"
	"fmt"
	"sync"
)

// LRU is a fixed-capacity cache that evicts the least-recently-used entry
// when a new key is inserted at capacity. Get promotes the accessed entry to
// most-recently-used; Put always refreshes recency, including on overwrite.
//
// All methods are safe for concurrent use. A single mutex per instance
// serializes every operation so the read-then-evict path on a full cache is
// atomic and the size can never overshoot the configured capacity.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	// order tracks recency: front is most-recently-used, back is the
	// eviction candidate.
	order *list.List
}

// entry is the value stored in list elements. The key is kept alongside the
// value because eviction starts from the list node.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU returns an empty cache holding at most capacity entries.
// It panics if capacity is not positive; capacity is fixed for the lifetime
// of the cache.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		panic(fmt.Sprintf("cache: capacity must be positive, got %d", capacity))
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the value stored for key and whether it was present.
// A hit promotes the entry to most-recently-used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Put stores value under key, overwriting any existing entry. Both the
// insert and the overwrite path refresh recency. When the cache is full and
// key is new, exactly one entry (the least-recently-used) is evicted first.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Remove deletes the entry for key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// Clear discards every entry, leaving the capacity unchanged.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}

// Len reports the number of entries currently stored.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// evictOldest removes the back of the recency list. Callers must hold c.mu.
func (c *LRU[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.order.Remove(oldest)
	delete(c.items, oldest.Value.(*entry[K, V]).key)
}
