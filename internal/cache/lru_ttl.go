package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUTTL combines bounded-size eviction with per-entry expiration: Get
// checks expiration first, then promotes the key to most-recently-used;
// Set inserts with an expiration and evicts the least-recently-used entry
// if the cache exceeds max_size.
type LRUTTL struct {
	maxSize    int
	defaultTTL time.Duration
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	now        func() time.Time
}

type lruTTLEntry struct {
	key      string
	value    any
	expireAt time.Time
}

// NewLRUTTL constructs a combined LRU+TTL cache bounded at maxSize entries,
// using defaultTTL when Set is called without an explicit per-key TTL.
func NewLRUTTL(maxSize int, defaultTTL time.Duration) *LRUTTL {
	return &LRUTTL{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get checks TTL first: an expired entry is deleted and reported as a miss.
// A live entry is promoted to most-recently-used.
func (c *LRUTTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruTTLEntry)
	if !c.now().Before(entry.expireAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Set inserts or updates key with an expiration ttl from now (defaulting to
// default_ttl when ttl is 0), promoting it to most-recently-used. If the
// insert pushes the cache past max_size, the least-recently-used entry is
// evicted.
func (c *LRUTTL) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	expireAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruTTLEntry)
		entry.value, entry.expireAt = value, expireAt
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&lruTTLEntry{key: key, value: value, expireAt: expireAt})
	c.items[key] = el
	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruTTLEntry).key)
		}
	}
}

// Delete removes key, reporting whether it was present.
func (c *LRUTTL) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

// Clear removes every entry.
func (c *LRUTTL) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// CleanupExpired scans every entry and purges those past expiration,
// returning the count removed.
func (c *LRUTTL) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*lruTTLEntry)
		if !now.Before(entry.expireAt) {
			c.order.Remove(el)
			delete(c.items, entry.key)
			removed++
		}
		el = next
	}
	return removed
}

// Size returns the current entry count. Always <= max_size.
func (c *LRUTTL) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns all keys in most-recently-used-first order, including
// entries that have not yet been lazily purged despite being expired.
func (c *LRUTTL) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*lruTTLEntry).key)
	}
	return keys
}
