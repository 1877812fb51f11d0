package preview

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// compileCache is a bounded LRU over compile results, keyed by source
// fingerprint. Entries hold the pristine compiled unit; callers receive
// clones so a mounted tree never aliases the cache.
type compileCache struct {
	capacity int
	items    map[uint64]*cacheEntry
	order    *list.List
	mu       sync.Mutex

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	key      uint64
	compiled *Compiled
	element  *list.Element
}

func newCompileCache(capacity int) *compileCache {
	if capacity < 1 {
		capacity = 1
	}
	return &compileCache{
		capacity: capacity,
		items:    make(map[uint64]*cacheEntry),
		order:    list.New(),
	}
}

func (c *compileCache) get(key uint64) (*Compiled, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.order.MoveToFront(entry.element)
	c.hits.Add(1)
	return entry.compiled, true
}

func (c *compileCache) put(key uint64, compiled *Compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.compiled = compiled
		c.order.MoveToFront(entry.element)
		return
	}

	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	entry := &cacheEntry{key: key, compiled: compiled}
	entry.element = c.order.PushFront(entry)
	c.items[key] = entry
}

// evictOldest removes the least recently used entry (must hold lock).
func (c *compileCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.items, entry.key)
	c.evictions.Add(1)
}

func (c *compileCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *compileCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[uint64]*cacheEntry)
	c.order.Init()
}

// CacheStats is a point-in-time snapshot of compile cache counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

func (c *compileCache) snapshot() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.len(),
	}
}
