package analyzer

import (
	"container/list"
	"sync"
)

// verdictCache is a bounded FIFO map. Lookups never change eviction order.
type verdictCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // keys, oldest insertion first
	entries  map[string]Verdict
	onEvict  func()
}

func newVerdictCache(capacity int, onEvict func()) *verdictCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &verdictCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]Verdict, capacity),
		onEvict:  onEvict,
	}
}

func (c *verdictCache) Get(key string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores v. Replacing an existing key keeps its original position.
func (c *verdictCache) Put(key string, v Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = v
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		delete(c.entries, oldest.Value.(string))
		c.order.Remove(oldest)
		if c.onEvict != nil {
			c.onEvict()
		}
	}

	c.order.PushBack(key)
	c.entries[key] = v
}

func (c *verdictCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *verdictCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.entries)
}
