package pipeline

import (
	"container/list"
	"fmt"
	"sync"
)

// sampleCache keeps fully processed samples keyed by record id, with LRU
// eviction. Validation pipelines use it: their processing is deterministic,
// so a sample seen once never needs decoding again.
type sampleCache struct {
	mu      sync.Mutex
	entries map[uint64][]float32
	lru     *list.List
	lruMap  map[uint64]*list.Element
	maxSize int

	hits   int64
	misses int64
}

func newSampleCache(maxSize int) *sampleCache {
	return &sampleCache{
		entries: make(map[uint64][]float32),
		lru:     list.New(),
		lruMap:  make(map[uint64]*list.Element),
		maxSize: maxSize,
	}
}

func (c *sampleCache) get(key uint64) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		c.hits++
		return data, true
	}
	c.misses++
	return nil, false
}

func (c *sampleCache) put(key uint64, data []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		return
	}
	for len(c.entries) >= c.maxSize && c.lru.Len() > 0 {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		old := oldest.Value.(uint64)
		delete(c.lruMap, old)
		delete(c.entries, old)
	}
	stored := append([]float32(nil), data...)
	c.entries[key] = stored
	c.lruMap[key] = c.lru.PushFront(key)
}

func (c *sampleCache) stats() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return "cache: empty"
	}
	return fmt.Sprintf("cache: %d entries, %.1f%% hit rate (%d/%d)",
		len(c.entries), 100*float64(c.hits)/float64(total), c.hits, total)
}
