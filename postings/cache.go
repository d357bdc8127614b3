package postings

import (
	"container/list"
	"sync"
)

// BlockCache is a bounded LRU of decoded blocks, keyed by (term, block
// index). It never changes query results — it only saves re-decoding a
// block a dynamic-pruning algorithm's next_geq revisits within the same
// or a subsequent query (spec.md §5 "Ordering guarantees" depends only on
// data, never on cache state).
//
// Adapted from the teacher's performance.go CacheManager/CacheEntry
// (map + access-time tracking, policy-selectable eviction), narrowed to a
// single LRU policy backed by container/list for O(1) touch/evict instead
// of the teacher's O(n) scan-for-oldest eviction — the teacher's scan is
// fine for its low-churn record cache, but a per-block query cache is
// touched far more often and the O(n) scan becomes the hot path.
type BlockCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[blockKey]*list.Element
}

type blockKey struct {
	term  string
	block int
}

type cachedBlock struct {
	key  blockKey
	docs []uint32
	tfs  []uint32
}

// NewBlockCache returns a BlockCache holding up to capacity decoded
// blocks. capacity <= 0 disables the cache (Get always misses, Set is a
// no-op).
func NewBlockCache(capacity int) *BlockCache {
	return &BlockCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[blockKey]*list.Element),
	}
}

// Get returns a previously cached decode of (term, block), if present.
func (c *BlockCache) Get(term string, block int) (docs, tfs []uint32, ok bool) {
	if c == nil || c.capacity <= 0 {
		return nil, nil, false
	}
	key := blockKey{term, block}
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, found := c.items[key]
	if !found {
		return nil, nil, false
	}
	c.ll.MoveToFront(elem)
	cb := elem.Value.(*cachedBlock)
	return cb.docs, cb.tfs, true
}

// Set stores a decoded block, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *BlockCache) Set(term string, block int, docs, tfs []uint32) {
	if c == nil || c.capacity <= 0 {
		return
	}
	key := blockKey{term, block}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, found := c.items[key]; found {
		c.ll.MoveToFront(elem)
		elem.Value.(*cachedBlock).docs = docs
		elem.Value.(*cachedBlock).tfs = tfs
		return
	}
	if c.ll.Len() >= c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cachedBlock).key)
		}
	}
	elem := c.ll.PushFront(&cachedBlock{key: key, docs: docs, tfs: tfs})
	c.items[key] = elem
}

// Len reports the number of entries currently cached.
func (c *BlockCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
