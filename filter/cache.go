package filter

import (
	"sync"
)

// compiledFilter is the common surface of message and event filters, the
// two value types the cache holds.
type compiledFilter interface {
	Expression() string
}

// cacheNode is an entry in the recency list.
type cacheNode struct {
	key    string
	filter compiledFilter
	prev   *cacheNode
	next   *cacheNode
}

// filterCache is a fixed-capacity LRU over compiled filters, keyed by kind
// and expression. Interactive sessions tend to reuse a handful of
// expressions, so recompiling on every page of results would be wasted
// work.
type filterCache struct {
	capacity int
	entries  map[string]*cacheNode
	head     *cacheNode // most recently used
	tail     *cacheNode // next to evict
	mu       sync.Mutex
}

func newFilterCache(capacity int) *filterCache {
	return &filterCache{
		capacity: capacity,
		entries:  make(map[string]*cacheNode),
	}
}

// get returns the cached filter for key, marking it most recently used.
func (c *filterCache) get(key string) (compiledFilter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(node)
	return node.filter, true
}

// put stores a filter under key, evicting the least recently used entry
// once the cache is over capacity.
func (c *filterCache) put(key string, filter compiledFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		node.filter = filter
		c.moveToFront(node)
		return
	}

	node := &cacheNode{key: key, filter: filter}
	c.entries[key] = node
	c.pushFront(node)

	if len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

// clear drops every entry.
func (c *filterCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheNode)
	c.head = nil
	c.tail = nil
}

// size returns the number of cached filters.
func (c *filterCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *filterCache) pushFront(node *cacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *filterCache) moveToFront(node *cacheNode) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.pushFront(node)
}

func (c *filterCache) unlink(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *filterCache) evictOldest() {
	oldest := c.tail
	if oldest == nil {
		return
	}
	c.unlink(oldest)
	delete(c.entries, oldest.key)
}
