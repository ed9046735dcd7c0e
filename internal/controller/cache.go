package controller

import (
	"container/list"
	"sync"
)

// DefaultCacheSize is the number of recently opened files kept in memory
const DefaultCacheSize = 3

type cacheEntry struct {
	id   string
	data []byte
}

// fileCache is a small LRU of file bytes in front of the store. Bytes
// are copied on put and on get, so an engine consuming its buffer never
// touches a cached copy.
type fileCache struct {
	mu    sync.Mutex
	size  int
	ll    *list.List
	items map[string]*list.Element
}

func newFileCache(size int) *fileCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &fileCache{size: size, ll: list.New(), items: make(map[string]*list.Element)}
}

func (c *fileCache) get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return clone(el.Value.(*cacheEntry).data), true
}

func (c *fileCache) put(id string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		el.Value.(*cacheEntry).data = clone(data)
		c.ll.MoveToFront(el)
		return
	}
	c.items[id] = c.ll.PushFront(&cacheEntry{id: id, data: clone(data)})
	for c.ll.Len() > c.size {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).id)
	}
}

func (c *fileCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.ll.Remove(el)
		delete(c.items, id)
	}
}

func (c *fileCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
