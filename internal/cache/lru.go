package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecindex/resource"
)

// LRU is a byte-bounded LRU of page images keyed by page id.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[uint32]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   uint32
	value []byte
}

// NewLRU creates an LRU with the given capacity in bytes. If rc is non-nil,
// cached bytes are accounted against it.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[uint32]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns the cached image of page id.
func (c *LRU) Get(id uint32) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[id]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Put caches b as the image of page id, replacing any previous image. The
// caller must not modify b afterwards.
func (c *LRU) Put(id uint32, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[id]; ok {
		c.removeElement(ent)
	}

	itemSize := int64(len(b))
	if itemSize > c.capacity {
		return
	}

	// Evict first so the released memory is available to the controller.
	for c.size+itemSize > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	if !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	c.items[id] = c.evictList.PushFront(&entry{key: id, value: b})
	c.size += itemSize
}

// Remove drops page id from the cache.
func (c *LRU) Remove(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.items[id]; ok {
		c.removeElement(ent)
	}
}

// Purge drops every entry.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

// Stats returns hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached pages.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(c.items, kv.key)
	itemSize := int64(len(kv.value))
	c.size -= itemSize
	c.rc.ReleaseMemory(itemSize)
}
