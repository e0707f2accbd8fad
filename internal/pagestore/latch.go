package pagestore

import (
	"sync"

	"github.com/hupe1980/vecindex/storage"
)

const latchShards = 64

// latchTable hands out one RWMutex per page. Latches are created on first
// use and live as long as the store.
type latchTable struct {
	shards [latchShards]latchShard
}

type latchShard struct {
	mu sync.Mutex
	m  map[storage.PageID]*sync.RWMutex
}

func (t *latchTable) get(id storage.PageID) *sync.RWMutex {
	sh := &t.shards[uint32(id)%latchShards]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.m == nil {
		sh.m = make(map[storage.PageID]*sync.RWMutex)
	}
	l, ok := sh.m[id]
	if !ok {
		l = new(sync.RWMutex)
		sh.m[id] = l
	}
	return l
}
