package cache

import "github.com/hupe1980/vecindex/resource"

const numShards = 64

// ShardedLRU is a page cache split into 64 independently locked LRUs.
type ShardedLRU struct {
	shards [numShards]*LRU
}

// NewShardedLRU creates a sharded cache. The capacity in bytes is divided
// evenly across the shards.
func NewShardedLRU(capacity int64, rc *resource.Controller) *ShardedLRU {
	shardCapacity := capacity / numShards
	if shardCapacity < 1 {
		shardCapacity = 1
	}

	s := &ShardedLRU{}
	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity, rc)
	}
	return s
}

func (s *ShardedLRU) shard(id uint32) *LRU {
	// splitmix64 finalizer
	z := uint64(id) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return s.shards[z%numShards]
}

// Get returns the cached image of page id.
func (s *ShardedLRU) Get(id uint32) ([]byte, bool) { return s.shard(id).Get(id) }

// Put caches the image of page id.
func (s *ShardedLRU) Put(id uint32, b []byte) { s.shard(id).Put(id, b) }

// Remove drops page id.
func (s *ShardedLRU) Remove(id uint32) { s.shard(id).Remove(id) }

// Purge drops every entry and releases the accounted memory.
func (s *ShardedLRU) Purge() {
	for _, sh := range s.shards {
		sh.Purge()
	}
}

// Stats returns aggregated hit and miss counts.
func (s *ShardedLRU) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total cached bytes.
func (s *ShardedLRU) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}

// Len returns the number of cached pages.
func (s *ShardedLRU) Len() int {
	var n int
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}
