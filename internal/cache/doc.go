// Package cache provides the LRU cache of page images used by the page
// store.
//
// ShardedLRU splits the byte budget across 64 shards, each an LRU guarded
// by its own mutex; a page id selects its shard with a splitmix64 hash.
// Memory held by cached pages is accounted against a resource.Controller
// when one is configured, and a page that cannot be admitted is simply not
// cached.
//
// Cached slices are immutable: writers replace an entry with a fresh slice
// instead of modifying it, so a slice returned by Get stays valid after
// eviction.
package cache
