// Package hnsw implements Hierarchical Navigable Small World graphs on top
// of a page store.
//
// Every node is a record in the store's heap, rewritten whenever its
// neighbor lists or tombstone change. The in-memory graph is rebuilt from
// the heap on Open.
//
// # Concurrency
//
//   - Readers load immutable neighbor snapshots and never lock.
//   - Neighbor lists are mutated under the owning node's mutex only.
//   - Entry point and max layer change in a single-writer section.
//   - Delete tombstones a node; Vacuum repairs the lists that referenced it
//     and reclaims the slot once no search that could still see it is in
//     flight (reader epochs).
//
// # Parameters
//
//   - M: max connections per node above layer 0 (default: 16); 2M at layer 0
//   - EFConstruction: construction beam width (default: 64)
//   - EFSearch: search beam width (default: 40)
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
