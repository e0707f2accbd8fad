// Package ivf implements an inverted-file index with flat (uncompressed)
// lists on top of a page store.
//
// Build trains NumLists centroids with k-means on a sample of the input and
// assigns every vector to its nearest centroid. Each list is a page chain of
// member and tombstone records; Search ranks the centroids and scans the
// NumProbes closest lists.
//
// Deletes append a tombstone record and mark the member's sequence number in
// the list's tombstone bitmap. Vacuum rewrites every list that has
// tombstones.
package ivf
