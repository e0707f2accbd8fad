// Package vecindex provides approximate nearest neighbor indexes that live
// in a page store.
//
// Two index methods are available:
//
//   - hnsw: a Hierarchical Navigable Small World graph. Good recall at low
//     latency; inserts and deletes are incremental.
//   - ivfflat: an inverted file with flat lists. Centroids are trained once
//     with k-means; search scans the closest lists.
//
// Vectors are dense float32, half precision, packed binary or sparse (see
// package vector). Distances are L2, inner product, cosine, Hamming and
// Jaccard (see package distance).
//
// # Quick Start
//
//	ctx := context.Background()
//	dev, _ := storage.OpenFile("index.db")
//
//	params := vecindex.DefaultParams(vecindex.MethodHNSW)
//	params.Dimension = 128
//
//	idx, err := vecindex.Create(ctx, dev, params,
//	    vecindex.WithLogger(vecindex.NewTextLogger(slog.LevelInfo)))
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	if err := idx.Build(ctx, vectors); err != nil {
//	    return err
//	}
//	results, err := idx.Search(ctx, query, 10, vecindex.WithEFSearch(100))
//
// Reopen an existing index with Open; the parameters are read from the
// store.
//
// # Lifecycle
//
// A new index is empty. Build moves it to ready (hnsw passes through
// building, ivfflat through training). Insert, Delete, Search and Vacuum
// require a ready index and are safe for concurrent use. Build is atomic: a
// failed or canceled build leaves an empty index.
//
// Delete only tombstones a vector. Vacuum repairs the graph (hnsw) or
// rewrites the lists (ivfflat) and releases the space.
//
// # Storage
//
// Any storage.Device works: storage.NewMemory, storage.OpenFile, the
// badger-backed storage/badgerdev and the object-store-backed
// storage/blobdev (S3 or MinIO through package blobstore).
package vecindex
