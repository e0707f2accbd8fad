// Package testutil provides testing utilities for vecindex.
//
// This package is intended for use in tests only. It provides helpers for
// generating random vectors, computing exact nearest neighbors, and
// verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 128)        // uniform [0, 1)
//	vecs = rng.ClusteredVectors(1000, 128, 4)    // four separated clusters
//
// # Exact Search (Ground Truth)
//
//	want := testutil.BruteForce(distance.L2, vecs, nil, query, k)
//
// # Recall Verification
//
//	recall := testutil.Recall(results, want)
package testutil
