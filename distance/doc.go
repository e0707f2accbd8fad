// Package distance implements the five distance kinds over the vector
// representations of package vector.
//
// Every kind follows "smaller is closer":
//
//   - L2: squared Euclidean distance (no square root)
//   - InnerProduct: negated dot product
//   - Cosine: 1 - cos(a, b), or 1 when either norm is zero
//   - Hamming: number of differing bits (Binary only)
//   - Jaccard: 1 - |a AND b| / |a OR b| (Binary only)
//
// Distance validates its operands on every call. Engines bind a Space once
// and compare validated vectors through it; a Query additionally caches the
// query norm used by Cosine.
package distance
