// Package kmeans implements k-means clustering for inverted-list training.
//
// Training is deterministic for a given seed and never returns an empty
// cluster.
package kmeans
