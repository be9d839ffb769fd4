// Package hnsw provides a pure-Go Hierarchical Navigable Small World index.
// It implements the driven.VectorIndex interface.
//
// Nodes live in a single arena slice and refer to each other by int32
// handle, so the graph has no owning pointers. Deletes leave tombstones
// that stay traversable until the graph is compacted. Candidates found
// on the graph are re-ranked with an exact float64 inner product before
// results are returned.
package hnsw
