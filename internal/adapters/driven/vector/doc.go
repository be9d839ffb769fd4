// Package vector holds the numeric helpers shared by the vector index
// adapters: normalisation, inner products, mutation validation and the
// deterministic hit ordering.
//
// Implementations live in the subpackages:
//
//   - hnsw: approximate graph index with exact re-ranking
//   - flat: exhaustive exact index
package vector
