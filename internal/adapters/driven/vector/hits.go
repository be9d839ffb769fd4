package vector

import (
	"slices"

	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Less orders hits by similarity descending, then by lower Seq.
func Less(a, b driven.VectorHit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.Seq < b.Seq
}

// Rank sorts hits, drops those under floor and truncates to k.
func Rank(hits []driven.VectorHit, k int, floor float64) []driven.VectorHit {
	out := hits[:0]
	for _, h := range hits {
		if h.Similarity >= floor {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b driven.VectorHit) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		default:
			return 0
		}
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// HitFor builds a hit from an entry and its exact similarity.
func HitFor(e *driven.IndexEntry, similarity float64) driven.VectorHit {
	return driven.VectorHit{
		ChunkID:    e.ChunkID,
		DocumentID: e.DocumentID,
		Ordinal:    e.Ordinal,
		Similarity: similarity,
		Seq:        e.Seq,
	}
}
