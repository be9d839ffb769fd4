package vector

import (
	"fmt"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Prepared is a validated upsert batch ready to be applied.
type Prepared struct {
	// Entries hold normalised vector copies and their final Seq.
	Entries []driven.IndexEntry

	// Dimension is the index dimension after the batch.
	Dimension int

	// LastSeq is the highest Seq after the batch.
	LastSeq uint64
}

// Prepare validates and normalises an upsert batch against the current
// dimension and sequence counter without mutating anything. A dimension of
// 0 adopts the length of the first vector.
func Prepare(entries []driven.IndexEntry, dim int, lastSeq uint64) (*Prepared, error) {
	p := &Prepared{
		Entries:   make([]driven.IndexEntry, 0, len(entries)),
		Dimension: dim,
		LastSeq:   lastSeq,
	}

	for i := range entries {
		e := entries[i]
		if e.ChunkID == "" {
			return nil, fmt.Errorf("%w: entry %d has no chunk id", domain.ErrInvalidInput, i)
		}
		if p.Dimension == 0 {
			p.Dimension = len(e.Vector)
		}
		if len(e.Vector) != p.Dimension {
			return nil, fmt.Errorf("chunk %s: got %d want %d: %w",
				e.ChunkID, len(e.Vector), p.Dimension, domain.ErrDimensionMismatch)
		}

		unit, err := Normalize(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", e.ChunkID, err)
		}
		e.Vector = unit

		switch {
		case e.Seq == 0:
			p.LastSeq++
			e.Seq = p.LastSeq
		case e.Seq <= p.LastSeq:
			return nil, fmt.Errorf("%w: chunk %s seq %d not above %d",
				domain.ErrInvalidInput, e.ChunkID, e.Seq, p.LastSeq)
		default:
			p.LastSeq = e.Seq
		}

		p.Entries = append(p.Entries, e)
	}

	return p, nil
}

// PrepareQuery validates and normalises a query vector.
func PrepareQuery(query []float32, dim int) ([]float32, error) {
	if dim != 0 && len(query) != dim {
		return nil, fmt.Errorf("query: got %d want %d: %w", len(query), dim, domain.ErrDimensionMismatch)
	}
	return Normalize(query)
}
