// Package chunker splits document text into overlapping, boundary-aware windows.
package chunker

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Processor implements the interfaces.
var (
	_ driven.Chunker       = (*Processor)(nil)
	_ driven.PostProcessor = (*Processor)(nil)
)

// DefaultChunkSize is the default number of units per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping units.
const DefaultChunkOverlap = 200

// checkEvery is how many chunks are built between context checks.
const checkEvery = 64

// Processor splits document content into windows of Size units that
// overlap by Overlap units. Each cut is moved back to the strongest
// boundary available in the second half of the window, following the
// boundary preference list.
type Processor struct {
	unit       domain.ChunkUnit
	chunkSize  int
	overlap    int
	boundaries []domain.Boundary
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithUnit sets what chunk size and overlap count.
func WithUnit(unit domain.ChunkUnit) Option {
	return func(p *Processor) {
		p.unit = unit
	}
}

// WithChunkSize sets the chunk size in units.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in units.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithBoundaries sets the cut preference list, most preferred first.
func WithBoundaries(boundaries ...domain.Boundary) Option {
	return func(p *Processor) {
		p.boundaries = append([]domain.Boundary(nil), boundaries...)
	}
}

// New creates a chunker. It rejects an overlap that is not smaller than
// the chunk size, since such a window could never advance.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		unit:       domain.ChunkUnitGrapheme,
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		boundaries: domain.DefaultBoundaries(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.Settings().Validate(); err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	return p, nil
}

// FromSettings creates a chunker from configuration.
func FromSettings(s domain.ChunkerSettings) (*Processor, error) {
	return New(
		WithUnit(s.Unit),
		WithChunkSize(s.Size),
		WithOverlap(s.Overlap),
		WithBoundaries(s.Boundaries...),
	)
}

// Settings returns the effective configuration.
func (p *Processor) Settings() domain.ChunkerSettings {
	return domain.ChunkerSettings{
		Unit:       p.unit,
		Size:       p.chunkSize,
		Overlap:    p.overlap,
		Boundaries: append([]domain.Boundary(nil), p.boundaries...),
	}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Split returns the chunk spans of text. Nothing is computed until the
// sequence is ranged over, and only one window of units is held at a time.
func (p *Processor) Split(text string) iter.Seq[domain.Span] {
	return func(yield func(domain.Span) bool) {
		if text == "" {
			return
		}

		w := newWindow(text, p.unit)
		start := 0
		for ordinal := 0; ; ordinal++ {
			w.fill(p.chunkSize + 1)
			if len(w.ends) <= p.chunkSize {
				yield(domain.Span{Ordinal: ordinal, Start: start, End: len(text)})
				return
			}

			j := p.cut(w)
			if !yield(domain.Span{Ordinal: ordinal, Start: start, End: w.ends[j-1]}) {
				return
			}

			advance := j - p.overlap
			start = w.ends[advance-1]
			w.drop(advance, start)
		}
	}
}

// cut picks how many units of the current window the chunk takes.
// Only cuts past the overlap and at least halfway through the rest of
// the window are considered, so every chunk advances.
func (p *Processor) cut(w *window) int {
	lo := min(p.overlap+max(1, (p.chunkSize-p.overlap)/2), p.chunkSize)

	for _, b := range p.boundaries {
		if b == domain.BoundaryHard {
			return p.chunkSize
		}
		want := b.Strength()
		for j := p.chunkSize; j >= lo; j-- {
			if w.strength(w.ends[j-1]) >= want {
				return j
			}
		}
	}
	return p.chunkSize
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		return nil, nil
	}

	var chunks []domain.Chunk
	for span := range p.Split(doc.Content) {
		if span.Ordinal%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Ordinal:    span.Ordinal,
			Start:      span.Start,
			End:        span.End,
			Content:    doc.Content[span.Start:span.End],
			Metadata:   make(map[string]any),
		})
	}

	return chunks, nil
}

// Reconstruct rebuilds the document text from its chunks, dropping the
// overlap between neighbours.
func Reconstruct(chunks []domain.Chunk) (string, error) {
	return domain.ReconstructContent(chunks)
}
