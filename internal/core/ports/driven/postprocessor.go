package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// PostProcessor transforms the chunks of a document after chunking.
// PostProcessors are chained in a pipeline (e.g., section annotation).
// They may add metadata but must not change chunk text or offsets.
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the chunks produced so far and returns the chunks
	// for the next stage.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the chunks through all processors in order.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// Chunker splits normalised text into spans covering it with no gaps.
// The returned sequence is lazy and can be ranged over any number of times.
type Chunker interface {
	Split(text string) iter.Seq[domain.Span]
}
