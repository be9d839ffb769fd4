// Package postprocessors provides chunk post-processing implementations.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains multiple PostProcessors and runs them in order.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the chunks through all processors in order. A processor
// may only annotate chunks: changing their number, text or offsets would
// break the document's round trip, so it is reported as an error.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	for _, processor := range p.processors {
		out, err := processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
		if err := sameSpans(chunks, out); err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
		chunks = out
	}

	return chunks, nil
}

func sameSpans(in, out []domain.Chunk) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: chunk count changed from %d to %d", domain.ErrInvalidInput, len(in), len(out))
	}
	for i := range in {
		a, b := &in[i], &out[i]
		if a.Ordinal != b.Ordinal || a.Start != b.Start || a.End != b.End || a.Content != b.Content {
			return fmt.Errorf("%w: chunk %d text or offsets changed", domain.ErrInvalidInput, a.Ordinal)
		}
	}
	return nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}
