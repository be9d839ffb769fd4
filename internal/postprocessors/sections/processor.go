// Package sections annotates chunks with the heading they fall under.
package sections

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Name is the registry and metadata key for this processor.
const Name = "sections"

// MetadataKey is the chunk metadata key holding the heading text.
const MetadataKey = "section"

const defaultMaxLevel = 6

// Processor finds Markdown ATX headings ("## Title") in the document and
// records the nearest heading at or before each chunk's start. A chunk
// that starts before the first heading takes the first heading inside it.
type Processor struct {
	maxLevel int
}

// Option configures the processor.
type Option func(*Processor)

// WithMaxLevel ignores headings deeper than level.
func WithMaxLevel(level int) Option {
	return func(p *Processor) {
		if level > 0 && level <= defaultMaxLevel {
			p.maxLevel = level
		}
	}
}

// New creates a section annotator.
func New(opts ...Option) *Processor {
	p := &Processor{maxLevel: defaultMaxLevel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

type heading struct {
	offset int
	title  string
}

// Process sets Metadata["section"] on chunks covered by a heading.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	headings := p.headings(doc.Content)
	if len(headings) == 0 {
		return chunks, nil
	}

	for i := range chunks {
		c := &chunks[i]
		// last heading starting at or before the chunk
		j := sort.Search(len(headings), func(k int) bool { return headings[k].offset > c.Start }) - 1
		switch {
		case j >= 0:
		case headings[0].offset < c.End:
			j = 0
		default:
			continue
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		c.Metadata[MetadataKey] = headings[j].title
	}
	return chunks, nil
}

func (p *Processor) headings(text string) []heading {
	var out []heading
	offset := 0
	for line := range strings.Lines(text) {
		if title, ok := p.parse(line); ok {
			out = append(out, heading{offset: offset, title: title})
		}
		offset += len(line)
	}
	return out
}

func (p *Processor) parse(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > p.maxLevel || level >= len(line) || line[level] != ' ' {
		return "", false
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[level:]), "#"))
	return title, title != ""
}
