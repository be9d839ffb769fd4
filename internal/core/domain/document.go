package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document represents a normalised document at the ingestion boundary.
// Parsers of PDF, HTML and the like run outside the engine and hand over
// plain text plus metadata in this shape.
type Document struct {
	// ID is the stable identity of the document. Re-ingesting the same ID
	// replaces every chunk of the previous generation.
	ID string

	// Title is the human-readable title.
	Title string

	// Origin is where the text came from (file path, URL, etc).
	Origin string

	// Revision is an opaque revision marker supplied by the caller.
	Revision string

	// Content is the full normalised text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the current generation was ingested.
	UpdatedAt time.Time
}

// Validate checks the document can be ingested.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if d.Content == "" {
		return fmt.Errorf("%w: document %q has no content", ErrInvalidInput, d.ID)
	}
	return nil
}

// Span is a half-open byte range [Start, End) of a document's content,
// produced by the chunker before any text is copied.
type Span struct {
	Ordinal int
	Start   int
	End     int
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunk represents an immutable, retrievable unit of a document.
type Chunk struct {
	// ID is the unique identifier for the chunk. A new generation of the
	// same document always receives new chunk IDs.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Ordinal is the position of the chunk within its document.
	Ordinal int

	// Start and End are byte offsets into the document content.
	Start int
	End   int

	// Content is the text of this chunk, Document.Content[Start:End].
	Content string

	// Embedding is the unit-length vector for this chunk.
	// Nil when embedding failed for this chunk.
	Embedding []float32

	// Seq is the index insertion sequence number. 0 when not indexed.
	Seq uint64

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Ref returns the chunk's citation reference.
func (c *Chunk) Ref() ChunkRef {
	return ChunkRef{DocumentID: c.DocumentID, Ordinal: c.Ordinal}
}

// Embedded reports whether the chunk carries a vector.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// ChunkRef identifies a chunk by document and ordinal.
type ChunkRef struct {
	DocumentID string
	Ordinal    int
}

// String renders the reference as "docID#ordinal".
func (r ChunkRef) String() string {
	return fmt.Sprintf("%s#%d", r.DocumentID, r.Ordinal)
}

// DocumentRecord is one generation of a document as held by the corpus.
type DocumentRecord struct {
	Document Document

	// Generation increases every time the document is re-ingested.
	Generation uint64

	// Chunks holds every chunk of the generation in ordinal order,
	// including those whose embedding failed.
	Chunks []Chunk

	// Failures lists the chunks that are stored but not indexed.
	Failures []ChunkFailure
}

// IndexedChunks returns the number of chunks that carry a vector.
func (r *DocumentRecord) IndexedChunks() int {
	n := 0
	for i := range r.Chunks {
		if r.Chunks[i].Embedded() {
			n++
		}
	}
	return n
}

// DocumentSummary is a lightweight listing entry.
type DocumentSummary struct {
	ID         string
	Title      string
	Origin     string
	Revision   string
	Generation uint64
	Chunks     int
	Failed     int
	UpdatedAt  time.Time
}

// Summary builds the listing entry for a record.
func (r *DocumentRecord) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         r.Document.ID,
		Title:      r.Document.Title,
		Origin:     r.Document.Origin,
		Revision:   r.Document.Revision,
		Generation: r.Generation,
		Chunks:     len(r.Chunks),
		Failed:     len(r.Failures),
		UpdatedAt:  r.Document.UpdatedAt,
	}
}

// ReconstructContent rebuilds document text from chunks in ordinal order,
// skipping the overlap each chunk shares with its predecessor. It fails if
// the chunks leave a gap or go backwards.
func ReconstructContent(chunks []Chunk) (string, error) {
	var b strings.Builder
	prevEnd := 0
	for i := range chunks {
		c := &chunks[i]
		if c.Ordinal != i {
			return "", fmt.Errorf("%w: chunk at %d has ordinal %d", ErrInvalidInput, i, c.Ordinal)
		}
		if c.Start > prevEnd || c.End < prevEnd || c.End-c.Start != len(c.Content) {
			return "", fmt.Errorf("%w: chunk %d spans [%d,%d) after %d", ErrInvalidInput, i, c.Start, c.End, prevEnd)
		}
		if i > 0 && c.Start <= chunks[i-1].Start {
			return "", fmt.Errorf("%w: chunk %d does not advance", ErrInvalidInput, i)
		}
		b.WriteString(c.Content[prevEnd-c.Start:])
		prevEnd = c.End
	}
	return b.String(), nil
}
