package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// Normaliser turns a file read from disk into a Document with plain-text
// content. Format-specific parsing (PDF, HTML) happens in collaborators
// outside the engine; normalisers only clean up text encodings.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise converts the input into a document ready for ingestion.
	Normalise(ctx context.Context, in *NormaliseInput) (*domain.Document, error)
}

// NormaliseInput is a file as read from disk.
type NormaliseInput struct {
	// ID is the document identity to assign. Empty derives it from Path.
	ID string

	// Path is the file location, recorded as the document origin.
	Path string

	// MIMEType is the detected content type.
	MIMEType string

	// Content is the raw file bytes.
	Content []byte

	// ModTime is the file modification time, used as the revision marker.
	ModTime time.Time
}
