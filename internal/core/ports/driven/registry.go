package driven

import (
	"context"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a file.
type NormaliserRegistry interface {
	// Normalise converts the input using the normaliser registered for its
	// MIME type, falling back to plain text.
	Normalise(ctx context.Context, in *NormaliseInput) (*domain.Document, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}
