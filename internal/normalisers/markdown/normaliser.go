// Package markdown normalises Markdown files. Headings are kept in the
// content so the section annotator can attribute chunks to them.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Normalise converts a Markdown file into a document. A leading YAML
// front matter block is removed from the content; its title, revision and
// scalar fields become document fields and metadata.
func (n *Normaliser) Normalise(_ context.Context, in *driven.NormaliseInput) (*domain.Document, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	text := plaintext.CleanText(in.Content)
	front, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, in.Path, err)
	}

	doc := &domain.Document{
		ID:       plaintext.DocumentID(in),
		Title:    extractTitle(body, in.Path),
		Origin:   in.Path,
		Revision: plaintext.Revision(in.ModTime),
		Content:  body,
		Metadata: map[string]any{"mime_type": in.MIMEType, "format": "markdown"},
	}

	for k, v := range front {
		switch k {
		case "title":
			if s, ok := v.(string); ok && s != "" {
				doc.Title = s
			}
		case "revision", "version":
			doc.Revision = fmt.Sprint(v)
		default:
			switch v.(type) {
			case string, int, float64, bool:
				doc.Metadata[k] = v
			}
		}
	}

	return doc, nil
}

// splitFrontMatter separates a "---" delimited YAML header from the body.
// Text without a header is returned unchanged.
func splitFrontMatter(text string) (map[string]any, string, error) {
	if !strings.HasPrefix(text, "---\n") {
		return nil, text, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text, nil
	}
	header := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var front map[string]any
	dec := yaml.NewDecoder(bytes.NewReader([]byte(header)))
	if err := dec.Decode(&front); err != nil && header != "" {
		return nil, "", fmt.Errorf("front matter: %w", err)
	}
	return front, body, nil
}

// extractTitle returns the first H1 heading, or the file name.
func extractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return plaintext.TitleFromPath(path)
}
