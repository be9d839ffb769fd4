// Package plaintext normalises plain text files into documents.
package plaintext

import (
	"context"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text and source files.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-shellscript",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"application/json",
		"application/xml",
	}
}

// Normalise converts a file into a document. Content is cleaned with
// CleanText; the title is derived from the file name.
func (n *Normaliser) Normalise(_ context.Context, in *driven.NormaliseInput) (*domain.Document, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}
	return &domain.Document{
		ID:       DocumentID(in),
		Title:    TitleFromPath(in.Path),
		Origin:   in.Path,
		Revision: Revision(in.ModTime),
		Content:  CleanText(in.Content),
		Metadata: map[string]any{"mime_type": in.MIMEType},
	}, nil
}

// CleanText decodes raw bytes as UTF-8 text: a leading byte order mark is
// dropped, CRLF and lone CR become LF, and invalid sequences are replaced
// with U+FFFD so chunk offsets always land on valid text.
func CleanText(raw []byte) string {
	s := strings.TrimPrefix(string(raw), "\ufeff")
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// DocumentID returns the explicit ID or, failing that, the cleaned path,
// so the same file always maps to the same document.
func DocumentID(in *driven.NormaliseInput) string {
	if in.ID != "" {
		return in.ID
	}
	if in.Path == "" {
		return ""
	}
	if abs, err := filepath.Abs(in.Path); err == nil {
		return abs
	}
	return filepath.Clean(in.Path)
}

// TitleFromPath extracts a human-readable title from a file path.
func TitleFromPath(path string) string {
	if path == "" {
		return ""
	}
	filename := filepath.Base(path)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))

	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// Revision renders a modification time as a revision marker.
func Revision(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// WithMetadata returns a copy of base with the given pairs added.
func WithMetadata(base map[string]any, kv ...string) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}
