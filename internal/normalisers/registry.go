package normalisers

import (
	"context"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/normalisers/markdown"
	"github.com/custodia-labs/passage/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// FallbackMIMEType is used when no normaliser claims a type.
const FallbackMIMEType = "text/plain"

// extMIMETypes covers extensions the mime package gets wrong or lacks.
var extMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".sh":       "text/x-shellscript",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".ts":       "text/javascript",
}

// Registry maps MIME types to normalisers.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]driven.Normaliser)}
}

// NewDefaultRegistry creates a registry with the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	return r
}

// Register adds a normaliser for each MIME type it supports. A later
// registration for the same type wins.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range n.SupportedMIMETypes() {
		r.byType[t] = n
	}
}

// Normalise dispatches on the input MIME type, detecting it from the path
// when unset.
func (r *Registry) Normalise(ctx context.Context, in *driven.NormaliseInput) (*domain.Document, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}
	if in.MIMEType == "" {
		in.MIMEType = DetectMIMEType(in.Path)
	}

	r.mu.RLock()
	n, ok := r.byType[in.MIMEType]
	if !ok {
		n, ok = r.byType[FallbackMIMEType]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUnsupportedType
	}
	return n.Normalise(ctx, in)
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Supports reports whether a file's detected type has a dedicated normaliser.
func (r *Registry) Supports(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byType[DetectMIMEType(path)]
	return ok
}

// DetectMIMEType guesses a MIME type from the file extension.
func DetectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return FallbackMIMEType
	}
	if t, ok := extMIMETypes[ext]; ok {
		return t
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return FallbackMIMEType
	}
	// Strip charset and other parameters.
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
