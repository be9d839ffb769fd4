package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
	"github.com/custodia-labs/passage/internal/logger"
)

// Ensure Importer implements the interface.
var _ driving.ImportService = (*Importer)(nil)

// DefaultMaxFileSize bounds the files an import will read.
const DefaultMaxFileSize = 10 << 20

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// Importer reads files, normalises them and hands them to the corpus.
type Importer struct {
	corpus      driving.CorpusService
	registry    driven.NormaliserRegistry
	maxFileSize int64
}

// NewImporter creates an importer. maxFileSize <= 0 selects DefaultMaxFileSize.
func NewImporter(corpus driving.CorpusService, registry driven.NormaliserRegistry, maxFileSize int64) *Importer {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Importer{corpus: corpus, registry: registry, maxFileSize: maxFileSize}
}

// DocumentID returns the absolute, cleaned path.
func (i *Importer) DocumentID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// ImportFile normalises and ingests a single file.
func (i *Importer) ImportFile(ctx context.Context, path string, opts domain.ImportOptions) (*domain.IngestResult, error) {
	doc, err := i.read(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return i.corpus.Ingest(ctx, doc)
}

// ImportPaths ingests every importable file under paths. Files that fail to
// read or normalise are reported in the joined error and do not stop the rest.
func (i *Importer) ImportPaths(ctx context.Context, paths []string) ([]domain.IngestResult, error) {
	var (
		docs []*domain.Document
		errs []error
	)

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			doc, err := i.read(ctx, path, domain.ImportOptions{})
			switch {
			case errors.Is(err, domain.ErrSkipped):
				logger.Debug("import: %v", err)
			case err != nil:
				errs = append(errs, err)
			default:
				docs = append(docs, doc)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", root, err))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.Join(errs...)
	}

	logger.Debug("import: ingesting %d documents", len(docs))
	results, err := i.corpus.IngestMany(ctx, docs)
	if err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}

// Forget deletes the document imported from path. When no document has
// that ID the path may have been a directory, so every document imported
// from below it is deleted instead.
func (i *Importer) Forget(ctx context.Context, path string) error {
	id := i.DocumentID(path)
	existed, err := i.corpus.Delete(ctx, id)
	if err != nil || existed {
		return err
	}

	summaries, err := i.corpus.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("listing documents under %s: %w", id, err)
	}

	prefix := id + string(filepath.Separator)
	var errs []error
	for _, s := range summaries {
		if !strings.HasPrefix(s.ID, prefix) {
			continue
		}
		if _, err := i.corpus.Delete(ctx, s.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("import: forgot %s with its directory", s.ID)
	}
	return errors.Join(errs...)
}

// read loads and normalises one file, applying overrides.
func (i *Importer) read(ctx context.Context, path string, opts domain.ImportOptions) (*domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if info.Size() > i.maxFileSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrSkipped, path, i.maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if isBinary(content) {
		return nil, fmt.Errorf("%w: %s looks binary", domain.ErrSkipped, path)
	}

	id := opts.ID
	if id == "" {
		id = i.DocumentID(path)
	}

	doc, err := i.registry.Normalise(ctx, &driven.NormaliseInput{
		ID:      id,
		Path:    path,
		Content: content,
		ModTime: info.ModTime(),
	})
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", path, err)
	}

	if opts.Title != "" {
		doc.Title = opts.Title
	}
	if opts.Revision != "" {
		doc.Revision = opts.Revision
	}
	return doc, nil
}

func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), binarySniffLen)], 0) >= 0
}
