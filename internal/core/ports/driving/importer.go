package driving

import (
	"context"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// ImportService ingests files from disk. A file's document ID defaults to
// its absolute path, so re-importing a changed file replaces it.
type ImportService interface {
	// ImportFile normalises and ingests a single file.
	ImportFile(ctx context.Context, path string, opts domain.ImportOptions) (*domain.IngestResult, error)

	// ImportPaths ingests files and, recursively, directories. Hidden
	// entries and binary files are skipped.
	ImportPaths(ctx context.Context, paths []string) ([]domain.IngestResult, error)

	// Forget deletes the document imported from path, or every document
	// imported from below path when it named a directory.
	Forget(ctx context.Context, path string) error

	// DocumentID returns the document ID a path is imported under.
	DocumentID(path string) string
}
