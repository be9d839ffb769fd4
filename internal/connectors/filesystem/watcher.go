// Package filesystem keeps the corpus in step with a directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
	"github.com/custodia-labs/passage/internal/logger"
)

// DefaultDebounce is how long a path must be quiet before it is re-imported.
const DefaultDebounce = 300 * time.Millisecond

// ChangeType classifies a filesystem change.
type ChangeType int

const (
	// ChangeUpserted means the file was created or written.
	ChangeUpserted ChangeType = iota + 1
	// ChangeDeleted means the file was removed or renamed away.
	ChangeDeleted
)

func (c ChangeType) String() string {
	switch c {
	case ChangeUpserted:
		return "upserted"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is a pending update for one file.
type Change struct {
	Type ChangeType
	Path string
}

// Watcher imports a directory and then follows it with fsnotify.
type Watcher struct {
	root     string
	importer driving.ImportService
	debounce time.Duration
}

// New creates a watcher for root.
func New(root string, importer driving.ImportService) *Watcher {
	return &Watcher{
		root:     root,
		importer: importer,
		debounce: DefaultDebounce,
	}
}

// WithDebounce sets the quiet period before a change is applied.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Sync imports every file under root.
func (w *Watcher) Sync(ctx context.Context) ([]domain.IngestResult, error) {
	return w.importer.ImportPaths(ctx, []string{w.root})
}

// Run watches root until ctx is cancelled. Changes are collected per path
// and applied once the tree has been quiet for the debounce period, so a
// burst of writes to one file costs a single re-ingest.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	logger.Info("watching %s", w.root)

	pending := make(map[string]ChangeType)
	var newDirs []string

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.isNewDir(event) {
				if err := w.addTree(fw, event.Name); err != nil {
					logger.Warn("watching %s: %v", event.Name, err)
				}
				newDirs = append(newDirs, event.Name)
				timer.Reset(w.debounce)
				continue
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			pending[change.Path] = change.Type
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)

		case <-timer.C:
			w.apply(ctx, pending, newDirs)
			pending = make(map[string]ChangeType)
			newDirs = nil
		}
	}
}

// handleFsEvent converts an fsnotify event into a change.
// Directories, hidden paths and chmod-only events yield nil.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	if w.hidden(event.Name) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: event.Name}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return &Change{Type: ChangeDeleted, Path: event.Name}
		}
		if info.IsDir() {
			return nil
		}
		return &Change{Type: ChangeUpserted, Path: event.Name}

	default:
		return nil
	}
}

func (w *Watcher) isNewDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || w.hidden(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

// apply runs pending changes against the importer. Errors are logged
// and never stop the watch.
func (w *Watcher) apply(ctx context.Context, pending map[string]ChangeType, newDirs []string) {
	if len(newDirs) > 0 {
		if _, err := w.importer.ImportPaths(ctx, newDirs); err != nil {
			logger.Warn("importing new directories: %v", err)
		}
	}

	for path, change := range pending {
		switch change {
		case ChangeUpserted:
			res, err := w.importer.ImportFile(ctx, path, domain.ImportOptions{})
			switch {
			case errors.Is(err, domain.ErrSkipped):
				logger.Debug("skipped %s: %v", path, err)
			case errors.Is(err, fs.ErrNotExist):
				w.forget(ctx, path)
			case err != nil:
				logger.Warn("importing %s: %v", path, err)
			default:
				logger.Info("ingested %s (%d/%d chunks)", res.DocumentID, res.ChunksIndexed, res.ChunksTotal)
			}
		case ChangeDeleted:
			w.forget(ctx, path)
		}
	}
}

func (w *Watcher) forget(ctx context.Context, path string) {
	if err := w.importer.Forget(ctx, path); err != nil {
		logger.Warn("removing %s: %v", path, err)
		return
	}
	logger.Info("removed %s", w.importer.DocumentID(path))
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// hidden reports whether path is hidden relative to the watched root.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return isHidden(path)
	}
	return isHidden(rel)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
