// Package watch feeds an inbox directory into the document pipeline. New or
// rewritten files are picked up after a debounce window, registered through
// the document service and handed to the indexing service.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// DefaultDebounce is the settle time before a changed file is ingested.
// Editors and download managers often write files in several bursts.
const DefaultDebounce = 500 * time.Millisecond

// Watcher ingests files dropped into a directory.
type Watcher struct {
	dir       string
	ownerID   string
	projectID string
	embedCfg  domain.EmbedConfig
	debounce  time.Duration

	documents driving.DocumentService
	indexing  driving.IndexingService

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for dir. Every settled file is added for the given
// owner and project and indexed with the given embedding config.
func New(
	dir, ownerID, projectID string,
	embedCfg domain.EmbedConfig,
	documents driving.DocumentService,
	indexing driving.IndexingService,
	opts ...Option,
) *Watcher {
	w := &Watcher{
		dir:       dir,
		ownerID:   ownerID,
		projectID: projectID,
		embedCfg:  embedCfg,
		debounce:  DefaultDebounce,
		documents: documents,
		indexing:  indexing,
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the inbox until the context is cancelled. Files already
// present when watching starts are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("checking inbox directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Info("watching %s", w.dir)

	w.ingestExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// ingestExisting processes files that were in the inbox before the watcher
// started.
func (w *Watcher) ingestExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Warn("reading inbox: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.ingest(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

// schedule arms or re-arms the debounce timer for a path. The file is
// ingested once no further event arrives within the window.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

// cancelPending stops all armed debounce timers.
func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// ingest adds one file and starts indexing it. Unsupported file types are
// skipped with a debug line so unrelated drops don't spam the log.
func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reading %s: %v", path, err)
		return
	}

	result, err := w.documents.Add(ctx, w.ownerID, w.projectID, filepath.Base(path), data)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			logger.Debug("skipping unsupported file %s", path)
			return
		}
		logger.Error("adding %s: %v", path, err)
		return
	}

	status, err := w.indexing.Start(ctx, w.ownerID, w.projectID, result.DocumentID, w.embedCfg)
	if err != nil {
		logger.Error("indexing %s: %v", path, err)
		return
	}
	logger.Info("queued %s as document %s (index %s)", filepath.Base(path), result.DocumentID, status.IndexID)
}
