// Package watch ingests files from a directory tree as they change.
//
// Every supported file is one source, identified by its slash-separated
// path relative to the watched root. Writes are debounced: a burst of
// events for one file produces a single ingestion once the file has been
// quiet for the debounce delay. Removals are ignored, since sources and
// their versions are never deleted.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
	"github.com/custodia-labs/docwatch/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Root is the directory to watch, recursively.
	Root string

	// Debounce is the quiet period before ingesting. Zero uses DefaultDebounce.
	Debounce time.Duration

	// ExcludeDirs lists directory names to skip. Hidden directories are
	// always skipped.
	ExcludeDirs []string

	// SourcePrefix is prepended to every source id.
	SourcePrefix string
}

// Result is reported once per ingested file.
type Result struct {
	Path     string
	SourceID string
	Outcome  *domain.IngestionOutcome
	Err      error
}

// Watcher turns file changes into ingestions.
type Watcher struct {
	cfg      Config
	root     string
	fsw      *fsnotify.Watcher
	ingestor driving.Ingestor
	excludes map[string]bool
	results  func(Result)

	mu      sync.Mutex
	pending map[string]time.Time
	now     func() time.Time
}

// New creates a watcher over cfg.Root. results may be nil.
func New(cfg Config, ingestor driving.Ingestor, results func(Result)) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: watch root %s is not a directory", domain.ErrInvalidInput, root)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	excludes := map[string]bool{"node_modules": true, "vendor": true}
	for _, d := range cfg.ExcludeDirs {
		excludes[d] = true
	}
	if results == nil {
		results = func(Result) {}
	}

	return &Watcher{
		cfg:      cfg,
		root:     root,
		fsw:      fsw,
		ingestor: ingestor,
		excludes: excludes,
		results:  results,
		pending:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// SourceID returns the source id for a file under the root.
func (w *Watcher) SourceID(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	return w.cfg.SourcePrefix + filepath.ToSlash(rel)
}

// Scan ingests every supported file under the root once, in path order.
func (w *Watcher) Scan(ctx context.Context) error {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && w.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := domain.SourceTypeFromPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.root, err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.ingest(ctx, p)
	}
	return nil
}

// Run watches until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	logger.Info("watching %s (debounce %s)", w.root, w.cfg.Debounce)

	ticker := time.NewTicker(w.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// handle records a file event or watches a new directory.
func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !w.skipDir(filepath.Base(event.Name)) {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Warn("watch new directory %s: %v", event.Name, err)
			}
		}
		return
	}
	if _, ok := domain.SourceTypeFromPath(event.Name); !ok {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = w.now()
	w.mu.Unlock()
	logger.Debug("change detected: %s (%s)", event.Name, event.Op)
}

// flush ingests files that have been quiet for the debounce delay.
func (w *Watcher) flush(ctx context.Context) {
	cutoff := w.now().Add(-w.cfg.Debounce)

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if !last.After(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
	sort.Strings(ready)

	for _, p := range ready {
		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, p)
	}
}

// ingest reads one file and hands it to the ingestor.
func (w *Watcher) ingest(ctx context.Context, path string) {
	res := Result{Path: path, SourceID: w.SourceID(path)}
	defer func() { w.results(res) }()

	t, _ := domain.SourceTypeFromPath(path)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Removed before the debounce expired.
		res.Err = err
		return
	}
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", path, err)
		return
	}

	res.Outcome, res.Err = w.ingestor.Ingest(ctx, domain.RawDocument{
		SourceID: res.SourceID,
		URI:      "file://" + filepath.ToSlash(path),
		Type:     t,
		Content:  content,
	})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	return w.excludes[name] || strings.HasPrefix(name, ".")
}
