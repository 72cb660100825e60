package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/plexus-go/internal/logging"
	"github.com/Benny93/plexus-go/internal/storage"
)

// BatchInterval is how long the watcher waits after the last event before
// re-indexing the collected files.
const BatchInterval = 2 * time.Second

// Watcher re-indexes Python files of a workspace as they change.
type Watcher struct {
	repoPath string
	store    storage.Backend
	log      *slog.Logger
	matcher  gitignore.Matcher
	interval time.Duration

	// batches receives the size of every processed batch; used by tests.
	batches chan<- int
}

// NewWatcher creates a watcher for repoPath. The .gitignore is read once.
func NewWatcher(repoPath string, store storage.Backend, log *slog.Logger) *Watcher {
	if log == nil {
		log = logging.Discard()
	}
	patterns, err := LoadGitignore(repoPath)
	if err != nil {
		log.Warn("reading .gitignore", "error", err)
	}
	return &Watcher{
		repoPath: repoPath,
		store:    store,
		log:      log,
		matcher:  newMatcher(patterns),
		interval: BatchInterval,
	}
}

// WatchRepo watches repoPath and keeps store in sync until ctx is cancelled.
func WatchRepo(ctx context.Context, repoPath string, store storage.Backend, log *slog.Logger) error {
	return NewWatcher(repoPath, store, log).Run(ctx)
}

// Run blocks until ctx is cancelled, returning ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.repoPath); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]bool)
	timer := time.NewTimer(w.interval)
	timer.Stop()
	defer timer.Stop()

	w.log.Info("watching for changes", "path", w.repoPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						w.log.Warn("watching new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			if !w.shouldWatchFile(event.Name) {
				continue
			}
			relPath, err := filepath.Rel(w.repoPath, event.Name)
			if err != nil {
				continue
			}
			changed[filepath.ToSlash(relPath)] = true
			timer.Reset(w.interval)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)

		case <-timer.C:
			if len(changed) == 0 {
				continue
			}
			n := w.processChangedFiles(ctx, changed)
			if w.batches != nil {
				w.batches <- n
			}
			changed = make(map[string]bool)
		}
	}
}

// addTree adds root and every non-ignored directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.repoPath && isIgnored(path, w.repoPath, true, w.matcher) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// processChangedFiles re-indexes existing files and drops deleted ones. It
// returns the number of files handled.
func (w *Watcher) processChangedFiles(ctx context.Context, changed map[string]bool) int {
	paths := make([]string, 0, len(changed))
	for relPath := range changed {
		paths = append(paths, relPath)
	}
	sort.Strings(paths)

	w.log.Info("re-indexing changed files", "count", len(paths))

	handled := 0
	entries := make([]FileEntry, 0, len(paths))
	for _, relPath := range paths {
		absPath := filepath.Join(w.repoPath, filepath.FromSlash(relPath))

		info, err := os.Stat(absPath)
		if os.IsNotExist(err) {
			if err := RemoveFile(ctx, w.store, relPath); err != nil {
				w.log.Error("removing deleted file", "file", relPath, "error", err)
			} else {
				w.log.Info("removed", "file", relPath)
				handled++
			}
			continue
		}
		if err != nil || info.IsDir() {
			continue
		}

		entry, err := readEntry(w.repoPath, absPath)
		if err != nil {
			w.log.Error("reading file", "file", relPath, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	handled += ReindexFiles(ctx, entries, w.store, w.log)
	return handled
}

// shouldWatchFile reports whether path is a non-ignored Python file.
func (w *Watcher) shouldWatchFile(path string) bool {
	return isPythonFile(path) && !isIgnored(path, w.repoPath, false, w.matcher)
}
