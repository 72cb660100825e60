package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Benny93/plexus-go/internal/catalog"
	"github.com/Benny93/plexus-go/internal/decompiler"
	"github.com/Benny93/plexus-go/internal/logging"
	"github.com/Benny93/plexus-go/internal/storage"
)

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Files int `json:"files"`
	// Indexed counts files decompiled in this run; unchanged files are skipped
	// unless the run is full.
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Templates int `json:"templates"`
	Removed   int `json:"removed"`

	DurationSecs float64 `json:"duration_secs"`
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Options configures RunPipeline.
type Options struct {
	// Full re-indexes files whose digest did not change.
	Full bool

	Progress ProgressCallback
	Logger   *slog.Logger

	// Workers bounds concurrent file processing; zero means GOMAXPROCS.
	Workers int
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

func (o *Options) progress(phase string, p float64) {
	if o.Progress != nil {
		o.Progress(phase, p)
	}
}

// FileResult is the outcome of processing one file.
type FileResult struct {
	Entry     FileEntry
	Record    *storage.GraphRecord
	Templates []catalog.Template
}

// ProcessFile decompiles the entry and extracts its templates. Failures are
// captured in the record; a file that does not parse yields no templates.
func ProcessFile(entry FileEntry) *FileResult {
	g, err := decompiler.Decompile(string(entry.Content))
	res := &FileResult{
		Entry:  entry,
		Record: storage.NewGraphRecord(entry.RelPath, entry.Content, g, err),
	}

	templates, err := catalog.InspectModule(catalog.ModuleName(entry.RelPath), entry.Content)
	if err == nil {
		for i := range templates {
			templates[i].FilePath = entry.RelPath
		}
		res.Templates = templates
	}
	return res
}

// RunPipeline indexes the workspace at repoPath into store. Files that fail
// to decompile are stored as failed records and do not abort the run.
// Records for files that no longer exist are removed.
func RunPipeline(ctx context.Context, repoPath string, store storage.Backend, opts Options) (*PipelineResult, error) {
	start := time.Now()
	log := opts.logger()
	result := &PipelineResult{}

	// Phase 1: walking
	opts.progress("Walking files", 0.0)
	patterns, err := LoadGitignore(repoPath)
	if err != nil {
		log.Warn("reading .gitignore", "error", err)
	}
	entries, err := WalkRepo(repoPath, patterns)
	if err != nil {
		return nil, fmt.Errorf("walking repo: %w", err)
	}
	result.Files = len(entries)
	opts.progress("Walking files", 1.0)
	log.Debug("walked workspace", "path", repoPath, "files", len(entries))

	// Phase 2: change detection
	opts.progress("Detecting changes", 0.0)
	existing, err := store.ListGraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	digests := make(map[string]string, len(existing))
	for _, rec := range existing {
		digests[rec.Path] = rec.SHA256
	}

	seen := make(map[string]bool, len(entries))
	var pending []FileEntry
	for _, entry := range entries {
		seen[entry.RelPath] = true
		if !opts.Full && digests[entry.RelPath] == entry.SHA256 {
			result.Unchanged++
			continue
		}
		pending = append(pending, entry)
	}
	opts.progress("Detecting changes", 1.0)

	// Phase 3: decompiling and cataloguing
	opts.progress("Decompiling", 0.0)
	results, err := processAll(ctx, pending, opts.Workers, func(done, total int) {
		opts.progress("Decompiling", float64(done)/float64(total))
	})
	if err != nil {
		return nil, err
	}
	opts.progress("Decompiling", 1.0)

	// Phase 4: loading
	opts.progress("Loading to storage", 0.0)
	for i, res := range results {
		if err := store.PutGraph(ctx, res.Record); err != nil {
			return nil, fmt.Errorf("storing %s: %w", res.Entry.RelPath, err)
		}
		if err := replaceTemplates(ctx, store, res.Entry.RelPath, res.Templates); err != nil {
			return nil, err
		}

		result.Indexed++
		result.Templates += len(res.Templates)
		if !res.Record.OK() {
			result.Failed++
			log.Warn("decompile failed", "file", res.Entry.RelPath, "error", res.Record.Error)
		} else {
			log.Debug("indexed", "file", res.Entry.RelPath, "nodes", res.Record.NodeCount, "templates", len(res.Templates))
		}
		opts.progress("Loading to storage", float64(i+1)/float64(len(results)))
	}

	// Phase 5: pruning deleted files
	for _, rec := range existing {
		if seen[rec.Path] {
			continue
		}
		if err := RemoveFile(ctx, store, rec.Path); err != nil {
			return nil, err
		}
		result.Removed++
		log.Debug("removed", "file", rec.Path)
	}
	opts.progress("Loading to storage", 1.0)

	result.DurationSecs = time.Since(start).Seconds()
	log.Info("pipeline finished",
		"files", result.Files,
		"indexed", result.Indexed,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"templates", result.Templates,
		"removed", result.Removed,
	)
	return result, nil
}

// processAll runs ProcessFile over entries on a bounded worker pool and
// returns the results in entry order.
func processAll(ctx context.Context, entries []FileEntry, workers int, report func(done, total int)) ([]*FileResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*FileResult, len(entries))
	if len(entries) == 0 {
		return results, nil
	}

	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = ProcessFile(entries[i])

				mu.Lock()
				done++
				report(done, len(entries))
				mu.Unlock()
			}
		}()
	}

	var err error
feed:
	for i := range entries {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return results, nil
}

func replaceTemplates(ctx context.Context, store storage.Backend, relPath string, templates []catalog.Template) error {
	if _, err := store.RemoveTemplatesByFile(ctx, relPath); err != nil {
		return fmt.Errorf("removing templates of %s: %w", relPath, err)
	}
	if len(templates) == 0 {
		return nil
	}
	if err := store.AddTemplates(ctx, templates); err != nil {
		return fmt.Errorf("storing templates of %s: %w", relPath, err)
	}
	return nil
}

// RemoveFile drops the graph record and templates stored for relPath.
func RemoveFile(ctx context.Context, store storage.Backend, relPath string) error {
	if _, err := store.RemoveGraph(ctx, relPath); err != nil {
		return fmt.Errorf("removing graph of %s: %w", relPath, err)
	}
	if _, err := store.RemoveTemplatesByFile(ctx, relPath); err != nil {
		return fmt.Errorf("removing templates of %s: %w", relPath, err)
	}
	return nil
}

// ReindexFiles processes and stores the given entries, replacing whatever was
// stored for them. It returns the number of files stored.
func ReindexFiles(ctx context.Context, entries []FileEntry, store storage.Backend, log *slog.Logger) int {
	if log == nil {
		log = logging.Discard()
	}

	count := 0
	for _, entry := range entries {
		res := ProcessFile(entry)
		if err := store.PutGraph(ctx, res.Record); err != nil {
			log.Error("storing graph", "file", entry.RelPath, "error", err)
			continue
		}
		if err := replaceTemplates(ctx, store, entry.RelPath, res.Templates); err != nil {
			log.Error("storing templates", "file", entry.RelPath, "error", err)
			continue
		}
		if !res.Record.OK() {
			log.Warn("decompile failed", "file", entry.RelPath, "error", res.Record.Error)
		}
		count++
	}
	return count
}
