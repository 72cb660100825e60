package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/ingestion"
	"github.com/Benny93/plexus-go/mcp"
)

// Meta is the index summary written to .plexus/meta.json.
type Meta struct {
	Version   string                     `json:"version"`
	Name      string                     `json:"name"`
	Path      string                     `json:"path"`
	Stats     *ingestion.PipelineResult `json:"stats"`
	IndexedAt string                     `json:"indexed_at"`
}

func writeMeta(dir, root string, result *ingestion.PipelineResult) error {
	meta := Meta{
		Version:   Version,
		Name:      filepath.Base(root),
		Path:      root,
		Stats:     result,
		IndexedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", metaFile, err)
	}
	return nil
}

func readMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if os.IsNotExist(err) {
		return nil, ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", metaFile, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", metaFile, err)
	}
	return &meta, nil
}

// IndexCmd indexes the workspace.
type IndexCmd struct {
	Path     string `arg:"" optional:"" help:"Workspace to index; defaults to --workspace"`
	Full     bool   `help:"Re-index files whose content did not change"`
	Workers  int    `default:"0" help:"Concurrent decompile workers (0 = one per CPU)"`
	Progress bool   `default:"true" negatable:"" help:"Show phase progress"`
}

// Run executes the index command.
func (c *IndexCmd) Run(g *Globals) error {
	if c.Path != "" {
		g.Workspace = c.Path
	}
	root, err := g.root()
	if err != nil {
		return err
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	g.success("Indexing %s", root)

	store, err := g.openStore(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := ingestion.Options{
		Full:    c.Full,
		Logger:  g.logger(),
		Workers: c.Workers,
	}
	if c.Progress {
		opts.Progress = func(phase string, pct float64) {
			fmt.Fprintf(g.stderr(), "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := ingestion.RunPipeline(ctx, root, store, opts)
	if c.Progress {
		fmt.Fprintln(g.stderr())
	}
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	dir, err := g.indexDir()
	if err != nil {
		return err
	}
	if err := writeMeta(dir, root, result); err != nil {
		return err
	}

	g.success("✓ Indexing complete")
	g.printf("  Files:      %d\n", result.Files)
	g.printf("  Indexed:    %d\n", result.Indexed)
	g.printf("  Unchanged:  %d\n", result.Unchanged)
	g.printf("  Failed:     %d\n", result.Failed)
	g.printf("  Templates:  %d\n", result.Templates)
	g.printf("  Removed:    %d\n", result.Removed)
	g.printf("  Duration:   %.2fs\n", result.DurationSecs)
	return nil
}

// SearchCmd searches indexed templates.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	store, err := g.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.SearchTemplates(context.Background(), c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		g.printf("No results found\n")
		return nil
	}

	for i, r := range results {
		g.printf("\n%d. %s\n", i+1, r.DisplayName)
		if r.FilePath != "" {
			g.printf("   File: %s\n", r.FilePath)
		}
		g.printf("   Score: %.3f\n", r.Score)
		if r.Snippet != "" {
			g.printf("   %s\n", r.Snippet[:min(200, len(r.Snippet))])
		}
	}
	return nil
}

// ListCmd lists the indexed files.
type ListCmd struct {
	Failed bool `help:"Only show files that did not decompile"`
}

// Run executes the list command.
func (c *ListCmd) Run(g *Globals) error {
	store, err := g.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ListGraphs(context.Background())
	if err != nil {
		return fmt.Errorf("listing graphs: %w", err)
	}
	if len(records) == 0 {
		g.printf("No indexed files found\n")
		return nil
	}

	for _, rec := range records {
		switch {
		case rec.OK() && !c.Failed:
			g.success("✓ %s (%d nodes)", rec.Path, rec.NodeCount)
		case !rec.OK():
			g.failure("✗ %s: %s", rec.Path, rec.Error)
		}
	}
	return nil
}

// ShowCmd prints a stored graph.
type ShowCmd struct {
	File   string `arg:"" help:"Workspace relative path of an indexed .py file"`
	Format string `enum:"json,yaml" default:"json" help:"Graph format (${enum})"`
}

// Run executes the show command.
func (c *ShowCmd) Run(g *Globals) error {
	store, err := g.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.GetGraph(context.Background(), filepath.ToSlash(c.File))
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%s is not indexed", c.File)
	}
	if !rec.OK() {
		return fmt.Errorf("%s did not decompile: %s", c.File, rec.Error)
	}

	data, err := graph.Encode(rec.Graph, graph.Format(c.Format))
	if err != nil {
		return err
	}
	return g.writeOutput("", data)
}

// WatchCmd re-indexes files as they change.
type WatchCmd struct{}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	root, err := g.root()
	if err != nil {
		return err
	}

	store, err := g.openStore(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	log := g.logger()
	if _, err := ingestion.RunPipeline(ctx, root, store, ingestion.Options{Logger: log}); err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	g.printf("Watching %s for changes (Ctrl+C to stop)\n", root)
	err = ingestion.WatchRepo(ctx, root, store, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	g.printf("Watch mode stopped.\n")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Watch bool `short:"w" help:"Keep the index up to date while serving"`
}

// Run executes the mcp command. Nothing but protocol messages is written to
// stdout.
func (c *MCPCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	log := g.logger()

	var store mcp.Store
	if c.Watch {
		root, err := g.root()
		if err != nil {
			return err
		}
		backend, err := g.openStore(false)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			_ = backend.Close()
		}()
		store = backend

		go func() {
			if _, err := ingestion.RunPipeline(ctx, root, backend, ingestion.Options{Logger: log}); err != nil {
				log.Error("indexing", "error", err)
				return
			}
			if err := ingestion.WatchRepo(ctx, root, backend, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("watching", "error", err)
			}
		}()
	} else {
		backend, err := g.openStore(true)
		switch {
		case errors.Is(err, ErrNoIndex):
			log.Warn("serving without a workspace index")
		case err != nil:
			return err
		default:
			defer func() { _ = backend.Close() }()
			store = backend
		}
	}

	err := mcp.NewServer(store, log).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SetupCmd writes an MCP client configuration that launches plexus.
type SetupCmd struct {
	Client string `arg:"" optional:"" help:"Client to configure (claude, cursor, qwen); omit to print the configuration"`
	Global bool   `help:"Write to the user configuration instead of the workspace"`
	Watch  bool   `default:"true" negatable:"" help:"Launch the server in watch mode"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(g *Globals) error {
	data, err := json.MarshalIndent(c.config(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if c.Client == "" {
		return g.writeOutput("", data)
	}

	path, err := c.configPath(g)
	if err != nil {
		return err
	}
	if err := g.writeOutput(path, data); err != nil {
		return err
	}
	g.success("✓ Created %s MCP config at %s", c.Client, path)
	return nil
}

func (c *SetupCmd) config() map[string]any {
	args := []string{"mcp"}
	if c.Watch {
		args = append(args, "--watch")
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"plexus": map[string]any{
				"command": "plexus",
				"args":    args,
			},
		},
	}
}

func (c *SetupCmd) configPath(g *Globals) (string, error) {
	var dir string
	switch c.Client {
	case "claude", "cursor", "qwen":
		dir = "." + c.Client
	default:
		return "", fmt.Errorf("unknown client %q (want claude, cursor or qwen)", c.Client)
	}

	if c.Global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("finding home directory: %w", err)
		}
		return filepath.Join(home, dir, "global", "mcp.json"), nil
	}

	root, err := g.root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, dir, "mcp.json"), nil
}

// StatusCmd shows the index status.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	dir, err := g.indexDir()
	if err != nil {
		return err
	}
	meta, err := readMeta(dir)
	if err != nil {
		return err
	}

	g.printf("Index status for %s\n", meta.Path)
	g.printf("  Version:       %s\n", meta.Version)
	g.printf("  Last indexed:  %s\n", meta.IndexedAt)
	if s := meta.Stats; s != nil {
		g.printf("  Files:         %d\n", s.Files)
		g.printf("  Failed:        %d\n", s.Failed)
		g.printf("  Templates:     %d\n", s.Templates)
	}

	store, err := g.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	g.printf("  Stored graphs: %d\n", store.GraphCount())
	g.printf("  Stored templates: %d\n", store.TemplateCount())
	return nil
}

// CleanCmd deletes the workspace index.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	dir, err := g.indexDir()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s; nothing to clean", dir)
	}

	if !c.Force {
		g.printf("Delete index at %s? [y/N] ", dir)
		answer, _ := bufio.NewReader(g.stdin()).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			g.printf("Aborted\n")
			return nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	g.success("Deleted %s", dir)
	return nil
}
