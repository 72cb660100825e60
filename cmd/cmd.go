// Package cmd provides the plexus command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/plexus-go/internal/logging"
	"github.com/Benny93/plexus-go/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

const (
	workspaceDir = ".plexus"
	badgerDir    = "badger"
	metaFile     = "meta.json"
)

// Globals are the flags shared by every command, plus the process streams.
type Globals struct {
	Workspace string `short:"C" default:"." type:"path" help:"Workspace root"`
	LogLevel  string `default:"info" env:"PLEXUS_LOG_LEVEL" enum:"debug,info,warn,error" help:"Log level (${enum})"`
	LogFormat string `default:"text" env:"PLEXUS_LOG_FORMAT" enum:"text,json" help:"Log format (${enum})"`

	Stdin  io.Reader `kong:"-"`
	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin == nil {
		return os.Stdin
	}
	return g.Stdin
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

func (g *Globals) logger() *slog.Logger {
	return logging.New(g.LogLevel, g.LogFormat, g.stderr())
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.stdout(), format, args...)
}

// success prints a green status line.
func (g *Globals) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(g.stdout(), format+"\n", args...)
}

// failure prints a red status line.
func (g *Globals) failure(format string, args ...any) {
	color.New(color.FgRed).Fprintf(g.stdout(), format+"\n", args...)
}

func (g *Globals) root() (string, error) {
	ws := g.Workspace
	if ws == "" {
		ws = "."
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("resolving workspace: %w", err)
	}
	return abs, nil
}

func (g *Globals) indexDir() (string, error) {
	root, err := g.root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, workspaceDir), nil
}

// ErrNoIndex is returned by commands that need an index when none exists.
var ErrNoIndex = errors.New("no index found; run 'plexus index' first")

// openStore opens the workspace index. A read-only open fails with ErrNoIndex
// when the index does not exist; a writable open creates it.
func (g *Globals) openStore(readOnly bool) (*storage.BadgerBackend, error) {
	dir, err := g.indexDir()
	if err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, badgerDir)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if readOnly {
			return nil, ErrNoIndex
		}
		if err := os.MkdirAll(dbPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", workspaceDir, err)
		}
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// readInput reads a file argument; "-" reads standard input.
func (g *Globals) readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(g.stdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path, or to standard output when path is empty
// or "-".
func (g *Globals) writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := g.stdout().Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Translation
	Decompile DecompileCmd `cmd:"" help:"Translate a Python file into a Graph IR document"`
	Compile   CompileCmd   `cmd:"" help:"Translate a Graph IR document into Python"`
	Render    RenderCmd    `cmd:"" help:"Render a Graph IR document as a draw.io diagram"`
	Catalog   CatalogCmd   `cmd:"" help:"List node templates for the functions of a Python module"`
	Validate  ValidateCmd  `cmd:"" help:"Check a Graph IR document against the schema and the compiler"`
	Schema    SchemaCmd    `cmd:"" help:"Print the Graph IR JSON Schema"`

	// Workspace
	Index  IndexCmd  `cmd:"" help:"Index the Python files of a workspace"`
	Search SearchCmd `cmd:"" help:"Search indexed node templates"`
	List   ListCmd   `cmd:"" help:"List indexed files"`
	Show   ShowCmd   `cmd:"" help:"Print the stored graph of an indexed file"`
	Watch  WatchCmd  `cmd:"" help:"Watch mode with live re-indexing"`
	MCP    MCPCmd    `cmd:"" name:"mcp" help:"Start MCP server (stdio transport)"`
	Setup  SetupCmd  `cmd:"" help:"Configure an MCP client to launch plexus"`
	Status StatusCmd `cmd:"" help:"Show index status for the workspace"`
	Clean  CleanCmd  `cmd:"" help:"Delete the workspace index"`
}

// NewCLI creates a new CLI instance writing to the process streams.
func NewCLI() *CLI {
	return &CLI{Globals: Globals{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("plexus"),
		kong.Description("Bidirectional translator between Python and a node-based Graph IR"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Configuration(kong.JSON,
			filepath.Join(workspaceDir, "config.json"),
			filepath.Join("~", workspaceDir, "config.json"),
		),
		kong.Writers(c.stdout(), c.stderr()),
		kong.Bind(&c.Globals),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run()
}
