package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Benny93/plexus-go/internal/catalog"
	"github.com/Benny93/plexus-go/internal/compiler"
	"github.com/Benny93/plexus-go/internal/decompiler"
	"github.com/Benny93/plexus-go/internal/drawio"
	"github.com/Benny93/plexus-go/internal/graph"
)

// DecompileCmd translates a Python file into a graph.
type DecompileCmd struct {
	File   string `arg:"" help:"Python file to decompile (- for stdin)"`
	Output string `short:"o" help:"Write the graph to this file instead of stdout"`
	Format string `enum:"auto,json,yaml" default:"auto" help:"Graph format (${enum}); auto follows the output extension"`
}

// Run executes the decompile command.
func (c *DecompileCmd) Run(g *Globals) error {
	format, err := outputFormat(c.Format, c.Output)
	if err != nil {
		return err
	}

	src, err := g.readInput(c.File)
	if err != nil {
		return err
	}

	log := g.logger()
	log.Debug("decompiling", "file", c.File)

	ir, err := decompiler.Decompile(string(src))
	if err != nil {
		return fmt.Errorf("decompiling %s: %w", c.File, err)
	}

	data, err := graph.Encode(ir, format)
	if err != nil {
		return err
	}
	if err := g.writeOutput(c.Output, data); err != nil {
		return err
	}
	log.Debug("decompiled", "file", c.File, "nodes", ir.NodeCount())
	return nil
}

// CompileCmd translates a graph into Python.
type CompileCmd struct {
	File   string `arg:"" help:"Graph IR document (- for stdin)"`
	Output string `short:"o" help:"Write the source to this file instead of stdout"`
	Format string `enum:"auto,json,yaml" default:"auto" help:"Input format (${enum}); auto sniffs the document"`
	Repair bool   `help:"Repair malformed JSON before decoding"`
}

// Run executes the compile command.
func (c *CompileCmd) Run(g *Globals) error {
	ir, _, err := readGraph(g, c.File, c.Format, c.Repair)
	if err != nil {
		return err
	}

	src, err := compiler.Compile(ir)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", c.File, err)
	}
	if src != "" {
		src += "\n"
	}
	return g.writeOutput(c.Output, []byte(src))
}

// RenderCmd draws a graph as a draw.io diagram.
type RenderCmd struct {
	File   string `arg:"" help:"Graph IR document, or a .py file to decompile first (- for stdin)"`
	Output string `short:"o" help:"Write the diagram to this file instead of stdout"`
	Format string `enum:"auto,json,yaml" default:"auto" help:"Input format (${enum})"`
}

// Run executes the render command.
func (c *RenderCmd) Run(g *Globals) error {
	var ir *graph.Graph
	if strings.EqualFold(filepath.Ext(c.File), ".py") {
		src, err := g.readInput(c.File)
		if err != nil {
			return err
		}
		if ir, err = decompiler.Decompile(string(src)); err != nil {
			return fmt.Errorf("decompiling %s: %w", c.File, err)
		}
	} else {
		var err error
		if ir, _, err = readGraph(g, c.File, c.Format, false); err != nil {
			return err
		}
	}

	data, err := drawio.Render(ir)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", c.File, err)
	}
	if err := g.writeOutput(c.Output, data); err != nil {
		return err
	}
	if c.Output != "" {
		g.success("✓ Wrote %s", c.Output)
	}
	return nil
}

// CatalogCmd lists the node templates of a Python module.
type CatalogCmd struct {
	File   string `arg:"" help:"Python module to inspect"`
	Module string `help:"Dotted module name; defaults to the file name"`
}

// Run executes the catalog command.
func (c *CatalogCmd) Run(g *Globals) error {
	src, err := g.readInput(c.File)
	if err != nil {
		return err
	}

	module := c.Module
	if module == "" && c.File != "-" {
		module = catalog.ModuleName(filepath.Base(c.File))
	}

	templates, err := catalog.InspectModule(module, src)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", c.File, err)
	}

	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return err
	}
	return g.writeOutput("", append(data, '\n'))
}

// ValidateCmd checks a graph without writing anything.
type ValidateCmd struct {
	File   string `arg:"" help:"Graph IR document (- for stdin)"`
	Format string `enum:"auto,json,yaml" default:"auto" help:"Input format (${enum})"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(g *Globals) error {
	ir, raw, err := readGraph(g, c.File, c.Format, false)
	if err != nil {
		return err
	}

	// YAML documents are checked in their JSON form.
	doc := raw
	if resolveFormat(c.Format, raw) != graph.FormatJSON {
		if doc, err = graph.Encode(ir, graph.FormatJSON); err != nil {
			return err
		}
	}
	if err := graph.Validate(doc); err != nil {
		return fmt.Errorf("validating %s: %w", c.File, err)
	}
	if _, err := compiler.Build(ir); err != nil {
		return fmt.Errorf("validating %s: %w", c.File, err)
	}

	g.success("✓ %s is valid (%d nodes)", c.File, ir.NodeCount())
	return nil
}

// SchemaCmd prints the Graph IR JSON Schema.
type SchemaCmd struct{}

// Run executes the schema command.
func (c *SchemaCmd) Run(g *Globals) error {
	data, err := json.MarshalIndent(graph.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	return g.writeOutput("", append(data, '\n'))
}

// readGraph reads and decodes a graph document, returning the raw bytes too.
func readGraph(g *Globals, path, format string, repair bool) (*graph.Graph, []byte, error) {
	data, err := g.readInput(path)
	if err != nil {
		return nil, nil, err
	}
	ir, err := graph.Decode(data, resolveFormat(format, data), graph.DecodeOptions{Repair: repair})
	if err != nil {
		return nil, nil, fmt.Errorf("reading graph %s: %w", path, err)
	}
	return ir, data, nil
}

func resolveFormat(format string, data []byte) graph.Format {
	if format == "" || format == "auto" {
		return graph.DetectFormat(data)
	}
	return graph.Format(format)
}

// outputFormat picks the format for a written graph.
func outputFormat(format, output string) (graph.Format, error) {
	if format == "" || format == "auto" {
		return graph.FormatForPath(output), nil
	}
	return graph.ParseFormat(format)
}
