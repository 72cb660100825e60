// Package mcp exposes the translators and the workspace index as Model
// Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/plexus-go/internal/catalog"
	"github.com/Benny93/plexus-go/internal/compiler"
	"github.com/Benny93/plexus-go/internal/decompiler"
	"github.com/Benny93/plexus-go/internal/drawio"
	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/logging"
	"github.com/Benny93/plexus-go/internal/storage"
)

const (
	serverName    = "plexus-go"
	serverVersion = "0.1.0"

	defaultSearchLimit = 20
)

// ErrNoIndex is returned by workspace tools when the server has no store.
var ErrNoIndex = errors.New("no workspace index; run 'plexus index' first")

// Store is the part of storage.Backend the server reads.
type Store interface {
	GetGraph(ctx context.Context, path string) (*storage.GraphRecord, error)
	SearchTemplates(ctx context.Context, query string, limit int) ([]storage.SearchResult, error)
	GraphCount() int
	TemplateCount() int
}

// Server is the MCP server.
type Server struct {
	store  Store
	log    *slog.Logger
	server *mcp.Server
}

// Tool describes a registered tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource describes a registered resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// DecompileArgs are the arguments of plexus_decompile.
type DecompileArgs struct {
	Source string `json:"source" jsonschema:"Python source text in the supported subset"`
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default) or yaml"`
}

// CompileArgs are the arguments of plexus_compile.
type CompileArgs struct {
	Graph  string `json:"graph" jsonschema:"Graph IR document as JSON or YAML"`
	Repair bool   `json:"repair,omitempty" jsonschema:"Repair malformed JSON before decoding"`
}

// RenderArgs are the arguments of plexus_render.
type RenderArgs struct {
	Graph string `json:"graph" jsonschema:"Graph IR document as JSON or YAML"`
}

// CatalogArgs are the arguments of plexus_catalog.
type CatalogArgs struct {
	Source string `json:"source" jsonschema:"Python module source text"`
	Module string `json:"module,omitempty" jsonschema:"Dotted module name used to qualify template names"`
}

// SearchNodesArgs are the arguments of plexus_search_nodes.
type SearchNodesArgs struct {
	Query string `json:"query" jsonschema:"Search text matched against template names and docs"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 20)"`
}

// GetGraphArgs are the arguments of plexus_get_graph.
type GetGraphArgs struct {
	Path string `json:"path" jsonschema:"Workspace relative path of an indexed .py file"`
}

var tools = []Tool{
	{
		Name:        "plexus_decompile",
		Description: "Translate Python source into a Graph IR document.",
		InputSchema: schemaFor[DecompileArgs](),
	},
	{
		Name:        "plexus_compile",
		Description: "Translate a Graph IR document into Python source.",
		InputSchema: schemaFor[CompileArgs](),
	},
	{
		Name:        "plexus_render",
		Description: "Render a Graph IR document as a draw.io diagram.",
		InputSchema: schemaFor[RenderArgs](),
	},
	{
		Name:        "plexus_catalog",
		Description: "List the node templates for the public functions of a Python module.",
		InputSchema: schemaFor[CatalogArgs](),
	},
	{
		Name:        "plexus_search_nodes",
		Description: "Search the indexed node templates of the workspace.",
		InputSchema: schemaFor[SearchNodesArgs](),
	},
	{
		Name:        "plexus_get_graph",
		Description: "Return the stored Graph IR of an indexed workspace file.",
		InputSchema: schemaFor[GetGraphArgs](),
	},
}

var resources = []Resource{
	{
		URI:         "plexus://schema",
		Name:        "Graph IR Schema",
		Description: "JSON Schema of the Graph IR document",
		MimeType:    "application/schema+json",
	},
	{
		URI:         "plexus://overview",
		Name:        "Workspace Overview",
		Description: "Statistics about the indexed workspace",
		MimeType:    "text/markdown",
	},
}

func schemaFor[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring tool schema: %v", err))
	}
	return s
}

// NewServer creates a server. store may be nil, in which case the workspace
// tools report ErrNoIndex.
func NewServer(store Store, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{store: store, log: log}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return tools
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return resources
}

// CallTool executes a tool with JSON-shaped arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "plexus_decompile":
		return callWith(ctx, args, s.handleDecompile)
	case "plexus_compile":
		return callWith(ctx, args, s.handleCompile)
	case "plexus_render":
		return callWith(ctx, args, s.handleRender)
	case "plexus_catalog":
		return callWith(ctx, args, s.handleCatalog)
	case "plexus_search_nodes":
		return callWith(ctx, args, s.handleSearchNodes)
	case "plexus_get_graph":
		return callWith(ctx, args, s.handleGetGraph)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func callWith[T any](ctx context.Context, args map[string]any, handler func(context.Context, T) (string, error)) (string, error) {
	var typed T
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return handler(ctx, typed)
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "plexus://schema":
		return getSchema()
	case "plexus://overview":
		return s.getOverview(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

func (s *Server) registerTools() {
	addTool(s, "plexus_decompile", s.handleDecompile)
	addTool(s, "plexus_compile", s.handleCompile)
	addTool(s, "plexus_render", s.handleRender)
	addTool(s, "plexus_catalog", s.handleCatalog)
	addTool(s, "plexus_search_nodes", s.handleSearchNodes)
	addTool(s, "plexus_get_graph", s.handleGetGraph)
}

// addTool registers handler with the SDK. Handler failures become tool
// results flagged as errors so the client sees the message.
func addTool[T any](s *Server, name string, handler func(context.Context, T) (string, error)) {
	var tool Tool
	for _, t := range tools {
		if t.Name == name {
			tool = t
		}
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        tool.Name,
		Description: tool.Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, any, error) {
		s.log.Debug("tool call", "tool", name)
		text, err := handler(ctx, args)
		if err != nil {
			s.log.Warn("tool failed", "tool", name, "error", err)
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})
}

func (s *Server) registerResources() {
	for _, r := range resources {
		r := r
		s.server.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, r.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: r.URI, MIMEType: r.MimeType, Text: text},
				},
			}, nil
		})
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	r := textResult(msg)
	r.IsError = true
	return r
}

// Tool Handlers

func (s *Server) handleDecompile(ctx context.Context, args DecompileArgs) (string, error) {
	format := graph.FormatJSON
	if args.Format != "" {
		f, err := graph.ParseFormat(args.Format)
		if err != nil {
			return "", err
		}
		format = f
	}

	g, err := decompiler.Decompile(args.Source)
	if err != nil {
		return "", err
	}
	data, err := graph.Encode(g, format)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Server) handleCompile(ctx context.Context, args CompileArgs) (string, error) {
	g, err := decodeGraph(args.Graph, args.Repair)
	if err != nil {
		return "", err
	}
	return compiler.Compile(g)
}

func (s *Server) handleRender(ctx context.Context, args RenderArgs) (string, error) {
	g, err := decodeGraph(args.Graph, false)
	if err != nil {
		return "", err
	}
	data, err := drawio.Render(g)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Server) handleCatalog(ctx context.Context, args CatalogArgs) (string, error) {
	templates, err := catalog.InspectModule(args.Module, []byte(args.Source))
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Server) handleSearchNodes(ctx context.Context, args SearchNodesArgs) (string, error) {
	if s.store == nil {
		return "", ErrNoIndex
	}
	if strings.TrimSpace(args.Query) == "" {
		return "No query provided", nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.store.SearchTemplates(ctx, args.Query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}
	return formatSearchResults(results, args.Query), nil
}

func (s *Server) handleGetGraph(ctx context.Context, args GetGraphArgs) (string, error) {
	if s.store == nil {
		return "", ErrNoIndex
	}
	rec, err := s.store.GetGraph(ctx, args.Path)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("no graph stored for %s", args.Path)
	}
	if !rec.OK() {
		return "", fmt.Errorf("%s did not decompile: %s", args.Path, rec.Error)
	}

	data, err := graph.Encode(rec.Graph, graph.FormatJSON)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeGraph reads a JSON or YAML document.
func decodeGraph(text string, repair bool) (*graph.Graph, error) {
	data := []byte(text)
	return graph.Decode(data, graph.DetectFormat(data), graph.DecodeOptions{Repair: repair})
}

// formatSearchResults formats template search results as markdown.
func formatSearchResults(results []storage.SearchResult, query string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), query))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, r.DisplayName, r.Module))
		if r.FilePath != "" {
			sb.WriteString(fmt.Sprintf("   File: %s\n", r.FilePath))
		}
		sb.WriteString(fmt.Sprintf("   Score: %.3f\n", r.Score))
		if r.Snippet != "" {
			snippet := r.Snippet
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			sb.WriteString(fmt.Sprintf("   %s\n", snippet))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Next: add a call_function node whose func_name is the template name.")
	return sb.String()
}

// Resource Handlers

func getSchema() (string, error) {
	data, err := json.MarshalIndent(graph.Schema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	return string(data), nil
}

func (s *Server) getOverview() string {
	var sb strings.Builder
	sb.WriteString("# Plexus Workspace Overview\n\n")
	if s.store == nil {
		sb.WriteString("No workspace index loaded.\n")
	} else {
		sb.WriteString(fmt.Sprintf("**Graphs:** %d\n", s.store.GraphCount()))
		sb.WriteString(fmt.Sprintf("**Templates:** %d\n", s.store.TemplateCount()))
	}

	sb.WriteString("\n## Node Types\n\n")
	for _, k := range graph.Kinds {
		sb.WriteString(fmt.Sprintf("- `%s`: %s\n", k, k.Title()))
	}
	return sb.String()
}
