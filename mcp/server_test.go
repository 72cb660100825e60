package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/plexus-go/internal/catalog"
	"github.com/Benny93/plexus-go/internal/decompiler"
	"github.com/Benny93/plexus-go/internal/drawio"
	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/storage"
)

const (
	programSrc = "x = 1\nprint(x)\n"
	programIR  = `{"nodes": [
  {"id": "assign-1", "type": "variable_assign", "value": "x", "inputs": [{"name": "value", "value": "1"}]},
  {"id": "print-2", "type": "print", "inputs": [{"name": "target", "link": "assign-1"}]}
], "connections": []}`
)

func newTestStore(t *testing.T) *storage.MemoryBackend {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryBackend()
	require.NoError(t, store.Initialize("", false))

	g, err := decompiler.Decompile(programSrc)
	require.NoError(t, err)
	require.NoError(t, store.PutGraph(ctx, storage.NewGraphRecord("main.py", []byte(programSrc), g, nil)))
	require.NoError(t, store.PutGraph(ctx, storage.NewGraphRecord("lib.py", []byte("def f(): pass"), nil, assert.AnError)))

	templates, err := catalog.InspectModule("geometry", []byte("def area(w: float, h: float) -> float:\n    \"\"\"Area of a rectangle.\"\"\"\n    return w * h\n"))
	require.NoError(t, err)
	require.NoError(t, store.AddTemplates(ctx, templates))
	return store
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil)
	names := make([]string, 0)
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		require.NotNil(t, tool.InputSchema, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.Equal(t, []string{
		"plexus_decompile",
		"plexus_compile",
		"plexus_render",
		"plexus_catalog",
		"plexus_search_nodes",
		"plexus_get_graph",
	}, names)

	var compile Tool
	for _, tool := range s.ListTools() {
		if tool.Name == "plexus_compile" {
			compile = tool
		}
	}
	assert.Contains(t, compile.InputSchema.Required, "graph")
	assert.NotContains(t, compile.InputSchema.Required, "repair")

	for _, tool := range s.ListTools() {
		require.NotEmpty(t, tool.InputSchema.Properties, tool.Name)
		for name, prop := range tool.InputSchema.Properties {
			assert.NotEmpty(t, prop.Description, "%s.%s", tool.Name, name)
		}
	}
}

func TestServer_ListResources(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil)
	uris := make([]string, 0)
	for _, r := range s.ListResources() {
		uris = append(uris, r.URI)
	}
	assert.Equal(t, []string{"plexus://schema", "plexus://overview"}, uris)
}

func TestServer_CallTool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(newTestStore(t), nil)

	t.Run("Decompile", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_decompile", map[string]any{"source": programSrc})
		require.NoError(t, err)

		g, err := graph.Decode([]byte(out), graph.FormatJSON, graph.DecodeOptions{})
		require.NoError(t, err)
		require.Len(t, g.Nodes, 2)
		assert.Equal(t, "assign-1", g.Nodes[0].ID)
	})

	t.Run("DecompileYAML", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_decompile", map[string]any{"source": programSrc, "format": "yaml"})
		require.NoError(t, err)
		assert.Contains(t, out, "type: variable_assign")
	})

	t.Run("DecompileUnsupported", func(t *testing.T) {
		t.Parallel()
		_, err := s.CallTool(ctx, "plexus_decompile", map[string]any{"source": "while True:\n    pass\n"})
		assert.ErrorContains(t, err, "while loops are not supported")
	})

	t.Run("Compile", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_compile", map[string]any{"graph": programIR})
		require.NoError(t, err)
		assert.Equal(t, "x = 1\nprint(x)", out)
	})

	t.Run("CompileRepair", func(t *testing.T) {
		t.Parallel()
		broken := `{"nodes": [{"id": "p", "type": "print", "inputs": [{"name": "target", "value": "'hi'"},]},]}`

		_, err := s.CallTool(ctx, "plexus_compile", map[string]any{"graph": broken})
		assert.Error(t, err)

		out, err := s.CallTool(ctx, "plexus_compile", map[string]any{"graph": broken, "repair": true})
		require.NoError(t, err)
		assert.Equal(t, "print('hi')", out)
	})

	t.Run("CompileYAML", func(t *testing.T) {
		t.Parallel()
		doc := "nodes:\n  - id: p\n    type: print\n    inputs:\n      - name: target\n        value: \"42\"\n"
		out, err := s.CallTool(ctx, "plexus_compile", map[string]any{"graph": doc})
		require.NoError(t, err)
		assert.Equal(t, "print(42)", out)
	})

	t.Run("CompileDanglingLink", func(t *testing.T) {
		t.Parallel()
		doc := `{"nodes": [{"id": "p", "type": "print", "inputs": [{"name": "target", "link": "node1"}]}]}`
		_, err := s.CallTool(ctx, "plexus_compile", map[string]any{"graph": doc})
		assert.ErrorContains(t, err, "node link 'node1' not found in graph")
	})

	t.Run("Render", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_render", map[string]any{"graph": programIR})
		require.NoError(t, err)
		assert.Contains(t, out, "<mxfile")

		g, err := decompiler.Decompile(programSrc)
		require.NoError(t, err)
		expected, err := drawio.Render(g)
		require.NoError(t, err)
		assert.Equal(t, string(expected), out)
	})

	t.Run("Catalog", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_catalog", map[string]any{
			"source": "def scale(v, k=2):\n    return v * k\n\ndef _private():\n    pass\n",
			"module": "vec",
		})
		require.NoError(t, err)

		var templates []catalog.Template
		require.NoError(t, json.Unmarshal([]byte(out), &templates))
		require.Len(t, templates, 1)
		assert.Equal(t, "vec.scale", templates[0].DisplayName)
		assert.Equal(t, catalog.NoDoc, templates[0].Doc)
	})

	t.Run("SearchNodes", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_search_nodes", map[string]any{"query": "rectangle area"})
		require.NoError(t, err)
		assert.Contains(t, out, "Found 1 results for 'rectangle area'")
		assert.Contains(t, out, "**geometry.area** (geometry)")
		assert.Contains(t, out, "Area of a rectangle.")
	})

	t.Run("SearchNodesNoMatch", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_search_nodes", map[string]any{"query": "nonexistent"})
		require.NoError(t, err)
		assert.Equal(t, "No results found", out)

		out, err = s.CallTool(ctx, "plexus_search_nodes", map[string]any{"query": " "})
		require.NoError(t, err)
		assert.Equal(t, "No query provided", out)
	})

	t.Run("GetGraph", func(t *testing.T) {
		t.Parallel()
		out, err := s.CallTool(ctx, "plexus_get_graph", map[string]any{"path": "main.py"})
		require.NoError(t, err)
		assert.Contains(t, out, `"id": "print-2"`)

		_, err = s.CallTool(ctx, "plexus_get_graph", map[string]any{"path": "lib.py"})
		assert.ErrorContains(t, err, "lib.py did not decompile")

		_, err = s.CallTool(ctx, "plexus_get_graph", map[string]any{"path": "missing.py"})
		assert.ErrorContains(t, err, "no graph stored for missing.py")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		t.Parallel()
		_, err := s.CallTool(ctx, "plexus_unknown", nil)
		assert.ErrorContains(t, err, "unknown tool")
	})

	t.Run("InvalidArguments", func(t *testing.T) {
		t.Parallel()
		_, err := s.CallTool(ctx, "plexus_search_nodes", map[string]any{"query": 42})
		assert.ErrorContains(t, err, "invalid arguments")
	})
}

func TestServer_NoIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(nil, nil)

	_, err := s.CallTool(ctx, "plexus_search_nodes", map[string]any{"query": "x"})
	assert.ErrorIs(t, err, ErrNoIndex)
	_, err = s.CallTool(ctx, "plexus_get_graph", map[string]any{"path": "main.py"})
	assert.ErrorIs(t, err, ErrNoIndex)

	overview, err := s.ReadResource(ctx, "plexus://overview")
	require.NoError(t, err)
	assert.Contains(t, overview, "No workspace index loaded.")
}

func TestServer_ReadResource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(newTestStore(t), nil)

	t.Run("Schema", func(t *testing.T) {
		t.Parallel()
		out, err := s.ReadResource(ctx, "plexus://schema")
		require.NoError(t, err)

		var schema map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &schema))
		assert.Contains(t, schema, "properties")
	})

	t.Run("Overview", func(t *testing.T) {
		t.Parallel()
		out, err := s.ReadResource(ctx, "plexus://overview")
		require.NoError(t, err)
		assert.Contains(t, out, "**Graphs:** 2")
		assert.Contains(t, out, "**Templates:** 1")
		assert.Contains(t, out, "- `for_loop`: For Loop")
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		_, err := s.ReadResource(ctx, "plexus://nope")
		assert.Error(t, err)
	})
}

func TestServer_Session(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(newTestStore(t), nil)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	t.Run("ListTools", func(t *testing.T) {
		res, err := session.ListTools(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, res.Tools, len(s.ListTools()))
	})

	t.Run("CallTool", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "plexus_compile",
			Arguments: map[string]any{"graph": programIR},
		})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		require.Len(t, res.Content, 1)
		text, ok := res.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		assert.Equal(t, "x = 1\nprint(x)", text.Text)
	})

	t.Run("ToolError", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "plexus_decompile",
			Arguments: map[string]any{"source": "x = ("},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		require.Len(t, res.Content, 1)
		text, ok := res.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		assert.Equal(t, "invalid Python code provided", text.Text)
	})

	t.Run("ReadResource", func(t *testing.T) {
		res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "plexus://overview"})
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Contains(t, res.Contents[0].Text, "**Graphs:** 2")
	})
}
