package compiler

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/pyast"
)

func compileJSON(t *testing.T, doc string) (string, error) {
	t.Helper()
	g, err := graph.Decode([]byte(doc), graph.FormatJSON, graph.DecodeOptions{})
	if err != nil {
		return "", err
	}
	return Compile(g)
}

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "Assignment",
			doc: `{"nodes": [
				{"id": "assign-1", "type": "variable_assign", "value": "x", "inputs": [{"name": "value", "value": "100"}]}
			]}`,
			want: "x = 100",
		},
		{
			name: "LinkedAssignment",
			doc: `{"nodes": [
				{"id": "a", "type": "variable_assign", "value": "message", "inputs": [{"name": "value", "value": "100"}]},
				{"id": "p", "type": "print", "inputs": [{"name": "target", "link": "a"}]}
			]}`,
			want: "message = 100\nprint(message)",
		},
		{
			name: "StatementOrderFollowsList",
			doc: `{"nodes": [
				{"id": "p", "type": "print", "inputs": [{"name": "target", "value": "'first'"}]},
				{"id": "a", "type": "variable_assign", "value": "x", "inputs": [{"name": "value", "value": "1"}]}
			]}`,
			want: "print('first')\nx = 1",
		},
		{
			name: "BranchWithComparison",
			doc: `{"nodes": [
				{"id": "assign-1", "type": "variable_assign", "value": "score", "inputs": [{"name": "value", "value": "85"}]},
				{"id": "op-1", "type": "binary_op", "value": ">=", "inputs": [
					{"name": "left", "link": "assign-1"}, {"name": "right", "value": "80"}]},
				{"id": "if-1", "type": "if_statement", "inputs": [{"name": "test", "link": "op-1"}],
				 "body": [{"id": "print-1", "type": "print", "inputs": [{"name": "target", "value": "'B'"}]}],
				 "orelse": [{"id": "print-2", "type": "print", "inputs": [{"name": "target", "value": "'C'"}]}]}
			]}`,
			want: "score = 85\nif score >= 80:\n    print('B')\nelse:\n    print('C')",
		},
		{
			name: "LoopVariable",
			doc: `{"nodes": [
				{"id": "assign-1", "type": "variable_assign", "value": "items", "inputs": [{"name": "value", "value": "[1,2]"}]},
				{"id": "for-1", "type": "for_loop", "target_variable": "i", "inputs": [{"name": "iter", "link": "assign-1"}],
				 "body": [{"id": "print-1", "type": "print", "inputs": [{"name": "target", "link": "for-1"}]}]}
			]}`,
			want: "items = [1, 2]\nfor i in items:\n    print(i)",
		},
		{
			name: "EmptyBranches",
			doc: `{"nodes": [
				{"id": "if-1", "type": "if_statement", "inputs": [{"name": "test", "value": "True"}], "body": [], "orelse": []}
			]}`,
			want: "if True:\n    pass",
		},
		{
			name: "EmptyLoopBody",
			doc: `{"nodes": [
				{"id": "for-1", "type": "for_loop", "target_variable": "i", "inputs": [{"name": "iter", "value": "(1, 2)"}]}
			]}`,
			want: "for i in (1, 2):\n    pass",
		},
		{
			name: "NestedCallsInline",
			doc: `{"nodes": [
				{"id": "call-1", "type": "call_function", "func_name": "input", "inputs": []},
				{"id": "call-2", "type": "call_function", "func_name": "int", "inputs": [{"name": "arg0", "link": "call-1"}]},
				{"id": "assign-1", "type": "variable_assign", "value": "n", "inputs": [{"name": "value", "link": "call-2"}]}
			]}`,
			want: "n = int(input())",
		},
		{
			name: "LinkedPrintIsInline",
			doc: `{"nodes": [
				{"id": "print-1", "type": "print", "inputs": [{"name": "target", "value": "1"}]},
				{"id": "assign-1", "type": "variable_assign", "value": "r", "inputs": [{"name": "value", "link": "print-1"}]}
			]}`,
			want: "r = print(1)",
		},
		{
			name: "ArgumentOrder",
			doc: `{"nodes": [
				{"id": "call-1", "type": "call_function", "func_name": "f", "inputs": [
					{"name": "arg10", "value": "10"}, {"name": "arg2", "value": "2"},
					{"name": "extra", "value": "'x'"}, {"name": "arg0", "value": "0"}]}
			]}`,
			want: "f(0, 2, 10, 'x')",
		},
		{
			name: "Precedence",
			doc: `{"nodes": [
				{"id": "op-1", "type": "binary_op", "value": "+", "inputs": [{"name": "left", "value": "1"}, {"name": "right", "value": "2"}]},
				{"id": "op-2", "type": "binary_op", "value": "*", "inputs": [{"name": "left", "link": "op-1"}, {"name": "right", "value": "3"}]},
				{"id": "assign-1", "type": "variable_assign", "value": "y", "inputs": [{"name": "value", "link": "op-2"}]}
			]}`,
			want: "y = (1 + 2) * 3",
		},
		{
			name: "DeadOperationSkipped",
			doc: `{"nodes": [
				{"id": "op-1", "type": "binary_op", "value": "+", "inputs": [{"name": "left", "value": "1"}, {"name": "right", "value": "2"}]},
				{"id": "call-1", "type": "call_function", "func_name": "main", "inputs": []}
			]}`,
			want: "main()",
		},
		{
			name: "SharedExpression",
			doc: `{"nodes": [
				{"id": "op-1", "type": "binary_op", "value": "-", "inputs": [{"name": "left", "value": "5"}, {"name": "right", "value": "3"}]},
				{"id": "call-1", "type": "call_function", "func_name": "pair", "inputs": [{"name": "arg0", "link": "op-1"}, {"name": "arg1", "link": "op-1"}]}
			]}`,
			want: "pair(5 - 3, 5 - 3)",
		},
		{
			name: "NestedLinkAcrossScopes",
			doc: `{"nodes": [
				{"id": "if-1", "type": "if_statement", "inputs": [{"name": "test", "value": "True"}],
				 "body": [{"id": "assign-1", "type": "variable_assign", "value": "y", "inputs": [{"name": "value", "value": "1"}]}]},
				{"id": "print-1", "type": "print", "inputs": [{"name": "target", "link": "assign-1"}]}
			]}`,
			want: "if True:\n    y = 1\nprint(y)",
		},
		{
			name: "Elif",
			doc: `{"nodes": [
				{"id": "if-1", "type": "if_statement", "inputs": [{"name": "test", "value": "False"}],
				 "body": [{"id": "p1", "type": "print", "inputs": [{"name": "target", "value": "1"}]}],
				 "orelse": [{"id": "if-2", "type": "if_statement", "inputs": [{"name": "test", "value": "True"}],
				   "body": [{"id": "p2", "type": "print", "inputs": [{"name": "target", "value": "2"}]}]}]}
			]}`,
			want: "if False:\n    print(1)\nelif True:\n    print(2)",
		},
		{
			name: "Empty",
			doc:  `{"nodes": [], "connections": []}`,
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := compileJSON(t, tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		sentinel error
		contains string
		field    string
	}{
		{
			name:     "MissingNodes",
			doc:      `{"connections": []}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "'nodes'",
		},
		{
			name:     "MissingID",
			doc:      `{"nodes":[{"type":"call_function","func_name":"print"}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "'id'",
			field:    "id",
		},
		{
			name:     "NullNode",
			doc:      `{"nodes":[null]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "position 0 is null",
		},
		{
			name:     "NullBodyNode",
			doc:      `{"nodes":[{"id":"c","type":"if_statement","inputs":[{"name":"test","value":"True"}],"body":[null]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "position 0 is null",
		},
		{
			name:     "MissingType",
			doc:      `{"nodes":[{"id":"n1"}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "'type'",
			field:    "type",
		},
		{
			name:     "UnknownType",
			doc:      `{"nodes":[{"id":"n1","type":"while_loop"}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "while_loop",
		},
		{
			name:     "MissingInput",
			doc:      `{"nodes":[{"id":"print-1","type":"print","inputs":[]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "node 'print-1' of type 'print' is missing required input: 'target'",
			field:    "target",
		},
		{
			name:     "MissingNestedInput",
			doc:      `{"nodes":[{"id":"if-1","type":"if_statement","inputs":[{"name":"test","value":"True"}],"body":[{"id":"op-1","type":"binary_op","value":"+","inputs":[{"name":"left","value":"1"}]}]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "'right'",
			field:    "right",
		},
		{
			name:     "MissingFuncName",
			doc:      `{"nodes":[{"id":"call-1","type":"call_function"}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "func_name",
			field:    "func_name",
		},
		{
			name:     "DanglingLink",
			doc:      `{"nodes":[{"id":"print-1","type":"print","inputs":[{"name":"target","link":"ghost"}]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "node link 'ghost' not found in graph",
		},
		{
			name:     "DuplicateID",
			doc:      `{"nodes":[{"id":"a","type":"print","inputs":[{"name":"target","value":"1"}]},{"id":"a","type":"print","inputs":[{"name":"target","value":"2"}]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "'a'",
		},
		{
			name:     "UnsupportedOperator",
			doc:      `{"nodes":[{"id":"op-1","type":"binary_op","value":"**","inputs":[{"name":"left","value":"2"},{"name":"right","value":"3"}]}]}`,
			sentinel: graph.ErrUnsupportedOperator,
			contains: "'**'",
		},
		{
			name:     "LinkToIf",
			doc:      `{"nodes":[{"id":"if-1","type":"if_statement","inputs":[{"name":"test","value":"True"}]},{"id":"print-1","type":"print","inputs":[{"name":"target","link":"if-1"}]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "produces no value",
		},
		{
			name:     "CodeInLiteral",
			doc:      `{"nodes":[{"id":"print-1","type":"print","inputs":[{"name":"target","value":"__import__('os').system('ls')"}]}]}`,
			sentinel: pyast.ErrInvalidLiteral,
			contains: "print-1",
		},
		{
			name:     "CodeInName",
			doc:      `{"nodes":[{"id":"a","type":"variable_assign","value":"x = 1; y","inputs":[{"name":"value","value":"1"}]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "not a valid identifier",
		},
		{
			name:     "CodeInFuncName",
			doc:      `{"nodes":[{"id":"c","type":"call_function","func_name":"os.system('ls') or print"}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "not a valid identifier",
		},
		{
			name:     "Cycle",
			doc:      `{"nodes":[{"id":"op-1","type":"binary_op","value":"+","inputs":[{"name":"left","link":"op-2"},{"name":"right","value":"1"}]},{"id":"op-2","type":"binary_op","value":"+","inputs":[{"name":"left","link":"op-1"},{"name":"right","value":"1"}]},{"id":"a","type":"variable_assign","value":"x","inputs":[{"name":"value","link":"op-1"}]}]}`,
			sentinel: graph.ErrMalformedGraph,
			contains: "cycle",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := compileJSON(t, tt.doc)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), tt.contains)

			if tt.field != "" {
				var nodeErr *graph.NodeError
				require.True(t, errors.As(err, &nodeErr))
				assert.Equal(t, tt.field, nodeErr.Field)
			}
		})
	}
}

func TestCompile_NilGraph(t *testing.T) {
	t.Parallel()

	_, err := Compile(nil)
	assert.ErrorIs(t, err, graph.ErrMalformedGraph)
}

func TestCompareArgNames(t *testing.T) {
	t.Parallel()

	names := []string{"b", "arg10", "arg", "arg1", "a", "arg02", "arg-1"}
	slices.SortStableFunc(names, compareArgNames)
	assert.Equal(t, []string{"arg1", "arg02", "arg10", "a", "arg", "arg-1", "b"}, names)
}
