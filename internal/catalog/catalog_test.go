package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/plexus-go/internal/compiler"
	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/pyast"
)

const osModule = `
import sys

def getcwd():
    """Return a string representing the current working directory."""
    return "/usr/mock"

def path_join(path: str, *paths: str) -> str:
    """Join one or more path components intelligently."""
    return path

def _private_func():
    """This function should be ignored by the inspector."""
    pass
`

const mathModule = `
def sin(x: float) -> float:
    """
    Return the sine of x.

        x is measured in radians.
    """
    return x

@cache
def clamp(value, low=0, high: int = 10) -> "int":
    # no docstring, only a comment
    return value

async def fetch(url, /, timeout):
    'Fetch ' "a url."
    pass

def options(a, *, strict=False):
    pass

def collect(**kwargs):
    pass

class Vector:
    def norm(self):
        pass

if sys:
    def hidden():
        pass
`

func TestInspectModule(t *testing.T) {
	t.Parallel()

	t.Run("SkipsPrivateAndVariadic", func(t *testing.T) {
		t.Parallel()
		templates, err := InspectModule("os", []byte(osModule))
		require.NoError(t, err)
		require.Len(t, templates, 1)

		getcwd := templates[0]
		assert.Equal(t, "getcwd", getcwd.FuncName)
		assert.Equal(t, "os.getcwd", getcwd.DisplayName)
		assert.Equal(t, NodeTypeCall, getcwd.NodeType)
		assert.Equal(t, "os", getcwd.Module)
		assert.Equal(t, "Return a string representing the current working directory.", getcwd.Doc)
		assert.Empty(t, getcwd.Inputs)
		assert.Empty(t, getcwd.Outputs)
		assert.Equal(t, 4, getcwd.Line)
	})

	t.Run("Signatures", func(t *testing.T) {
		t.Parallel()
		templates, err := InspectModule("math", []byte(mathModule))
		require.NoError(t, err)

		var names []string
		for _, tpl := range templates {
			names = append(names, tpl.FuncName)
		}
		assert.Equal(t, []string{"clamp", "fetch", "sin"}, names)

		clamp := templates[0]
		require.Len(t, clamp.Inputs, 3)
		assert.Equal(t, Param{Name: "value", Required: true}, clamp.Inputs[0])
		assert.Equal(t, "low", clamp.Inputs[1].Name)
		assert.False(t, clamp.Inputs[1].Required)
		assert.Nil(t, clamp.Inputs[1].TypeHint)
		require.NotNil(t, clamp.Inputs[2].TypeHint)
		assert.Equal(t, "int", *clamp.Inputs[2].TypeHint)
		assert.False(t, clamp.Inputs[2].Required)
		assert.Equal(t, []Output{{Name: "return", TypeHint: `"int"`}}, clamp.Outputs)
		assert.Equal(t, NoDoc, clamp.Doc)

		fetch := templates[1]
		require.Len(t, fetch.Inputs, 2)
		assert.Equal(t, "url", fetch.Inputs[0].Name)
		assert.Equal(t, "timeout", fetch.Inputs[1].Name)
		assert.Equal(t, "Fetch a url.", fetch.Doc)

		sin := templates[2]
		assert.Equal(t, "math.sin", sin.DisplayName)
		require.Len(t, sin.Inputs, 1)
		assert.Equal(t, "x", sin.Inputs[0].Name)
		assert.True(t, sin.Inputs[0].Required)
		require.NotNil(t, sin.Inputs[0].TypeHint)
		assert.Equal(t, "float", *sin.Inputs[0].TypeHint)
		assert.Equal(t, "Return the sine of x.\n\n    x is measured in radians.", sin.Doc)
	})

	t.Run("Redefinition", func(t *testing.T) {
		t.Parallel()
		templates, err := InspectModule("m", []byte("def f(a):\n    pass\n\ndef f(a, b):\n    pass\n"))
		require.NoError(t, err)
		require.Len(t, templates, 1)
		assert.Len(t, templates[0].Inputs, 2)
	})

	t.Run("SkippedRedefinition", func(t *testing.T) {
		t.Parallel()
		src := "def f(a):\n    pass\n\ndef f(*args):\n    pass\n\ndef g():\n    pass\n\ndef g(*, k):\n    pass\n"
		templates, err := InspectModule("m", []byte(src))
		require.NoError(t, err)
		assert.Empty(t, templates)
	})

	t.Run("SyntaxError", func(t *testing.T) {
		t.Parallel()
		_, err := InspectModule("m", []byte("def f(:\n"))
		assert.ErrorIs(t, err, pyast.ErrSyntax)
	})

	t.Run("NoModule", func(t *testing.T) {
		t.Parallel()
		templates, err := InspectModule("", []byte("def f():\n    pass\n"))
		require.NoError(t, err)
		require.Len(t, templates, 1)
		assert.Equal(t, "f", templates[0].DisplayName)
		assert.Equal(t, "f", templates[0].CallName())
	})
}

func TestTemplate_NewNode(t *testing.T) {
	t.Parallel()

	templates, err := InspectModule("math", []byte(mathModule))
	require.NoError(t, err)
	sin := templates[2]

	n := sin.NewNode("call-1")
	assert.Equal(t, graph.KindCall, n.Kind)
	assert.Equal(t, "math.sin", n.Name)
	assert.Empty(t, n.Inputs)

	n.Inputs = append(n.Inputs, graph.LiteralInput(graph.ArgInput(0), "0.5"))
	src, err := compiler.Compile(&graph.Graph{Nodes: []*graph.Node{n}})
	require.NoError(t, err)
	assert.Equal(t, "math.sin(0.5)", src)
}

func TestModuleName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"math.py":             "math",
		"pkg/util.py":         "pkg.util",
		"pkg/sub/__init__.py": "pkg.sub",
		"__init__.py":         "",
		"./scripts/run.py":    "scripts.run",
	}
	for in, want := range tests {
		assert.Equal(t, want, ModuleName(in), in)
	}
}

func TestCleanDoc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "One line.", CleanDoc("  One line.  "))
	assert.Equal(t, "Summary.\n\nDetails\n  nested", CleanDoc("\n    Summary.\n\n    Details\n      nested\n    "))
	assert.Equal(t, "", CleanDoc("\n   \n"))
}
