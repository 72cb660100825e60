package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("while_loop").Valid())
	assert.False(t, Kind("").Valid())

	assert.Equal(t, "Variable Assign", KindVariableAssign.Title())
	assert.Equal(t, "Call Function", KindCall.Title())
	assert.Equal(t, "Print", KindPrint.Title())
}

func TestArgInput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "arg0", ArgInput(0))
	assert.Equal(t, "arg12", ArgInput(12))
}

func TestNode_Input(t *testing.T) {
	t.Parallel()

	n := &Node{ID: "op-1", Kind: KindBinaryOp, Operator: "+", Inputs: []Input{
		LinkInput(InputLeft, "assign-1"),
		LiteralInput(InputRight, "2"),
	}}

	left, ok := n.Input(InputLeft)
	require.True(t, ok)
	assert.True(t, left.IsLink())
	assert.Equal(t, "assign-1", left.Link)

	right, ok := n.Input(InputRight)
	require.True(t, ok)
	assert.False(t, right.IsLink())
	assert.Equal(t, "2", right.Literal)

	_, ok = n.Input(InputTest)
	assert.False(t, ok)
}

func TestGraph_Walk(t *testing.T) {
	t.Parallel()

	t.Run("DepthFirst", func(t *testing.T) {
		t.Parallel()
		var ids []string
		err := sampleGraph().Walk(func(n *Node) error {
			ids = append(ids, n.ID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"assign-1", "op-1", "if-1", "print-1", "print-2"}, ids)
	})

	t.Run("StopsOnError", func(t *testing.T) {
		t.Parallel()
		stop := errors.New("stop")
		visited := 0
		err := sampleGraph().Walk(func(n *Node) error {
			visited++
			if n.ID == "if-1" {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 3, visited)
	})

	t.Run("NodeCount", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 5, sampleGraph().NodeCount())
		assert.Equal(t, 0, (&Graph{}).NodeCount())
	})
}

func TestNodeErrors(t *testing.T) {
	t.Parallel()

	n := &Node{ID: "op-1", Kind: KindBinaryOp, Operator: "**"}

	err := UnsupportedOperatorError(n)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
	assert.NotErrorIs(t, err, ErrMalformedGraph)
	assert.Equal(t, "operator '**' of node 'op-1' is not implemented", err.Error())

	err = MissingInputError(n, InputRight)
	assert.ErrorIs(t, err, ErrMalformedGraph)
	assert.Equal(t, "node 'op-1' of type 'binary_op' is missing required input: 'right'", err.Error())

	err = MissingNodesError()
	assert.ErrorIs(t, err, ErrMalformedGraph)
}
