// Package graph provides the Graph IR for Plexus.
//
// A graph is an unordered collection of top-level nodes. Nodes feed values to
// each other through Link inputs; nested statements live only inside the Body
// and Orelse lists of If and For nodes.
package graph

import (
	"strconv"
	"strings"
)

// Kind is the tagged variant of a graph node. Its value is the wire "type".
type Kind string

const (
	KindVariableAssign Kind = "variable_assign"
	KindPrint          Kind = "print"
	KindCall           Kind = "call_function"
	KindIf             Kind = "if_statement"
	KindFor            Kind = "for_loop"
	KindBinaryOp       Kind = "binary_op"
)

// Kinds lists every node kind in declaration order.
var Kinds = []Kind{
	KindVariableAssign,
	KindPrint,
	KindCall,
	KindIf,
	KindFor,
	KindBinaryOp,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVariableAssign, KindPrint, KindCall, KindIf, KindFor, KindBinaryOp:
		return true
	}
	return false
}

// Title returns a human readable name for the kind ("Variable Assign").
func (k Kind) Title() string {
	parts := strings.Split(string(k), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Input slot names used by the translators.
const (
	InputValue  = "value"
	InputTarget = "target"
	InputLeft   = "left"
	InputRight  = "right"
	InputTest   = "test"
	InputIter   = "iter"
)

// ArgInput returns the input name of the i-th positional call argument.
func ArgInput(i int) string {
	return "arg" + strconv.Itoa(i)
}

// Input is a named parameter slot of a node. Exactly one of Link or Literal
// carries the value: a non-empty Link references another node, otherwise
// Literal holds verbatim source text of a constant or collection literal.
type Input struct {
	// Name is the logical parameter slot (value, target, left, arg0, ...).
	Name string

	// Link is the id of the node producing the value.
	Link string

	// Literal is literal source text, never executed.
	Literal string
}

// LinkInput returns an input that takes its value from node id.
func LinkInput(name, id string) Input {
	return Input{Name: name, Link: id}
}

// LiteralInput returns an input holding literal source text.
func LiteralInput(name, text string) Input {
	return Input{Name: name, Literal: text}
}

// IsLink reports whether the input references another node.
func (in Input) IsLink() bool {
	return in.Link != ""
}

// Node is the unit of the IR.
type Node struct {
	// ID is unique within a graph.
	ID string

	// Kind selects the variant.
	Kind Kind

	// Name is the kind-specific name: the assigned variable for
	// VariableAssign, the callee for Call and the loop variable for For.
	Name string

	// Operator is the operator symbol of a BinaryOp node.
	Operator string

	// Inputs in declaration order.
	Inputs []Input

	// Body holds nested statements of If and For nodes.
	Body []*Node

	// Orelse holds the else branch of an If node.
	Orelse []*Node
}

// Input returns the input with the given name.
func (n *Node) Input(name string) (Input, bool) {
	for _, in := range n.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Graph is the Graph IR: an unordered collection of top-level nodes.
type Graph struct {
	Nodes []*Node
}

// Walk calls fn for every node in the graph, depth first, visiting nested
// Body and Orelse lists after their owner. Walking stops at the first error.
func (g *Graph) Walk(fn func(n *Node) error) error {
	return walk(g.Nodes, fn)
}

func walk(nodes []*Node, fn func(n *Node) error) error {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := fn(n); err != nil {
			return err
		}
		if err := walk(n.Body, fn); err != nil {
			return err
		}
		if err := walk(n.Orelse, fn); err != nil {
			return err
		}
	}
	return nil
}

// NodeCount returns the number of nodes, nested ones included.
func (g *Graph) NodeCount() int {
	count := 0
	_ = g.Walk(func(*Node) error {
		count++
		return nil
	})
	return count
}
