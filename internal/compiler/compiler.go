// Package compiler turns a Graph IR into Python source.
//
// Compilation resolves node links into expressions, emits statement nodes in
// list order and renders the resulting AST. It either returns the complete
// program or an error; it never produces partial output.
package compiler

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/pyast"
)

// Compile translates g into Python source text.
func Compile(g *graph.Graph) (string, error) {
	m, err := Build(g)
	if err != nil {
		return "", err
	}
	return pyast.Unparse(m), nil
}

// Build translates g into a module without rendering it.
func Build(g *graph.Graph) (*pyast.Module, error) {
	if g == nil {
		return nil, graph.MissingNodesError()
	}

	idx, err := graph.NewIndex(g)
	if err != nil {
		return nil, err
	}
	if err := validate(idx); err != nil {
		return nil, err
	}

	c := &compiler{
		idx:      idx,
		exprs:    make(map[string]pyast.Expr),
		building: make(map[string]bool),
		compiled: make(map[string]bool),
	}
	body, err := c.statements(g.Nodes)
	if err != nil {
		return nil, err
	}
	return &pyast.Module{Body: body}, nil
}

// validate checks every node, reachable or not, so that a graph either
// compiles completely or fails.
func validate(idx *graph.Index) error {
	for _, n := range idx.Nodes() {
		if err := validateNode(n); err != nil {
			return err
		}
	}
	if err := idx.Check(); err != nil {
		return err
	}
	for _, l := range idx.Links() {
		if target := idx.Node(l.To); target.Kind == graph.KindIf {
			return graph.NotAValueError(target)
		}
	}
	return nil
}

func validateNode(n *graph.Node) error {
	if n.Kind == "" {
		return graph.MissingKindError(n.ID)
	}

	var required []string
	switch n.Kind {
	case graph.KindVariableAssign:
		if n.Name == "" {
			return graph.MissingFieldError(n, "value")
		}
		if !pyast.IsIdentifier(n.Name) {
			return graph.InvalidNameError(n, "value", n.Name)
		}
		required = []string{graph.InputValue}
	case graph.KindPrint:
		required = []string{graph.InputTarget}
	case graph.KindCall:
		if n.Name == "" {
			return graph.MissingFieldError(n, "func_name")
		}
		if !pyast.IsDottedName(n.Name) {
			return graph.InvalidNameError(n, "func_name", n.Name)
		}
	case graph.KindIf:
		required = []string{graph.InputTest}
	case graph.KindFor:
		if n.Name == "" {
			return graph.MissingFieldError(n, "target_variable")
		}
		if !pyast.IsIdentifier(n.Name) {
			return graph.InvalidNameError(n, "target_variable", n.Name)
		}
		required = []string{graph.InputIter}
	case graph.KindBinaryOp:
		if n.Operator == "" {
			return graph.MissingFieldError(n, "value")
		}
		_, arith := pyast.ArithOpFor(n.Operator)
		_, cmp := pyast.CmpOpFor(n.Operator)
		if !arith && !cmp {
			return graph.UnsupportedOperatorError(n)
		}
		required = []string{graph.InputLeft, graph.InputRight}
	default:
		return graph.UnknownKindError(n.ID, n.Kind)
	}

	for _, name := range required {
		if _, ok := n.Input(name); !ok {
			return graph.MissingInputError(n, name)
		}
	}
	return nil
}

type compiler struct {
	idx *graph.Index

	// exprs caches the expression built for a node id.
	exprs map[string]pyast.Expr

	// building holds ids whose expression is under construction.
	building map[string]bool

	// compiled holds ids already emitted as statements.
	compiled map[string]bool
}

func (c *compiler) statements(nodes []*graph.Node) ([]pyast.Stmt, error) {
	var out []pyast.Stmt
	for _, n := range c.idx.Roots(nodes) {
		if c.compiled[n.ID] {
			continue
		}
		c.compiled[n.ID] = true

		stmt, err := c.statement(n)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (c *compiler) statement(n *graph.Node) (pyast.Stmt, error) {
	switch n.Kind {
	case graph.KindVariableAssign:
		value, err := c.input(n, graph.InputValue)
		if err != nil {
			return nil, err
		}
		return &pyast.Assign{Target: n.Name, Value: value}, nil

	case graph.KindPrint, graph.KindCall:
		e, err := c.expression(n)
		if err != nil {
			return nil, err
		}
		return &pyast.ExprStmt{Call: e.(*pyast.Call)}, nil

	case graph.KindIf:
		test, err := c.input(n, graph.InputTest)
		if err != nil {
			return nil, err
		}
		body, err := c.statements(n.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := c.statements(n.Orelse)
		if err != nil {
			return nil, err
		}
		return &pyast.If{Test: test, Body: body, Orelse: orelse}, nil

	case graph.KindFor:
		iter, err := c.input(n, graph.InputIter)
		if err != nil {
			return nil, err
		}
		body, err := c.statements(n.Body)
		if err != nil {
			return nil, err
		}
		return &pyast.For{Var: n.Name, Iter: iter, Body: body}, nil
	}
	return nil, graph.UnknownKindError(n.ID, n.Kind)
}

// expression returns the value a link to n reads. Binders yield the name they
// bind; calls, prints and operations are built once and shared.
func (c *compiler) expression(n *graph.Node) (pyast.Expr, error) {
	switch n.Kind {
	case graph.KindVariableAssign, graph.KindFor:
		return &pyast.Name{Ident: n.Name}, nil
	case graph.KindIf:
		return nil, graph.NotAValueError(n)
	}

	if e, ok := c.exprs[n.ID]; ok {
		return e, nil
	}
	if c.building[n.ID] {
		return nil, graph.CycleError(n)
	}
	c.building[n.ID] = true
	defer delete(c.building, n.ID)

	var (
		e   pyast.Expr
		err error
	)
	switch n.Kind {
	case graph.KindPrint:
		var target pyast.Expr
		target, err = c.input(n, graph.InputTarget)
		e = &pyast.Call{Func: "print", Args: []pyast.Expr{target}}
	case graph.KindCall:
		e, err = c.call(n)
	case graph.KindBinaryOp:
		e, err = c.binaryOp(n)
	default:
		err = graph.UnknownKindError(n.ID, n.Kind)
	}
	if err != nil {
		return nil, err
	}

	c.exprs[n.ID] = e
	return e, nil
}

func (c *compiler) call(n *graph.Node) (pyast.Expr, error) {
	inputs := slices.Clone(n.Inputs)
	slices.SortStableFunc(inputs, func(a, b graph.Input) int {
		return compareArgNames(a.Name, b.Name)
	})

	call := &pyast.Call{Func: n.Name}
	for _, in := range inputs {
		arg, err := c.resolve(n, in)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

func (c *compiler) binaryOp(n *graph.Node) (pyast.Expr, error) {
	left, err := c.input(n, graph.InputLeft)
	if err != nil {
		return nil, err
	}
	right, err := c.input(n, graph.InputRight)
	if err != nil {
		return nil, err
	}

	if op, ok := pyast.ArithOpFor(n.Operator); ok {
		return &pyast.BinOp{Op: op, Left: left, Right: right}, nil
	}
	if op, ok := pyast.CmpOpFor(n.Operator); ok {
		return &pyast.Compare{Op: op, Left: left, Right: right}, nil
	}
	return nil, graph.UnsupportedOperatorError(n)
}

func (c *compiler) input(n *graph.Node, name string) (pyast.Expr, error) {
	in, ok := n.Input(name)
	if !ok {
		return nil, graph.MissingInputError(n, name)
	}
	return c.resolve(n, in)
}

// resolve turns an input into an expression. Literal text goes through the
// strict literal parser and is never evaluated.
func (c *compiler) resolve(n *graph.Node, in graph.Input) (pyast.Expr, error) {
	if in.IsLink() {
		target := c.idx.Node(in.Link)
		if target == nil {
			return nil, graph.DanglingLinkError(n, in.Name, in.Link)
		}
		return c.expression(target)
	}

	lit, err := pyast.ParseLiteral(in.Literal)
	if err != nil {
		return nil, graph.InvalidLiteralError(n, in.Name, err)
	}
	return lit, nil
}

// compareArgNames orders argN inputs by N, then any other names
// lexicographically.
func compareArgNames(a, b string) int {
	na, okA := argIndex(a)
	nb, okB := argIndex(b)
	switch {
	case okA && okB:
		return na - nb
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}

func argIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "arg")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
