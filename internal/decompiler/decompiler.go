// Package decompiler turns Python source into a Graph IR.
//
// Every statement becomes a node in the statement list it appears in. The
// expressions a statement consumes become nodes placed just before it, linked
// through named inputs. Variable reads link to the node that last bound the
// variable.
package decompiler

import (
	"strconv"

	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/pyast"
)

// Decompile parses src and translates it into a graph. Source that is not
// valid Python fails with pyast.ErrSyntax; constructs outside the supported
// subset fail with a *pyast.UnsupportedError.
func Decompile(src string) (*graph.Graph, error) {
	m, err := pyast.Parse(src)
	if err != nil {
		return nil, err
	}
	return FromModule(m)
}

// FromModule translates a parsed module into a graph.
func FromModule(m *pyast.Module) (*graph.Graph, error) {
	d := &decompiler{
		providers: make(map[string]string),
		exprs:     make(map[pyast.ExprID]string),
	}

	nodes, err := d.statements(m.Body)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []*graph.Node{}
	}
	return &graph.Graph{Nodes: nodes}, nil
}

type decompiler struct {
	// providers maps a variable to the node that currently binds it.
	providers map[string]string

	// exprs maps an expression to the node built for it.
	exprs map[pyast.ExprID]string

	counter int

	// out is the statement list nodes are appended to.
	out *[]*graph.Node
}

func (d *decompiler) nextID(prefix string) string {
	d.counter++
	return prefix + "-" + strconv.Itoa(d.counter)
}

func (d *decompiler) emit(n *graph.Node) {
	*d.out = append(*d.out, n)
}

func (d *decompiler) statements(stmts []pyast.Stmt) ([]*graph.Node, error) {
	var list []*graph.Node
	saved := d.out
	d.out = &list
	defer func() { d.out = saved }()

	for _, s := range stmts {
		if err := d.statement(s); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (d *decompiler) statement(s pyast.Stmt) error {
	switch s := s.(type) {
	case *pyast.Assign:
		id := d.nextID("assign")
		value, err := d.input(graph.InputValue, s.Value)
		if err != nil {
			return err
		}
		d.emit(&graph.Node{
			ID:     id,
			Kind:   graph.KindVariableAssign,
			Name:   s.Target,
			Inputs: []graph.Input{value},
		})
		d.providers[s.Target] = id
		return nil

	case *pyast.ExprStmt:
		_, err := d.call(s.Call)
		return err

	case *pyast.If:
		id := d.nextID("if")
		test, err := d.input(graph.InputTest, s.Test)
		if err != nil {
			return err
		}
		// Branches share the provider map: a binding made in either branch
		// is what later code reads.
		body, err := d.statements(s.Body)
		if err != nil {
			return err
		}
		orelse, err := d.statements(s.Orelse)
		if err != nil {
			return err
		}
		d.emit(&graph.Node{
			ID:     id,
			Kind:   graph.KindIf,
			Inputs: []graph.Input{test},
			Body:   body,
			Orelse: orelse,
		})
		return nil

	case *pyast.For:
		id := d.nextID("for")
		iter, err := d.input(graph.InputIter, s.Iter)
		if err != nil {
			return err
		}

		prev, bound := d.providers[s.Var]
		d.providers[s.Var] = id
		body, err := d.statements(s.Body)
		if bound {
			d.providers[s.Var] = prev
		} else {
			delete(d.providers, s.Var)
		}
		if err != nil {
			return err
		}

		d.emit(&graph.Node{
			ID:     id,
			Kind:   graph.KindFor,
			Name:   s.Var,
			Inputs: []graph.Input{iter},
			Body:   body,
		})
		return nil
	}
	return pyast.Unsupported(s.Pos(), "unsupported statement %T", s)
}

// input resolves e into the named input of a node under construction.
func (d *decompiler) input(name string, e pyast.Expr) (graph.Input, error) {
	switch e := e.(type) {
	case *pyast.Literal:
		if e.Collection {
			return graph.LiteralInput(name, e.Source), nil
		}
		return graph.LiteralInput(name, e.Value), nil

	case *pyast.Name:
		id, ok := d.providers[e.Ident]
		if !ok {
			return graph.Input{}, pyast.Unsupported(e.Pos(), "variable '%s' used before assignment", e.Ident)
		}
		return graph.LinkInput(name, id), nil
	}

	id, err := d.expression(e)
	if err != nil {
		return graph.Input{}, err
	}
	return graph.LinkInput(name, id), nil
}

// expression builds the node for a value-producing expression and returns its
// id. Each parsed expression yields at most one node.
func (d *decompiler) expression(e pyast.Expr) (string, error) {
	if id, ok := d.exprs[e.ExprID()]; ok && e.ExprID() != 0 {
		return id, nil
	}

	switch e := e.(type) {
	case *pyast.Call:
		return d.call(e)
	case *pyast.BinOp:
		return d.operation(e, e.Op.Symbol(), e.Left, e.Right)
	case *pyast.Compare:
		return d.operation(e, e.Op.Symbol(), e.Left, e.Right)
	}
	return "", pyast.Unsupported(e.Pos(), "unsupported expression %T", e)
}

func (d *decompiler) operation(e pyast.Expr, symbol string, l, r pyast.Expr) (string, error) {
	id := d.nextID("op")
	d.remember(e, id)

	left, err := d.input(graph.InputLeft, l)
	if err != nil {
		return "", err
	}
	right, err := d.input(graph.InputRight, r)
	if err != nil {
		return "", err
	}

	d.emit(&graph.Node{
		ID:       id,
		Kind:     graph.KindBinaryOp,
		Operator: symbol,
		Inputs:   []graph.Input{left, right},
	})
	return id, nil
}

// call builds a Print node for print with exactly one argument and a Call
// node for anything else.
func (d *decompiler) call(c *pyast.Call) (string, error) {
	if id, ok := d.exprs[c.ExprID()]; ok && c.ExprID() != 0 {
		return id, nil
	}

	if c.Func == "print" && len(c.Args) == 1 {
		id := d.nextID("print")
		d.remember(c, id)
		target, err := d.input(graph.InputTarget, c.Args[0])
		if err != nil {
			return "", err
		}
		d.emit(&graph.Node{ID: id, Kind: graph.KindPrint, Inputs: []graph.Input{target}})
		return id, nil
	}

	id := d.nextID("call")
	d.remember(c, id)
	inputs := make([]graph.Input, 0, len(c.Args))
	for i, a := range c.Args {
		in, err := d.input(graph.ArgInput(i), a)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, in)
	}
	d.emit(&graph.Node{ID: id, Kind: graph.KindCall, Name: c.Func, Inputs: inputs})
	return id, nil
}

func (d *decompiler) remember(e pyast.Expr, id string) {
	if e.ExprID() != 0 {
		d.exprs[e.ExprID()] = id
	}
}
