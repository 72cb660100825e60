package pyast

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var pythonLanguage = tree_sitter.NewLanguage(tree_sitter_python.Language())

func parseTree(src []byte) (*tree_sitter.Tree, error) {
	p := tree_sitter.NewParser()
	defer p.Close()

	if err := p.SetLanguage(pythonLanguage); err != nil {
		return nil, fmt.Errorf("loading python grammar: %w", err)
	}

	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, ErrSyntax
	}
	return tree, nil
}

// Parse parses Python source into a Module. Text that is not valid Python
// fails with ErrSyntax; valid Python outside the supported subset fails with
// an *UnsupportedError.
func Parse(src string) (*Module, error) {
	if !utf8.ValidString(src) {
		return nil, ErrSyntax
	}
	data := []byte(src)
	tree, err := parseTree(data)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrSyntax
	}

	p := &parser{src: data}
	body, err := p.statements(root)
	if err != nil {
		return nil, err
	}
	return &Module{Body: body}, nil
}

// parser lowers a tree-sitter CST into the AST.
type parser struct {
	src    []byte
	nextID ExprID
}

func (p *parser) text(n *tree_sitter.Node) string {
	return n.Utf8Text(p.src)
}

func (p *parser) meta(n *tree_sitter.Node) Meta {
	p.nextID++
	return Meta{ID: p.nextID, Line: line(n)}
}

func line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// namedChildren returns the named children of n, comments excluded.
func namedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	var out []*tree_sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Kind() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// hasToken reports whether n has an anonymous child with the given text.
func hasToken(n *tree_sitter.Node, token string) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Kind() == token {
			return true
		}
	}
	return false
}

func unparen(n *tree_sitter.Node) *tree_sitter.Node {
	for n != nil && n.Kind() == "parenthesized_expression" {
		kids := namedChildren(n)
		if len(kids) != 1 {
			return n
		}
		n = kids[0]
	}
	return n
}

func readable(kind string) string {
	return strings.ReplaceAll(kind, "_", " ")
}

func (p *parser) statements(block *tree_sitter.Node) ([]Stmt, error) {
	var out []Stmt
	for _, n := range namedChildren(block) {
		var (
			stmt Stmt
			err  error
		)
		switch n.Kind() {
		case "pass_statement":
			continue
		case "expression_statement":
			stmt, err = p.expressionStatement(n)
		case "if_statement":
			stmt, err = p.ifStatement(n)
		case "for_statement":
			stmt, err = p.forStatement(n)
		case "print_statement":
			stmt, err = p.printStatement(n)
		case "exec_statement":
			err = ErrSyntax
		case "while_statement":
			err = Unsupported(line(n), "while loops are not supported")
		case "function_definition", "decorated_definition", "class_definition":
			err = Unsupported(line(n), "definitions are not supported")
		default:
			err = Unsupported(line(n), "%s is not supported", readable(n.Kind()))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (p *parser) expressionStatement(n *tree_sitter.Node) (Stmt, error) {
	kids := namedChildren(n)
	if len(kids) != 1 || hasToken(n, ",") {
		return nil, Unsupported(line(n), "tuple expressions are not supported as statements")
	}

	e := unparen(kids[0])
	switch e.Kind() {
	case "assignment":
		return p.assignment(e)
	case "augmented_assignment":
		return nil, Unsupported(line(e), "augmented assignment is not supported")
	case "call":
		call, err := p.call(e)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Meta: Meta{Line: line(n)}, Call: call}, nil
	}
	return nil, Unsupported(line(n), "only function calls can be used as expression statements")
}

func (p *parser) assignment(n *tree_sitter.Node) (Stmt, error) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	if n.ChildByFieldName("type") != nil || right == nil {
		return nil, Unsupported(line(n), "annotated assignments are not supported")
	}
	if left == nil || left.Kind() != "identifier" {
		return nil, Unsupported(line(n), "assignment to multiple or non-simple targets is not supported")
	}
	switch right.Kind() {
	case "assignment", "augmented_assignment":
		return nil, Unsupported(line(n), "assignment to multiple or non-simple targets is not supported")
	}

	value, err := p.expr(right)
	if err != nil {
		return nil, err
	}
	return &Assign{Meta: Meta{Line: line(n)}, Target: p.text(left), Value: value}, nil
}

func (p *parser) ifStatement(n *tree_sitter.Node) (Stmt, error) {
	test, err := p.expr(n.ChildByFieldName("condition"))
	if err != nil {
		return nil, err
	}
	body, err := p.statements(n.ChildByFieldName("consequence"))
	if err != nil {
		return nil, err
	}

	root := &If{Meta: Meta{Line: line(n)}, Test: test, Body: body}
	cur := root
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "elif_clause":
			test, err := p.expr(c.ChildByFieldName("condition"))
			if err != nil {
				return nil, err
			}
			body, err := p.statements(c.ChildByFieldName("consequence"))
			if err != nil {
				return nil, err
			}
			next := &If{Meta: Meta{Line: line(c)}, Test: test, Body: body}
			cur.Orelse = []Stmt{next}
			cur = next
		case "else_clause":
			orelse, err := p.statements(c.ChildByFieldName("body"))
			if err != nil {
				return nil, err
			}
			cur.Orelse = orelse
		}
	}
	return root, nil
}

func (p *parser) forStatement(n *tree_sitter.Node) (Stmt, error) {
	if first := n.Child(0); first != nil && first.Kind() == "async" {
		return nil, Unsupported(line(n), "async for loops are not supported")
	}
	if n.ChildByFieldName("alternative") != nil {
		return nil, Unsupported(line(n), "for/else clauses are not supported")
	}

	target := n.ChildByFieldName("left")
	if target == nil || target.Kind() != "identifier" {
		return nil, Unsupported(line(n), "only simple names are supported as loop targets")
	}

	iter, err := p.expr(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	body, err := p.statements(n.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	return &For{Meta: Meta{Line: line(n)}, Var: p.text(target), Iter: iter, Body: body}, nil
}

// printStatement accepts the Python 2 print statement form the grammar may
// produce for a parenthesised print call. Any other print statement is not
// Python 3.
func (p *parser) printStatement(n *tree_sitter.Node) (Stmt, error) {
	kids := namedChildren(n)
	if len(kids) != 1 {
		return nil, ErrSyntax
	}

	var args []*tree_sitter.Node
	switch kids[0].Kind() {
	case "parenthesized_expression":
		args = kids
	case "tuple":
		args = namedChildren(kids[0])
	default:
		return nil, ErrSyntax
	}

	call := &Call{Meta: p.meta(n), Func: "print"}
	for _, a := range args {
		e, err := p.expr(a)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, e)
	}
	return &ExprStmt{Meta: Meta{Line: line(n)}, Call: call}, nil
}

func (p *parser) expr(n *tree_sitter.Node) (Expr, error) {
	if n == nil {
		return nil, ErrSyntax
	}

	switch n.Kind() {
	case "parenthesized_expression":
		kids := namedChildren(n)
		if len(kids) != 1 {
			return nil, Unsupported(line(n), "%s is not supported", readable(n.Kind()))
		}
		return p.expr(kids[0])
	case "identifier":
		return &Name{Meta: p.meta(n), Ident: p.text(n)}, nil
	case "binary_operator":
		return p.binaryOperator(n)
	case "comparison_operator":
		return p.comparison(n)
	case "call":
		return p.call(n)
	}

	lit, ok, err := p.literal(n)
	if err != nil {
		return nil, err
	}
	if ok {
		lit.Meta = p.meta(n)
		return lit, nil
	}

	switch n.Kind() {
	case "list", "tuple", "set", "dictionary", "expression_list":
		return nil, Unsupported(line(n), "collection literals may only contain literal values")
	case "unary_operator":
		return nil, Unsupported(line(n), "unary operators are only supported on numeric literals")
	case "attribute":
		return nil, Unsupported(line(n), "attribute access is only supported as a call target")
	case "boolean_operator", "not_operator":
		return nil, Unsupported(line(n), "boolean operators are not supported")
	case "subscript", "slice":
		return nil, Unsupported(line(n), "subscripts are not supported")
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		return nil, Unsupported(line(n), "comprehensions are not supported")
	case "lambda":
		return nil, Unsupported(line(n), "lambda expressions are not supported")
	case "conditional_expression":
		return nil, Unsupported(line(n), "conditional expressions are not supported")
	case "keyword_argument":
		return nil, Unsupported(line(n), "keyword arguments are not yet supported")
	}
	return nil, Unsupported(line(n), "%s expressions are not supported", readable(n.Kind()))
}

func (p *parser) binaryOperator(n *tree_sitter.Node) (Expr, error) {
	opNode := n.ChildByFieldName("operator")
	if opNode == nil {
		return nil, ErrSyntax
	}
	symbol := p.text(opNode)
	op, ok := ArithOpFor(symbol)
	if !ok {
		return nil, Unsupported(line(n), "operator '%s' is not supported", symbol)
	}

	meta := p.meta(n)
	left, err := p.expr(n.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	right, err := p.expr(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	return &BinOp{Meta: meta, Op: op, Left: left, Right: right}, nil
}

func (p *parser) comparison(n *tree_sitter.Node) (Expr, error) {
	var (
		operands []*tree_sitter.Node
		symbols  []string
	)
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch {
		case c == nil || c.Kind() == "comment":
		case c.IsNamed():
			operands = append(operands, c)
		default:
			symbols = append(symbols, p.text(c))
		}
	}
	if len(operands) != 2 {
		return nil, Unsupported(line(n), "chained comparisons are not supported")
	}

	symbol := strings.Join(symbols, " ")
	if symbol == "<>" {
		return nil, ErrSyntax
	}
	op, ok := CmpOpFor(symbol)
	if !ok {
		return nil, Unsupported(line(n), "comparison operator '%s' is not supported", symbol)
	}

	meta := p.meta(n)
	left, err := p.expr(operands[0])
	if err != nil {
		return nil, err
	}
	right, err := p.expr(operands[1])
	if err != nil {
		return nil, err
	}
	return &Compare{Meta: meta, Op: op, Left: left, Right: right}, nil
}

func (p *parser) call(n *tree_sitter.Node) (*Call, error) {
	name, ok := p.dottedName(n.ChildByFieldName("function"))
	if !ok {
		return nil, Unsupported(line(n), "only named functions can be called")
	}

	args := n.ChildByFieldName("arguments")
	if args == nil {
		return nil, ErrSyntax
	}
	if args.Kind() == "generator_expression" {
		return nil, Unsupported(line(n), "comprehensions are not supported")
	}

	call := &Call{Meta: p.meta(n), Func: name}
	for _, a := range namedChildren(args) {
		switch a.Kind() {
		case "keyword_argument":
			return nil, Unsupported(line(a), "keyword arguments are not yet supported")
		case "list_splat", "dictionary_splat", "parenthesized_list_splat":
			return nil, Unsupported(line(a), "starred arguments are not supported")
		}
		e, err := p.expr(a)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, e)
	}
	return call, nil
}

func (p *parser) dottedName(n *tree_sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind() {
	case "identifier":
		return p.text(n), true
	case "attribute":
		object, ok := p.dottedName(n.ChildByFieldName("object"))
		attr := n.ChildByFieldName("attribute")
		if !ok || attr == nil {
			return "", false
		}
		return object + "." + p.text(attr), true
	}
	return "", false
}
