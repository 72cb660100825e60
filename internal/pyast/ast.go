// Package pyast is the Python subset understood by Plexus: a small AST,
// the operator tables, strict literal handling, a tree-sitter based parser and
// a printer that turns the AST back into source text.
package pyast

// ExprID identifies an expression within one parse. IDs are allocated from a
// per-parse arena starting at 1; expressions built by hand carry 0.
type ExprID int

// Meta carries parse metadata shared by every AST node.
type Meta struct {
	ID   ExprID
	Line int
}

// Module is a parsed program.
type Module struct {
	Body []Stmt
}

// Stmt is a statement. The set of statements is closed.
type Stmt interface {
	stmtNode()
	Pos() int
}

// Expr is an expression. The set of expressions is closed.
type Expr interface {
	exprNode()
	ExprID() ExprID
	Pos() int
}

// Assign binds Value to the variable Target.
type Assign struct {
	Meta
	Target string
	Value  Expr
}

// ExprStmt evaluates a call for its side effects.
type ExprStmt struct {
	Meta
	Call *Call
}

// If is a conditional. An elif chain is an If nested as the only statement of
// Orelse.
type If struct {
	Meta
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// For iterates Iter, binding each item to Var.
type For struct {
	Meta
	Var  string
	Iter Expr
	Body []Stmt
}

// Name reads a variable.
type Name struct {
	Meta
	Ident string
}

// Literal is a constant or a collection of constants.
type Literal struct {
	Meta

	// Value is the canonical source form.
	Value string

	// Source is the literal as written. It equals Value for literals built
	// from canonical text.
	Source string

	// Collection is set for list, tuple, set and dict literals.
	Collection bool
}

// BinOp is an arithmetic operation.
type BinOp struct {
	Meta
	Op    ArithOp
	Left  Expr
	Right Expr
}

// Compare is a single comparison.
type Compare struct {
	Meta
	Op    CmpOp
	Left  Expr
	Right Expr
}

// Call invokes a named function with positional arguments. Func may be a
// dotted name such as "math.sqrt".
type Call struct {
	Meta
	Func string
	Args []Expr
}

func (m Meta) Pos() int { return m.Line }
func (m Meta) ExprID() ExprID { return m.ID }
func (*Assign) stmtNode() {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode() {}
func (*For) stmtNode() {}
func (*Name) exprNode() {}
func (*Literal) exprNode() {}
func (*BinOp) exprNode() {}
func (*Compare) exprNode() {}
func (*Call) exprNode() {}
