package pyast

import (
	"strconv"
	"strings"
)

// Dump renders the structure of a module, ignoring positions, expression ids
// and the original spelling of literals. Two modules with equal dumps are
// structurally identical.
func Dump(m *Module) string {
	var b strings.Builder
	b.WriteString("Module(")
	dumpStmts(&b, m.Body)
	b.WriteString(")")
	return b.String()
}

func dumpStmts(b *strings.Builder, stmts []Stmt) {
	b.WriteString("[")
	for i, s := range stmts {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpStmt(b, s)
	}
	b.WriteString("]")
}

func dumpStmt(b *strings.Builder, s Stmt) {
	switch s := s.(type) {
	case *Assign:
		b.WriteString("Assign(" + strconv.Quote(s.Target) + ", ")
		dumpExpr(b, s.Value)
	case *ExprStmt:
		b.WriteString("Expr(")
		dumpExpr(b, s.Call)
	case *If:
		b.WriteString("If(")
		dumpExpr(b, s.Test)
		b.WriteString(", ")
		dumpStmts(b, s.Body)
		b.WriteString(", ")
		dumpStmts(b, s.Orelse)
	case *For:
		b.WriteString("For(" + strconv.Quote(s.Var) + ", ")
		dumpExpr(b, s.Iter)
		b.WriteString(", ")
		dumpStmts(b, s.Body)
	}
	b.WriteString(")")
}

func dumpExpr(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case *Name:
		b.WriteString("Name(" + strconv.Quote(e.Ident))
	case *Literal:
		b.WriteString("Literal(" + strconv.Quote(e.Value))
	case *BinOp:
		b.WriteString("BinOp(" + e.Op.String() + ", ")
		dumpExpr(b, e.Left)
		b.WriteString(", ")
		dumpExpr(b, e.Right)
	case *Compare:
		b.WriteString("Compare(" + e.Op.String() + ", ")
		dumpExpr(b, e.Left)
		b.WriteString(", ")
		dumpExpr(b, e.Right)
	case *Call:
		b.WriteString("Call(" + strconv.Quote(e.Func) + ", [")
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			dumpExpr(b, a)
		}
		b.WriteString("]")
	default:
		b.WriteString("?(")
	}
	b.WriteString(")")
}
