package pyast

import "strings"

const indentUnit = "    "

// Unparse renders a module as Python source. Statements are separated by
// newlines; there is no trailing newline. Empty blocks are rendered as pass.
func Unparse(m *Module) string {
	var lines []string
	for _, s := range m.Body {
		lines = appendStmt(lines, s, "")
	}
	return strings.Join(lines, "\n")
}

// UnparseExpr renders a single expression.
func UnparseExpr(e Expr) string {
	switch e := e.(type) {
	case *Name:
		return e.Ident
	case *Literal:
		return e.Value
	case *Call:
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, UnparseExpr(a))
		}
		return e.Func + "(" + strings.Join(args, ", ") + ")"
	case *BinOp:
		prec := e.Op.precedence()
		return operand(e.Left, prec, false) + " " + e.Op.Symbol() + " " + operand(e.Right, prec, true)
	case *Compare:
		return operand(e.Left, precCompare, true) + " " + e.Op.Symbol() + " " + operand(e.Right, precCompare, true)
	}
	return ""
}

// operand parenthesises e when it binds looser than its parent. Right
// operands of left-associative operators also need parentheses at equal
// strength; comparisons never chain.
func operand(e Expr, parent int, right bool) string {
	s := UnparseExpr(e)
	prec := precedence(e)
	if prec < parent || (right && prec == parent) {
		return "(" + s + ")"
	}
	return s
}

func appendStmt(lines []string, s Stmt, indent string) []string {
	switch s := s.(type) {
	case *Assign:
		return append(lines, indent+s.Target+" = "+UnparseExpr(s.Value))
	case *ExprStmt:
		return append(lines, indent+UnparseExpr(s.Call))
	case *If:
		return appendIf(lines, s, indent, "if")
	case *For:
		lines = append(lines, indent+"for "+s.Var+" in "+UnparseExpr(s.Iter)+":")
		return appendBlock(lines, s.Body, indent+indentUnit)
	}
	return lines
}

func appendIf(lines []string, s *If, indent, keyword string) []string {
	lines = append(lines, indent+keyword+" "+UnparseExpr(s.Test)+":")
	lines = appendBlock(lines, s.Body, indent+indentUnit)

	if len(s.Orelse) == 0 {
		return lines
	}
	if elif, ok := s.Orelse[0].(*If); ok && len(s.Orelse) == 1 {
		return appendIf(lines, elif, indent, "elif")
	}
	lines = append(lines, indent+"else:")
	return appendBlock(lines, s.Orelse, indent+indentUnit)
}

func appendBlock(lines []string, body []Stmt, indent string) []string {
	if len(body) == 0 {
		return append(lines, indent+"pass")
	}
	for _, s := range body {
		lines = appendStmt(lines, s, indent)
	}
	return lines
}
