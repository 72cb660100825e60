package pyast

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	Add ArithOp = iota + 1
	Sub
	Mul
	Div
)

// CmpOp is a comparison operator.
type CmpOp int

const (
	Eq CmpOp = iota + 1
	NotEq
	Lt
	LtE
	Gt
	GtE
)

var (
	arithSymbols = map[ArithOp]string{
		Add: "+",
		Sub: "-",
		Mul: "*",
		Div: "/",
	}
	arithBySymbol = map[string]ArithOp{
		"+": Add,
		"-": Sub,
		"*": Mul,
		"/": Div,
	}

	cmpSymbols = map[CmpOp]string{
		Eq:    "==",
		NotEq: "!=",
		Lt:    "<",
		LtE:   "<=",
		Gt:    ">",
		GtE:   ">=",
	}
	cmpBySymbol = map[string]CmpOp{
		"==": Eq,
		"!=": NotEq,
		"<":  Lt,
		"<=": LtE,
		">":  Gt,
		">=": GtE,
	}
)

// ArithOps lists the arithmetic operators.
func ArithOps() []ArithOp { return []ArithOp{Add, Sub, Mul, Div} }

// CmpOps lists the comparison operators.
func CmpOps() []CmpOp { return []CmpOp{Eq, NotEq, Lt, LtE, Gt, GtE} }

// ArithOpFor looks up an arithmetic operator by symbol.
func ArithOpFor(symbol string) (ArithOp, bool) {
	op, ok := arithBySymbol[symbol]
	return op, ok
}

// CmpOpFor looks up a comparison operator by symbol.
func CmpOpFor(symbol string) (CmpOp, bool) {
	op, ok := cmpBySymbol[symbol]
	return op, ok
}

// Symbol returns the source symbol of the operator.
func (o ArithOp) Symbol() string { return arithSymbols[o] }

// Symbol returns the source symbol of the operator.
func (o CmpOp) Symbol() string { return cmpSymbols[o] }

func (o ArithOp) String() string {
	switch o {
	case Add:
		return "Add"
	case Sub:
		return "Sub"
	case Mul:
		return "Mult"
	case Div:
		return "Div"
	}
	return "ArithOp(?)"
}

func (o CmpOp) String() string {
	switch o {
	case Eq:
		return "Eq"
	case NotEq:
		return "NotEq"
	case Lt:
		return "Lt"
	case LtE:
		return "LtE"
	case Gt:
		return "Gt"
	case GtE:
		return "GtE"
	}
	return "CmpOp(?)"
}

// Binding strength used by the printer. Higher binds tighter.
const (
	precCompare = iota + 1
	precSum
	precProduct
	precAtom
)

func (o ArithOp) precedence() int {
	if o == Mul || o == Div {
		return precProduct
	}
	return precSum
}

func precedence(e Expr) int {
	switch e := e.(type) {
	case *Compare:
		return precCompare
	case *BinOp:
		return e.Op.precedence()
	}
	return precAtom
}
