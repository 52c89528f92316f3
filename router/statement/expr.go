package statement

// Expr is a bound predicate or value expression.
type Expr interface {
	iExpr()
}

type AndExpr struct {
	Left, Right Expr
}

type OrExpr struct {
	Left, Right Expr
}

type NotExpr struct {
	Expr Expr
}

// Comparison operators.
const (
	OpEq     = "="
	OpNe     = "!="
	OpLt     = "<"
	OpLe     = "<="
	OpGt     = ">"
	OpGe     = ">="
	OpNullEq = "<=>"
	OpLike   = "like"
	OpOther  = "other"
)

type CompareExpr struct {
	Op          string
	Left, Right Expr
}

type InExpr struct {
	Left   Expr
	Values []Expr
	Not    bool
}

type BetweenExpr struct {
	Left     Expr
	From, To Expr
	Not      bool
}

// ColumnRef is a column reference. Table is the resolved logical table name, empty when unqualified.
type ColumnRef struct {
	Table string
	Name  string
}

// Literal holds int64, uint64, float64, string, bool or nil.
type Literal struct {
	Value any
}

// Param is a positional parameter marker, zero based.
type Param struct {
	Index int
}

// Opaque stands for anything routing cannot reason about: functions, subqueries, arithmetic.
type Opaque struct {
	Text string
}

func (*AndExpr) iExpr()     {}
func (*OrExpr) iExpr()      {}
func (*NotExpr) iExpr()     {}
func (*CompareExpr) iExpr() {}
func (*InExpr) iExpr()      {}
func (*BetweenExpr) iExpr() {}
func (*ColumnRef) iExpr()   {}
func (*Literal) iExpr()     {}
func (*Param) iExpr()       {}
func (*Opaque) iExpr()      {}

// And joins two predicates, either of which may be nil.
func And(left, right Expr) Expr {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return &AndExpr{Left: left, Right: right}
}
