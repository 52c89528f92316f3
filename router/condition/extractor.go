package condition

import (
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/algorithm"
	"github.com/pg-sharding/shroute/router/rerrors"
	"github.com/pg-sharding/shroute/router/statement"
)

// maxAlternatives bounds the disjunctive normal form of a predicate.
// Larger predicates are routed as if their OR parts were absent.
const maxAlternatives = 256

// ColumnFilter reports whether a column of a logical table takes part in routing.
type ColumnFilter func(table, column string) bool

// BindingGroupFunc returns the binding group of a table, nil when it has none.
type BindingGroupFunc func(table string) []string

// Extractor reads sharding values from bound statements.
type Extractor struct {
	filter  ColumnFilter
	binding BindingGroupFunc
}

func NewExtractor(filter ColumnFilter) *Extractor {
	return &Extractor{filter: filter}
}

// WithBinding makes tables of one binding group count as one table when deciding
// whether a restriction may route it.
func (e *Extractor) WithBinding(binding BindingGroupFunc) *Extractor {
	return &Extractor{filter: e.filter, binding: binding}
}

func (e *Extractor) groupKey(table string) string {
	if e.binding != nil {
		if g := e.binding(table); len(g) > 0 {
			return g[0]
		}
	}
	return table
}

// extraction is the state of one Extract call.
type extraction struct {
	*Extractor
	stmt   *statement.Statement
	params []any
	// shared holds group keys of tables used on several query levels. A restriction
	// seen on one level says nothing about the rows read on another.
	shared map[string]struct{}
}

// atom is a single column restriction taken from a predicate.
type atom struct {
	table  string
	column string
	values algorithm.ColumnValues
}

// Extract returns the sharding conditions of stmt with parameter markers
// resolved against params.
func (e *Extractor) Extract(stmt *statement.Statement, params []any) (*Result, error) {
	if stmt.Type == statement.TypeInsert && stmt.Insert != nil && len(stmt.Insert.Rows) > 0 {
		return e.extractInsert(stmt, params)
	}
	if stmt.Where == nil {
		return Unconditional(), nil
	}

	x := &extraction{
		Extractor: e,
		stmt:      stmt,
		params:    params,
		shared:    stmt.MultiLevelTables(e.groupKey),
	}
	groups, err := x.dnf(stmt.Where)
	if err == rerrors.ErrComplexQuery {
		shlog.Zero.Debug().Err(err).Msg("predicate has too many alternatives, routing its conjunctive part only")
		groups, err = x.dnf(conjunctive(stmt.Where))
	}
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, g := range groups {
		c := newCondition(-1)
		possible := true
		for _, a := range g {
			if !c.Restrict(a.table, a.column, a.values) {
				possible = false
				break
			}
		}
		if possible {
			res.Conditions = append(res.Conditions, c)
		}
	}
	if len(res.Conditions) == 0 {
		res.AlwaysFalse = true
	}

	shlog.Zero.Debug().
		Int("conditions", len(res.Conditions)).
		Bool("always-false", res.AlwaysFalse).
		Msg("extracted sharding conditions")
	return res, nil
}

func (e *Extractor) extractInsert(stmt *statement.Statement, params []any) (*Result, error) {
	table := ""
	if len(stmt.Tables) > 0 {
		table = stmt.Tables[0].Name
	}

	res := &Result{}
	for i, row := range stmt.Insert.Rows {
		c := newCondition(i)
		for j, col := range stmt.Insert.Columns {
			if j >= len(row) || !e.filter(table, col) {
				continue
			}
			v, ok, err := resolve(row[j], params)
			if err != nil {
				return nil, err
			}
			if !ok || v == nil {
				continue
			}
			c.Restrict(table, col, algorithm.ColumnValues{Exact: []any{v}})
		}
		res.Conditions = append(res.Conditions, c)
	}
	return res, nil
}

// dnf flattens a predicate into alternatives of AND-connected restrictions.
// A nil group slice entry is an alternative without restrictions.
func (x *extraction) dnf(expr statement.Expr) ([][]atom, error) {
	switch node := expr.(type) {
	case *statement.AndExpr:
		left, err := x.dnf(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := x.dnf(node.Right)
		if err != nil {
			return nil, err
		}
		if len(left)*len(right) > maxAlternatives {
			return nil, rerrors.ErrComplexQuery
		}
		ret := make([][]atom, 0, len(left)*len(right))
		for _, l := range left {
			for _, r := range right {
				g := make([]atom, 0, len(l)+len(r))
				g = append(g, l...)
				g = append(g, r...)
				ret = append(ret, g)
			}
		}
		return ret, nil
	case *statement.OrExpr:
		left, err := x.dnf(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := x.dnf(node.Right)
		if err != nil {
			return nil, err
		}
		if len(left)+len(right) > maxAlternatives {
			return nil, rerrors.ErrComplexQuery
		}
		return append(left, right...), nil
	}

	atoms, err := x.atoms(expr)
	if err != nil {
		return nil, err
	}
	return [][]atom{atoms}, nil
}

// atoms reads the restrictions of a leaf predicate. Predicates routing cannot use yield none.
func (x *extraction) atoms(expr statement.Expr) ([]atom, error) {
	switch node := expr.(type) {
	case *statement.CompareExpr:
		col, val, op, ok := orient(node)
		if !ok {
			return nil, nil
		}
		v, ok, err := resolve(val, x.params)
		if err != nil || !ok || v == nil {
			return nil, err
		}
		var cv algorithm.ColumnValues
		switch op {
		case statement.OpEq, statement.OpNullEq:
			cv = algorithm.ColumnValues{Exact: []any{v}}
		case statement.OpLt:
			r := algorithm.LessThan(v)
			cv = algorithm.ColumnValues{Range: &r}
		case statement.OpLe:
			r := algorithm.AtMost(v)
			cv = algorithm.ColumnValues{Range: &r}
		case statement.OpGt:
			r := algorithm.GreaterThan(v)
			cv = algorithm.ColumnValues{Range: &r}
		case statement.OpGe:
			r := algorithm.AtLeast(v)
			cv = algorithm.ColumnValues{Range: &r}
		default:
			return nil, nil
		}
		return x.attribute(col, cv), nil

	case *statement.InExpr:
		col, ok := node.Left.(*statement.ColumnRef)
		if !ok || node.Not {
			return nil, nil
		}
		vals := make([]any, 0, len(node.Values))
		for _, item := range node.Values {
			v, ok, err := resolve(item, x.params)
			if err != nil {
				return nil, err
			}
			if !ok {
				// a non-literal alternative may match anything
				return nil, nil
			}
			if v != nil {
				vals = append(vals, v)
			}
		}
		return x.attribute(col, algorithm.ColumnValues{Exact: vals}), nil

	case *statement.BetweenExpr:
		col, ok := node.Left.(*statement.ColumnRef)
		if !ok || node.Not {
			return nil, nil
		}
		lo, okLo, err := resolve(node.From, x.params)
		if err != nil {
			return nil, err
		}
		hi, okHi, err := resolve(node.To, x.params)
		if err != nil {
			return nil, err
		}
		if !okLo || !okHi || lo == nil || hi == nil {
			return nil, nil
		}
		r := algorithm.Closed(lo, hi)
		return x.attribute(col, algorithm.ColumnValues{Range: &r}), nil
	}
	return nil, nil
}

// attribute assigns a restriction to the tables the column may belong to.
// Unqualified columns apply to every statement table routing by that column.
func (x *extraction) attribute(col *statement.ColumnRef, cv algorithm.ColumnValues) []atom {
	if col.Table != "" {
		if !x.routes(col.Table, col.Name) {
			return nil
		}
		return []atom{{table: col.Table, column: col.Name, values: cv}}
	}
	var ret []atom
	for _, name := range x.stmt.TableNames() {
		if x.routes(name, col.Name) {
			ret = append(ret, atom{table: name, column: col.Name, values: cv})
		}
	}
	return ret
}

func (x *extraction) routes(table, column string) bool {
	if _, ok := x.shared[x.groupKey(table)]; ok {
		return false
	}
	return x.filter(table, column)
}

// orient puts the column on the left side of a comparison, flipping the operator if needed.
func orient(node *statement.CompareExpr) (*statement.ColumnRef, statement.Expr, string, bool) {
	if col, ok := node.Left.(*statement.ColumnRef); ok {
		if _, isCol := node.Right.(*statement.ColumnRef); isCol {
			return nil, nil, "", false
		}
		return col, node.Right, node.Op, true
	}
	col, ok := node.Right.(*statement.ColumnRef)
	if !ok {
		return nil, nil, "", false
	}
	op := node.Op
	switch op {
	case statement.OpLt:
		op = statement.OpGt
	case statement.OpLe:
		op = statement.OpGe
	case statement.OpGt:
		op = statement.OpLt
	case statement.OpGe:
		op = statement.OpLe
	}
	return col, node.Left, op, true
}

// resolve returns the value of a literal or bound parameter. ok is false for anything else.
func resolve(expr statement.Expr, params []any) (any, bool, error) {
	switch node := expr.(type) {
	case *statement.Literal:
		return node.Value, true, nil
	case *statement.Param:
		if node.Index < 0 || node.Index >= len(params) {
			return nil, false, sherror.Newf(sherror.SHR_INVALID_SHARDING_VALUE,
				"%s: index %d, %d parameters bound", rerrors.ErrMissingParameter, node.Index, len(params))
		}
		return params[node.Index], true, nil
	}
	return nil, false, nil
}

// conjunctive drops every OR subtree, keeping the AND-connected part of a predicate.
func conjunctive(expr statement.Expr) statement.Expr {
	switch node := expr.(type) {
	case *statement.AndExpr:
		return statement.And(conjunctive(node.Left), conjunctive(node.Right))
	case *statement.OrExpr:
		return nil
	}
	return expr
}
