package binder

import (
	"strconv"
	"strings"

	"github.com/pg-sharding/shroute/router/statement"
	"github.com/xwb1989/sqlparser"
)

func (b *binder) bindExpr(e sqlparser.Expr) statement.Expr {
	switch node := e.(type) {
	case *sqlparser.AndExpr:
		return &statement.AndExpr{Left: b.bindExpr(node.Left), Right: b.bindExpr(node.Right)}
	case *sqlparser.OrExpr:
		return &statement.OrExpr{Left: b.bindExpr(node.Left), Right: b.bindExpr(node.Right)}
	case *sqlparser.NotExpr:
		return &statement.NotExpr{Expr: b.bindExpr(node.Expr)}
	case *sqlparser.ParenExpr:
		return b.bindExpr(node.Expr)
	case *sqlparser.ComparisonExpr:
		return b.bindComparison(node)
	case *sqlparser.RangeCond:
		return &statement.BetweenExpr{
			Left: b.bindExpr(node.Left),
			From: b.bindExpr(node.From),
			To:   b.bindExpr(node.To),
			Not:  node.Operator == sqlparser.NotBetweenStr,
		}
	case *sqlparser.ColName:
		return b.bindColumn(node)
	case *sqlparser.SQLVal:
		return bindValue(node)
	case *sqlparser.NullVal:
		return &statement.Literal{Value: nil}
	case sqlparser.BoolVal:
		return &statement.Literal{Value: bool(node)}
	case *sqlparser.UnaryExpr:
		if node.Operator == sqlparser.UMinusStr {
			if lit, ok := b.bindExpr(node.Expr).(*statement.Literal); ok {
				switch v := lit.Value.(type) {
				case int64:
					return &statement.Literal{Value: -v}
				case float64:
					return &statement.Literal{Value: -v}
				}
			}
		}
	case *sqlparser.Subquery:
		b.bindSubquery(node)
	case *sqlparser.ExistsExpr:
		b.bindSubquery(node.Subquery)
	}
	return &statement.Opaque{Text: sqlparser.String(e)}
}

func (b *binder) bindComparison(node *sqlparser.ComparisonExpr) statement.Expr {
	left := b.bindExpr(node.Left)

	switch node.Operator {
	case sqlparser.InStr, sqlparser.NotInStr:
		in := &statement.InExpr{Left: left, Not: node.Operator == sqlparser.NotInStr}
		switch right := node.Right.(type) {
		case sqlparser.ValTuple:
			for _, v := range right {
				in.Values = append(in.Values, b.bindExpr(v))
			}
		default:
			b.bindExpr(node.Right)
			return &statement.Opaque{Text: sqlparser.String(node)}
		}
		return in
	}

	right := b.bindExpr(node.Right)
	op := statement.OpOther
	switch node.Operator {
	case sqlparser.EqualStr:
		op = statement.OpEq
	case sqlparser.NotEqualStr:
		op = statement.OpNe
	case sqlparser.LessThanStr:
		op = statement.OpLt
	case sqlparser.LessEqualStr:
		op = statement.OpLe
	case sqlparser.GreaterThanStr:
		op = statement.OpGt
	case sqlparser.GreaterEqualStr:
		op = statement.OpGe
	case sqlparser.NullSafeEqualStr:
		op = statement.OpNullEq
	case sqlparser.LikeStr:
		op = statement.OpLike
	}
	return &statement.CompareExpr{Op: op, Left: left, Right: right}
}

func (b *binder) bindColumn(node *sqlparser.ColName) statement.Expr {
	col := &statement.ColumnRef{Name: node.Name.Lowered()}
	if !node.Qualifier.IsEmpty() {
		if name, ok := b.stmt.ResolveTable(node.Qualifier.Name.String()); ok {
			col.Table = name
		} else {
			col.Table = strings.ToLower(node.Qualifier.Name.String())
		}
		return col
	}
	if len(b.scope) == 1 {
		col.Table = b.scope[0].Name
	}
	return col
}

func bindValue(v *sqlparser.SQLVal) statement.Expr {
	raw := string(v.Val)
	switch v.Type {
	case sqlparser.IntVal:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &statement.Literal{Value: n}
		}
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return &statement.Literal{Value: n}
		}
		return &statement.Literal{Value: raw}
	case sqlparser.FloatVal:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return &statement.Literal{Value: f}
		}
		return &statement.Literal{Value: raw}
	case sqlparser.HexNum:
		if n, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(raw), "0x"), 16, 64); err == nil {
			return &statement.Literal{Value: n}
		}
	case sqlparser.StrVal:
		return &statement.Literal{Value: raw}
	case sqlparser.ValArg:
		if strings.HasPrefix(raw, ":v") {
			if n, err := strconv.Atoi(raw[2:]); err == nil && n > 0 {
				return &statement.Param{Index: n - 1}
			}
		}
	}
	return &statement.Opaque{Text: sqlparser.String(v)}
}

func containsAggregate(e sqlparser.Expr) bool {
	found := false
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.FuncExpr:
			if n.IsAggregate() {
				found = true
				return false, nil
			}
		case *sqlparser.GroupConcatExpr:
			found = true
			return false, nil
		case *sqlparser.Subquery:
			return false, nil
		}
		return true, nil
	}, e)
	return found
}

func exprName(e sqlparser.Expr) string {
	if col, ok := e.(*sqlparser.ColName); ok {
		return col.Name.Lowered()
	}
	return strings.ToLower(sqlparser.String(e))
}

func limitValue(e sqlparser.Expr) *statement.LimitValue {
	v, ok := e.(*sqlparser.SQLVal)
	if !ok {
		return nil
	}
	switch bound := bindValue(v).(type) {
	case *statement.Literal:
		if n, ok := bound.Value.(int64); ok {
			return &statement.LimitValue{Value: n}
		}
	case *statement.Param:
		return &statement.LimitValue{ParamIndex: bound.Index, IsParam: true}
	}
	return nil
}
