package binder

import (
	"strings"

	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/statement"
	"github.com/pkg/errors"
	"github.com/xwb1989/sqlparser"
)

// Bind parses a MySQL-dialect statement and binds it into the routing statement model.
// Positional parameters "?" become statement.Param with zero-based indexes.
func Bind(sql string) (*statement.Statement, error) {
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if sql == "" {
		return nil, sherror.New(sherror.SHR_NOT_IMPLEMENTED, "empty statement")
	}

	b := &binder{
		stmt: &statement.Statement{
			SQL:   sql,
			Hints: parseHints(sql),
		},
	}

	if dcl, ok := bindDCL(sql); ok {
		dcl.SQL = sql
		dcl.Hints = b.stmt.Hints
		return dcl, nil
	}

	query := sql
	if kw := leadingWords(sql, 2); len(kw) > 0 && kw[0] == "explain" && len(kw) > 1 &&
		(kw[1] == "select" || kw[1] == "insert" || kw[1] == "update" || kw[1] == "delete") {
		query = strings.TrimSpace(sqlparser.StripLeadingComments(sql))[len("explain"):]
		b.stmt.Explain = true
	}

	parsed, err := sqlparser.Parse(query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse statement \"%s\"", sql)
	}

	if err := b.bind(parsed); err != nil {
		return nil, err
	}

	shlog.Zero.Debug().
		Str("type", b.stmt.Type.String()).
		Strs("tables", b.stmt.TableNames()).
		Msg("bound statement")
	return b.stmt, nil
}

type binder struct {
	stmt *statement.Statement
	// scope holds the tables of the query level being bound; unqualified
	// columns are attributed to its table when there is exactly one.
	scope []statement.Table
	// level numbers the query level being bound, levels counts the ones seen so far.
	level, levels int
}

func (b *binder) withScope(from int, fn func()) {
	saved := b.scope
	b.scope = append([]statement.Table(nil), b.stmt.Tables[from:]...)
	fn()
	b.scope = saved
}

func (b *binder) bind(parsed sqlparser.Statement) error {
	switch node := parsed.(type) {
	case sqlparser.SelectStatement:
		b.stmt.Type = statement.TypeSelect
		b.bindSelectStatement(node, true)
	case *sqlparser.Insert:
		b.bindInsert(node)
	case *sqlparser.Update:
		b.stmt.Type = statement.TypeUpdate
		b.bindFiltered(node.TableExprs, node.Where)
		b.bindOrderBy(node.OrderBy)
		b.bindLimit(node.Limit)
	case *sqlparser.Delete:
		b.stmt.Type = statement.TypeDelete
		b.bindFiltered(node.TableExprs, node.Where)
		b.bindOrderBy(node.OrderBy)
		b.bindLimit(node.Limit)
	case *sqlparser.DDL:
		return b.bindDDL(node)
	case *sqlparser.DBDDL:
		switch node.Action {
		case sqlparser.CreateStr:
			b.stmt.Type = statement.TypeCreateSchema
		case sqlparser.DropStr:
			b.stmt.Type = statement.TypeDropSchema
		default:
			return sherror.Newf(sherror.SHR_NOT_IMPLEMENTED, "database action \"%s\"", node.Action)
		}
	case *sqlparser.Set:
		b.bindSet(node)
	case *sqlparser.Show:
		b.stmt.Type = statement.TypeShow
		if !node.OnTable.IsEmpty() {
			b.addTable(node.OnTable, "")
		} else if showHasTable(node.Type) {
			if tbl, ok := tableAfterKeyword(b.stmt.SQL, sqlparser.FROM, sqlparser.IN, sqlparser.TABLE); ok {
				b.stmt.Tables = append(b.stmt.Tables, tbl)
			}
		}
	case *sqlparser.Use:
		b.stmt.Type = statement.TypeUse
	case *sqlparser.Begin:
		b.stmt.Type = statement.TypeBegin
	case *sqlparser.Commit:
		b.stmt.Type = statement.TypeCommit
	case *sqlparser.Rollback:
		b.stmt.Type = statement.TypeRollback
	case *sqlparser.OtherRead:
		b.stmt.Type = statement.TypeDescribe
		if tbl, ok := tableAfterKeyword(b.stmt.SQL, sqlparser.DESCRIBE, sqlparser.DESC, sqlparser.EXPLAIN); ok {
			b.stmt.Tables = append(b.stmt.Tables, tbl)
		}
	case *sqlparser.OtherAdmin:
		b.stmt.Type = statement.TypeAdmin
	default:
		return sherror.Newf(sherror.SHR_NOT_IMPLEMENTED, "statement of type %T", parsed)
	}
	return nil
}

func (b *binder) addTable(tn sqlparser.TableName, alias string) {
	if tn.IsEmpty() {
		return
	}
	name := strings.ToLower(tn.Name.String())
	if name == "dual" && tn.Qualifier.IsEmpty() {
		// implicit FROM of a table-less SELECT
		return
	}
	b.stmt.Tables = append(b.stmt.Tables, statement.Table{
		Name:   name,
		Schema: tn.Qualifier.String(),
		Alias:  alias,
		Level:  b.level,
	})
}

func (b *binder) bindSelectStatement(sel sqlparser.SelectStatement, top bool) {
	switch node := sel.(type) {
	case *sqlparser.Select:
		b.bindFiltered(node.From, node.Where)
		if !top {
			return
		}
		b.stmt.Distinct = node.Distinct != ""
		for _, se := range node.SelectExprs {
			if ae, ok := se.(*sqlparser.AliasedExpr); ok && containsAggregate(ae.Expr) {
				b.stmt.HasAggregation = true
			}
		}
		for _, g := range node.GroupBy {
			b.stmt.GroupBy = append(b.stmt.GroupBy, exprName(g))
		}
		b.bindOrderBy(node.OrderBy)
		b.bindLimit(node.Limit)
	case *sqlparser.Union:
		before := b.stmt.Where
		b.stmt.Where = nil
		b.bindSelectStatement(node.Left, false)
		left := b.stmt.Where
		b.stmt.Where = nil
		b.bindSelectStatement(node.Right, false)
		right := b.stmt.Where
		if left == nil || right == nil {
			b.stmt.Where = before
		} else {
			b.stmt.Where = statement.And(before, &statement.OrExpr{Left: left, Right: right})
		}
		if top {
			b.bindOrderBy(node.OrderBy)
			b.bindLimit(node.Limit)
		}
	case *sqlparser.ParenSelect:
		b.bindSelectStatement(node.Select, top)
	}
}

// bindFiltered binds one query level: its tables first, then join conditions and
// the WHERE clause in the scope of those tables.
func (b *binder) bindFiltered(from sqlparser.TableExprs, where *sqlparser.Where) {
	start := len(b.stmt.Tables)
	var conds []sqlparser.Expr
	for _, te := range from {
		conds = b.bindTableExpr(te, conds)
	}
	if where != nil {
		conds = append(conds, where.Expr)
	}
	b.withScope(start, func() {
		for _, c := range conds {
			e := b.bindExpr(c)
			b.stmt.Where = statement.And(b.stmt.Where, e)
		}
	})
}

func (b *binder) bindTableExpr(te sqlparser.TableExpr, conds []sqlparser.Expr) []sqlparser.Expr {
	switch node := te.(type) {
	case *sqlparser.AliasedTableExpr:
		switch inner := node.Expr.(type) {
		case sqlparser.TableName:
			b.addTable(inner, node.As.String())
		case *sqlparser.Subquery:
			b.bindSubquery(inner)
		}
	case *sqlparser.JoinTableExpr:
		conds = b.bindTableExpr(node.LeftExpr, conds)
		conds = b.bindTableExpr(node.RightExpr, conds)
		if node.Condition.On != nil {
			conds = append(conds, node.Condition.On)
		}
	case *sqlparser.ParenTableExpr:
		for _, e := range node.Exprs {
			conds = b.bindTableExpr(e, conds)
		}
	}
	return conds
}

// bindSubquery binds the subquery as a query level of its own and ANDs its filters
// into the statement predicate. Tables are tagged with that level.
func (b *binder) bindSubquery(sq *sqlparser.Subquery) {
	outer, outerLevel := b.stmt.Where, b.level
	b.levels++
	b.level = b.levels
	b.stmt.Where = nil
	b.bindSelectStatement(sq.Select, false)
	b.stmt.Where = statement.And(outer, b.stmt.Where)
	b.level = outerLevel
}

func (b *binder) bindInsert(node *sqlparser.Insert) {
	b.stmt.Type = statement.TypeInsert
	b.addTable(node.Table, "")

	cols := make([]string, 0, len(node.Columns))
	for _, c := range node.Columns {
		cols = append(cols, c.Lowered())
	}
	ins := &statement.InsertValues{Columns: cols}

	switch rows := node.Rows.(type) {
	case sqlparser.Values:
		for _, tuple := range rows {
			row := make([]statement.Expr, 0, len(tuple))
			for _, e := range tuple {
				row = append(row, b.bindExpr(e))
			}
			ins.Rows = append(ins.Rows, row)
		}
	case sqlparser.SelectStatement:
		b.bindSelectStatement(rows, false)
	}
	b.stmt.Insert = ins
}

func (b *binder) bindDDL(node *sqlparser.DDL) error {
	kw := leadingWords(b.stmt.SQL, 5)
	isView := len(kw) > 1 && (kw[1] == "view" || (len(kw) > 3 && kw[3] == "view"))

	switch node.Action {
	case sqlparser.CreateStr:
		b.stmt.Type = statement.TypeCreateTable
		if isView {
			b.stmt.Type = statement.TypeCreateView
		}
		b.addTable(node.NewName, "")
		b.stmt.IfNotExists = hasIfNotExists(kw)
	case sqlparser.AlterStr:
		b.stmt.Type = statement.TypeAlterTable
		b.addTable(node.Table, "")
	case sqlparser.DropStr:
		b.stmt.Type = statement.TypeDropTable
		if isView {
			b.stmt.Type = statement.TypeDropView
		}
		b.addTable(node.Table, "")
		b.stmt.IfExists = node.IfExists
	case sqlparser.RenameStr:
		b.stmt.Type = statement.TypeRenameTable
		b.addTable(node.Table, "")
		b.addTable(node.NewName, "")
	case sqlparser.TruncateStr:
		b.stmt.Type = statement.TypeTruncateTable
		b.addTable(node.Table, "")
	default:
		return sherror.Newf(sherror.SHR_NOT_IMPLEMENTED, "DDL action \"%s\"", node.Action)
	}
	return nil
}

func (b *binder) bindSet(node *sqlparser.Set) {
	b.stmt.Type = statement.TypeSet
	for _, e := range node.Exprs {
		switch e.Name.Lowered() {
		case "autocommit":
			b.stmt.Type = statement.TypeSetAutoCommit
			return
		case "tx_isolation", "transaction_isolation", "tx_read_only", "transaction_read_only":
			b.stmt.Type = statement.TypeSetTransaction
			return
		}
	}
}

func (b *binder) bindOrderBy(ob sqlparser.OrderBy) {
	for _, o := range ob {
		b.stmt.OrderBy = append(b.stmt.OrderBy, statement.OrderItem{
			Column: exprName(o.Expr),
			Desc:   o.Direction == sqlparser.DescScr,
		})
	}
}

func (b *binder) bindLimit(l *sqlparser.Limit) {
	if l == nil {
		return
	}
	b.stmt.Limit = &statement.Limit{
		Offset:   limitValue(l.Offset),
		RowCount: limitValue(l.Rowcount),
	}
}
