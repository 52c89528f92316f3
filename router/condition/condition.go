package condition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pg-sharding/shroute/router/algorithm"
)

// Condition is one alternative of a statement predicate (or one insert row):
// for each logical table, the values known for its sharding columns.
// A table or column absent from the condition is unconditional.
type Condition struct {
	// Row is the zero-based insert row this condition was read from, -1 otherwise.
	Row    int
	Tables map[string]map[string]algorithm.ColumnValues
}

func newCondition(row int) *Condition {
	return &Condition{
		Row:    row,
		Tables: map[string]map[string]algorithm.ColumnValues{},
	}
}

// Values returns the column values recorded for table, nil when unconditional.
func (c *Condition) Values(table string) map[string]algorithm.ColumnValues {
	if c == nil {
		return nil
	}
	return c.Tables[strings.ToLower(table)]
}

// Restrict ANDs cv into the values of table.column. It returns false when
// the result is provably empty.
func (c *Condition) Restrict(table, column string, cv algorithm.ColumnValues) bool {
	cols, ok := c.Tables[table]
	if !ok {
		cols = map[string]algorithm.ColumnValues{}
		c.Tables[table] = cols
	}
	prev, ok := cols[column]
	if !ok {
		cols[column] = cv
		return len(cv.Exact) > 0 || cv.Range != nil
	}
	merged, ok := Intersect(prev, cv)
	cols[column] = merged
	return ok
}

func (c *Condition) String() string {
	tables := make([]string, 0, len(c.Tables))
	for t := range c.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var sb strings.Builder
	for i, t := range tables {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		cols := make([]string, 0, len(c.Tables[t]))
		for col := range c.Tables[t] {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for j, col := range cols {
			if j > 0 {
				sb.WriteString(" AND ")
			}
			cv := c.Tables[t][col]
			sb.WriteString(t + "." + col)
			if cv.Range != nil {
				sb.WriteString(" IN " + cv.Range.String())
			} else {
				sb.WriteString(" IN ")
				sb.WriteString(formatExact(cv.Exact))
			}
		}
	}
	return sb.String()
}

// Result is the extracted routing knowledge of a statement.
type Result struct {
	// Conditions are alternatives; a statement is routed to the union of their targets.
	// It always holds at least one condition unless AlwaysFalse is set.
	Conditions []*Condition
	// AlwaysFalse marks a predicate that can never match any row.
	AlwaysFalse bool
}

// Unconditional is the result of a statement without usable predicates.
func Unconditional() *Result {
	return &Result{Conditions: []*Condition{newCondition(-1)}}
}

// ByTable lists the per-condition column values of table, one entry per condition.
func (r *Result) ByTable(table string) []map[string]algorithm.ColumnValues {
	ret := make([]map[string]algorithm.ColumnValues, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		ret = append(ret, c.Values(table))
	}
	return ret
}

// IsInsert reports whether conditions were read from insert rows.
func (r *Result) IsInsert() bool {
	return len(r.Conditions) > 0 && r.Conditions[0].Row >= 0
}

// Intersect ANDs two value sets of the same column.
func Intersect(a, b algorithm.ColumnValues) (algorithm.ColumnValues, bool) {
	switch {
	case a.Range != nil && b.Range != nil:
		r, ok := a.Range.Intersect(*b.Range)
		return algorithm.ColumnValues{Range: &r}, ok
	case a.Range != nil:
		return filterExact(b.Exact, func(v any) bool { return a.Range.Contains(v) })
	case b.Range != nil:
		return filterExact(a.Exact, func(v any) bool { return b.Range.Contains(v) })
	}
	return filterExact(a.Exact, func(v any) bool { return containsValue(b.Exact, v) })
}

func filterExact(vals []any, keep func(any) bool) (algorithm.ColumnValues, bool) {
	ret := make([]any, 0, len(vals))
	for _, v := range vals {
		if keep(v) {
			ret = append(ret, v)
		}
	}
	return algorithm.ColumnValues{Exact: ret}, len(ret) > 0
}

func containsValue(vals []any, v any) bool {
	for _, o := range vals {
		if equalValues(o, v) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if c, err := algorithm.Compare(a, b); err == nil {
		return c == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func formatExact(vals []any) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, fmt.Sprint(v))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
