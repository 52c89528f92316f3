package statement

import (
	"strings"
)

type Kind int

const (
	KindUnknown = Kind(iota)
	KindDML
	KindDDL
	KindDCL
	KindDAL
	KindTCL
)

func (k Kind) String() string {
	switch k {
	case KindDML:
		return "DML"
	case KindDDL:
		return "DDL"
	case KindDCL:
		return "DCL"
	case KindDAL:
		return "DAL"
	case KindTCL:
		return "TCL"
	}
	return "UNKNOWN"
}

type Type int

const (
	TypeUnknown = Type(iota)

	TypeSelect
	TypeInsert
	TypeUpdate
	TypeDelete

	TypeCreateTable
	TypeAlterTable
	TypeDropTable
	TypeTruncateTable
	TypeRenameTable
	TypeCreateView
	TypeDropView
	TypeCreateSchema
	TypeDropSchema

	TypeUse
	TypeSet
	TypeShow
	TypeDescribe
	TypeAdmin

	TypeGrant
	TypeRevoke
	TypeUserAdmin

	TypeBegin
	TypeCommit
	TypeRollback
	TypeSetAutoCommit
	TypeSetTransaction
)

var typeNames = map[Type]string{
	TypeUnknown:        "UNKNOWN",
	TypeSelect:         "SELECT",
	TypeInsert:         "INSERT",
	TypeUpdate:         "UPDATE",
	TypeDelete:         "DELETE",
	TypeCreateTable:    "CREATE TABLE",
	TypeAlterTable:     "ALTER TABLE",
	TypeDropTable:      "DROP TABLE",
	TypeTruncateTable:  "TRUNCATE",
	TypeRenameTable:    "RENAME TABLE",
	TypeCreateView:     "CREATE VIEW",
	TypeDropView:       "DROP VIEW",
	TypeCreateSchema:   "CREATE SCHEMA",
	TypeDropSchema:     "DROP SCHEMA",
	TypeUse:            "USE",
	TypeSet:            "SET",
	TypeShow:           "SHOW",
	TypeDescribe:       "DESCRIBE",
	TypeAdmin:          "ADMIN",
	TypeGrant:          "GRANT",
	TypeRevoke:         "REVOKE",
	TypeUserAdmin:      "USER ADMIN",
	TypeBegin:          "BEGIN",
	TypeCommit:         "COMMIT",
	TypeRollback:       "ROLLBACK",
	TypeSetAutoCommit:  "SET AUTOCOMMIT",
	TypeSetTransaction: "SET TRANSACTION",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

func (t Type) Kind() Kind {
	switch t {
	case TypeSelect, TypeInsert, TypeUpdate, TypeDelete:
		return KindDML
	case TypeCreateTable, TypeAlterTable, TypeDropTable, TypeTruncateTable, TypeRenameTable,
		TypeCreateView, TypeDropView, TypeCreateSchema, TypeDropSchema:
		return KindDDL
	case TypeUse, TypeSet, TypeShow, TypeDescribe, TypeAdmin:
		return KindDAL
	case TypeGrant, TypeRevoke, TypeUserAdmin:
		return KindDCL
	case TypeBegin, TypeCommit, TypeRollback, TypeSetAutoCommit, TypeSetTransaction:
		return KindTCL
	}
	return KindUnknown
}

// Table is a table reference as written in the statement. Name is lower case.
type Table struct {
	Name   string
	Schema string
	Alias  string
	// Level is the query level of this occurrence: 0 for the statement itself,
	// a distinct number for every subquery.
	Level int
}

type OrderItem struct {
	Column string
	Desc   bool
}

// LimitValue is either a literal or a reference to a bound parameter.
type LimitValue struct {
	Value      int64
	ParamIndex int
	IsParam    bool
}

type Limit struct {
	Offset   *LimitValue
	RowCount *LimitValue
}

type InsertValues struct {
	Columns []string
	Rows    [][]Expr
}

// Statement is a parsed statement bound to logical table names.
type Statement struct {
	SQL  string
	Type Type

	// Tables in order of appearance, including subqueries.
	Tables []Table
	// Where holds every predicate of the statement, including join conditions and
	// subquery filters, combined with AND. Nil when there is none. A restriction
	// only routes its table when the table occurs on a single query level.
	Where Expr

	Insert *InsertValues

	Distinct       bool
	HasAggregation bool
	GroupBy        []string
	OrderBy        []OrderItem
	Limit          *Limit

	IfExists    bool
	IfNotExists bool
	Explain     bool

	// Hints are key/value pairs from leading comments such as /* shadow:true */.
	Hints map[string]string
}

func (s *Statement) Kind() Kind {
	return s.Type.Kind()
}

func (s *Statement) IsSelect() bool {
	return s.Type == TypeSelect
}

// TableNames returns distinct logical table names in order of appearance.
func (s *Statement) TableNames() []string {
	seen := map[string]struct{}{}
	ret := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		ret = append(ret, t.Name)
	}
	return ret
}

// MultiLevelTables returns the tables occurring on more than one query level. key maps a
// table to the name it is grouped under, e.g. its binding group; nil groups by name.
func (s *Statement) MultiLevelTables(key func(string) string) map[string]struct{} {
	if key == nil {
		key = func(name string) string { return name }
	}
	first := map[string]int{}
	ret := map[string]struct{}{}
	for _, t := range s.Tables {
		k := key(t.Name)
		lvl, ok := first[k]
		if !ok {
			first[k] = t.Level
			continue
		}
		if lvl != t.Level {
			ret[k] = struct{}{}
		}
	}
	return ret
}

// ResolveTable maps an alias or table name used as a column qualifier to a table name.
func (s *Statement) ResolveTable(qualifier string) (string, bool) {
	q := strings.ToLower(qualifier)
	for _, t := range s.Tables {
		if strings.ToLower(t.Alias) == q && t.Alias != "" {
			return t.Name, true
		}
	}
	for _, t := range s.Tables {
		if t.Name == q {
			return t.Name, true
		}
	}
	return "", false
}

func (s *Statement) Hint(key string) (string, bool) {
	v, ok := s.Hints[strings.ToLower(key)]
	return v, ok
}

// NeedsAggregation reports whether merging results from several targets needs re-aggregation.
func (s *Statement) NeedsAggregation() bool {
	return len(s.GroupBy) > 0 || len(s.OrderBy) > 0 || s.HasAggregation || s.Distinct
}

// GroupByDiffersFromOrderBy reports whether GROUP BY and ORDER BY lists differ.
func (s *Statement) GroupByDiffersFromOrderBy() bool {
	if len(s.GroupBy) == 0 {
		return false
	}
	if len(s.OrderBy) == 0 {
		return false
	}
	if len(s.GroupBy) != len(s.OrderBy) {
		return true
	}
	for i := range s.GroupBy {
		if s.GroupBy[i] != s.OrderBy[i].Column {
			return true
		}
	}
	return false
}
