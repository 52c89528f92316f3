package engine

import (
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/router/statement"
)

// Engine is a routing strategy chosen for one statement.
// The set of engines is closed: Route handles every variant declared here.
type Engine interface {
	iEngine()
}

// StandardEngine routes one sharded table, or the members of one binding group, with the
// rule of the first table. Broadcast tables are added to every unit, default tables
// restrict the plan to the default data source.
type StandardEngine struct {
	Engine
	Tables    []string
	Broadcast []string
	Default   []string
}

// ComplexEngine routes several independent sharded groups and joins them
// per data source with a Cartesian product.
type ComplexEngine struct {
	Engine
	Groups    [][]string
	Broadcast []string
	Default   []string
}

// DatabaseBroadcastEngine targets every data source without table mappers.
type DatabaseBroadcastEngine struct {
	Engine
}

// TableBroadcastEngine targets every data node of the tables.
type TableBroadcastEngine struct {
	Engine
	Tables []string
}

// UnicastEngine targets exactly one data source able to serve all tables.
type UnicastEngine struct {
	Engine
	Tables []string
}

// IgnoreEngine produces an empty plan; the statement is handled locally.
type IgnoreEngine struct {
	Engine
}

// DefaultDataSourceEngine targets the default data source with table names unchanged.
type DefaultDataSourceEngine struct {
	Engine
	Tables []string
}

func Name(e Engine) string {
	switch e.(type) {
	case *StandardEngine:
		return "standard"
	case *ComplexEngine:
		return "complex"
	case *DatabaseBroadcastEngine:
		return "database-broadcast"
	case *TableBroadcastEngine:
		return "table-broadcast"
	case *UnicastEngine:
		return "unicast"
	case *IgnoreEngine:
		return "ignore"
	case *DefaultDataSourceEngine:
		return "default-data-source"
	case nil:
		return "none"
	}
	return "unknown"
}

// tableSet splits statement tables by category.
type tableSet struct {
	sharded   []string
	broadcast []string
	single    []string
	unknown   []string
}

func classify(topo *topology.Topology, names []string) tableSet {
	var ts tableSet
	for _, n := range names {
		switch topo.Category(n) {
		case topology.CategorySharded:
			ts.sharded = append(ts.sharded, n)
		case topology.CategoryBroadcast:
			ts.broadcast = append(ts.broadcast, n)
		case topology.CategorySingle:
			ts.single = append(ts.single, n)
		default:
			ts.unknown = append(ts.unknown, n)
		}
	}
	return ts
}

// Select picks the engine for stmt. It returns a nil engine when only single
// tables take part, leaving the statement to the single table router.
func Select(stmt *statement.Statement, topo *topology.Topology) (Engine, error) {
	names := stmt.TableNames()
	if stmt.Type == statement.TypeRenameTable && len(names) > 1 {
		// the new name is not known to the topology yet
		names = names[:1]
	}
	ts := classify(topo, names)

	switch stmt.Kind() {
	case statement.KindTCL:
		return &DatabaseBroadcastEngine{}, nil
	case statement.KindDDL:
		return selectDDL(stmt, topo, ts)
	case statement.KindDAL:
		return selectDAL(stmt, ts)
	case statement.KindDCL:
		return selectDCL(ts)
	case statement.KindDML:
		return selectDML(stmt, topo, ts)
	}
	return nil, sherror.Newf(sherror.SHR_NOT_IMPLEMENTED, "no routing engine for statement type %s", stmt.Type)
}

func selectDDL(stmt *statement.Statement, topo *topology.Topology, ts tableSet) (Engine, error) {
	if len(stmt.Tables) == 0 {
		return &DatabaseBroadcastEngine{}, nil
	}

	var defaults []string
	if len(ts.unknown) > 0 {
		switch {
		case stmt.Type == statement.TypeCreateTable || stmt.Type == statement.TypeCreateView:
			// new tables become single tables
		case stmt.IfExists:
			return &DatabaseBroadcastEngine{}, nil
		case topo.DefaultDataSource != "":
			defaults = ts.unknown
		default:
			return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "table \"%s\" does not exist", ts.unknown[0])
		}
	}

	if len(ts.sharded)+len(ts.broadcast) > 0 {
		return &TableBroadcastEngine{Tables: append(append([]string{}, ts.sharded...), ts.broadcast...)}, nil
	}
	if len(defaults) > 0 {
		return &DefaultDataSourceEngine{Tables: defaults}, nil
	}
	return nil, nil
}

func selectDAL(stmt *statement.Statement, ts tableSet) (Engine, error) {
	switch stmt.Type {
	case statement.TypeUse:
		return &IgnoreEngine{}, nil
	case statement.TypeSet, statement.TypeAdmin:
		return &DatabaseBroadcastEngine{}, nil
	}
	if len(ts.single) > 0 && len(ts.sharded)+len(ts.broadcast)+len(ts.unknown) == 0 {
		return nil, nil
	}
	tables := append(append(append([]string{}, ts.sharded...), ts.broadcast...), ts.unknown...)
	return &UnicastEngine{Tables: tables}, nil
}

func selectDCL(ts tableSet) (Engine, error) {
	if len(ts.unknown) > 0 || len(ts.sharded)+len(ts.broadcast)+len(ts.single) == 0 {
		return &DatabaseBroadcastEngine{}, nil
	}
	if len(ts.sharded)+len(ts.broadcast) > 0 {
		return &TableBroadcastEngine{Tables: append(append([]string{}, ts.sharded...), ts.broadcast...)}, nil
	}
	return nil, nil
}

func selectDML(stmt *statement.Statement, topo *topology.Topology, ts tableSet) (Engine, error) {
	if len(ts.unknown) > 0 && topo.DefaultDataSource == "" {
		return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "table \"%s\" does not exist", ts.unknown[0])
	}
	defaults := ts.unknown

	if len(ts.sharded) == 0 {
		switch {
		case len(defaults) > 0:
			return &DefaultDataSourceEngine{Tables: append(append([]string{}, defaults...), ts.broadcast...)}, nil
		case len(ts.broadcast) > 0 && len(ts.single) == 0:
			if stmt.IsSelect() {
				return &UnicastEngine{Tables: ts.broadcast}, nil
			}
			return &DatabaseBroadcastEngine{}, nil
		case len(ts.broadcast) > 0:
			return &UnicastEngine{Tables: ts.broadcast}, nil
		case len(ts.single) > 0:
			return nil, nil
		}
		return &UnicastEngine{}, nil
	}

	groups := bindingGroups(topo, ts.sharded)
	if len(groups) == 1 {
		return &StandardEngine{Tables: groups[0], Broadcast: ts.broadcast, Default: defaults}, nil
	}
	return &ComplexEngine{Groups: groups, Broadcast: ts.broadcast, Default: defaults}, nil
}

// bindingGroups partitions sharded tables so that members of one binding group are routed together.
func bindingGroups(topo *topology.Topology, sharded []string) [][]string {
	var groups [][]string
	index := map[string]int{}
	for _, t := range sharded {
		key := t
		if g := topo.BindingGroup(t); len(g) > 0 {
			key = "binding:" + g[0]
		}
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], t)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []string{t})
	}
	return groups
}
