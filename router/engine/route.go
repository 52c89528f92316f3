package engine

import (
	"slices"

	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/condition"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/pg-sharding/shroute/router/statement"
)

// Route runs e against one topology snapshot. conds is only read by the sharding engines
// and may be nil for the others. A nil engine yields an empty plan.
func Route(e Engine, stmt *statement.Statement, topo *topology.Topology, conds *condition.Result) (*route.RouteContext, error) {
	var (
		ctx *route.RouteContext
		err error
	)

	switch q := e.(type) {
	case nil:
		ctx = route.NewRouteContext()
	case *StandardEngine:
		ctx, err = routeStandard(q, topo, conds)
	case *ComplexEngine:
		ctx, err = routeComplex(q, topo, conds)
	case *DatabaseBroadcastEngine:
		ctx, err = routeDatabaseBroadcast(topo)
	case *TableBroadcastEngine:
		ctx, err = routeTableBroadcast(q, topo)
	case *UnicastEngine:
		ctx, err = routeUnicast(q, stmt, topo)
	case *IgnoreEngine:
		ctx = route.NewRouteContext()
	case *DefaultDataSourceEngine:
		ctx, err = routeDefaultDataSource(q, topo)
	default:
		return nil, sherror.Newf(sherror.SHR_NOT_IMPLEMENTED, "routing engine %T", e)
	}
	if err != nil {
		return nil, err
	}

	ctx.Sort(topo.DataSourceIndex)

	shlog.Zero.Debug().
		Str("engine", Name(e)).
		Str("route", ctx.String()).
		Msg("routed statement")
	return ctx, nil
}

func identity(name string) route.RouteMapper {
	return route.NewRouteMapper(name, name)
}

func routeDatabaseBroadcast(topo *topology.Topology) (*route.RouteContext, error) {
	if len(topo.DataSources) == 0 {
		return nil, sherror.New(sherror.SHR_NO_DATASOURCE, "no data sources configured")
	}
	ctx := route.NewRouteContext()
	for _, ds := range topo.DataSources {
		ctx.AddUnit(route.NewRouteUnit(identity(ds)))
	}
	return ctx, nil
}

func routeTableBroadcast(e *TableBroadcastEngine, topo *topology.Topology) (*route.RouteContext, error) {
	ctx := route.NewRouteContext()
	for _, t := range e.Tables {
		nodes := topo.DataNodes(t)
		if len(nodes) == 0 {
			return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "no data node for table \"%s\"", t)
		}
		for _, dn := range nodes {
			ctx.AddUnit(route.NewRouteUnit(identity(dn.DataSourceName), route.NewRouteMapper(t, dn.TableName)))
		}
	}
	return ctx, nil
}

// routeUnicast chooses the first data source, in configured order, that holds every table.
// Single tables of the statement constrain the choice so that they can be joined locally.
func routeUnicast(e *UnicastEngine, stmt *statement.Statement, topo *topology.Topology) (*route.RouteContext, error) {
	candidates := append([]string(nil), topo.DataSources...)
	restrict := func(allowed []string) {
		keep := candidates[:0]
		for _, c := range candidates {
			if slices.Contains(allowed, c) {
				keep = append(keep, c)
			}
		}
		candidates = keep
	}

	for _, t := range e.Tables {
		switch topo.Category(t) {
		case topology.CategorySharded:
			rule, _ := topo.TableRule(t)
			restrict(rule.ActualDataSources())
		case topology.CategoryUnknown:
			if topo.DefaultDataSource != "" {
				restrict([]string{topo.DefaultDataSource})
			}
		}
	}
	for _, name := range stmt.TableNames() {
		if dn, ok := topo.SingleTables().Lookup(name); ok {
			restrict([]string{dn.DataSourceName})
		}
	}

	if len(candidates) == 0 {
		if len(topo.DataSources) == 0 {
			return nil, sherror.New(sherror.SHR_NO_DATASOURCE, "no data sources configured")
		}
		return nil, sherror.Newf(sherror.SHR_CROSS_DATASOURCE, "tables %v are not available on one data source", stmt.TableNames())
	}

	ds := candidates[0]
	u := route.NewRouteUnit(identity(ds))
	for _, t := range e.Tables {
		if rule, ok := topo.TableRule(t); ok {
			u.AddTableMappers(route.NewRouteMapper(t, rule.ActualTableNames(ds)[0]))
			continue
		}
		u.AddTableMappers(identity(t))
	}

	ctx := route.NewRouteContext()
	ctx.AddUnit(u)
	return ctx, nil
}

func routeDefaultDataSource(e *DefaultDataSourceEngine, topo *topology.Topology) (*route.RouteContext, error) {
	if topo.DefaultDataSource == "" {
		return nil, sherror.New(sherror.SHR_NO_DATASOURCE, "default data source is not configured")
	}
	u := route.NewRouteUnit(identity(topo.DefaultDataSource))
	for _, t := range e.Tables {
		u.AddTableMappers(identity(t))
	}
	ctx := route.NewRouteContext()
	ctx.AddUnit(u)
	return ctx, nil
}
