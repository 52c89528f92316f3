package engine

import (
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/condition"
	"github.com/pg-sharding/shroute/router/route"
)

// routeComplex routes each group on its own, then builds the Cartesian product of the
// group results per data source. Only data sources reached by every group are kept.
func routeComplex(e *ComplexEngine, topo *topology.Topology, conds *condition.Result) (*route.RouteContext, error) {
	// data source -> per group table mapper alternatives
	byDS := map[string][][][]route.RouteMapper{}
	var order []string

	routes := make([]*groupRoute, 0, len(e.Groups))
	for _, group := range e.Groups {
		gr, err := routeGroup(group, topo, conds)
		if err != nil {
			return nil, err
		}
		if gr.alwaysFalse {
			// a join with a group matching nothing matches nothing
			return routeComplexAlwaysFalse(e, topo)
		}
		routes = append(routes, gr)
	}

	for gi, gr := range routes {
		for _, u := range gr.units {
			ds := u.DataSourceMapper.ActualName
			alts, ok := byDS[ds]
			if !ok {
				if gi > 0 {
					continue
				}
				alts = make([][][]route.RouteMapper, len(e.Groups))
				order = append(order, ds)
			}
			alts[gi] = append(alts[gi], u.TableMappers)
			byDS[ds] = alts
		}
	}

	ctx := route.NewRouteContext()
	for _, ds := range order {
		alts := byDS[ds]
		complete := true
		for _, a := range alts {
			if len(a) == 0 {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, combo := range cartesian(alts) {
			ctx.AddUnit(route.NewRouteUnit(identity(ds), combo...))
		}
	}

	if ctx.IsEmpty() {
		return nil, sherror.Newf(sherror.SHR_CROSS_DATASOURCE, "sharded tables %v have no data source in common", e.Groups)
	}
	if err := decorate(ctx, topo, e.Broadcast, e.Default); err != nil {
		return nil, err
	}
	return ctx, nil
}

// routeComplexAlwaysFalse keeps a single unit on the first data source, in configured
// order, holding every group. Each group is mapped to its first actual table there.
func routeComplexAlwaysFalse(e *ComplexEngine, topo *topology.Topology) (*route.RouteContext, error) {
	rules := make([]*topology.TableRule, 0, len(e.Groups))
	for _, group := range e.Groups {
		rule, ok := topo.TableRule(group[0])
		if !ok {
			return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "no sharding rule for table \"%s\"", group[0])
		}
		rules = append(rules, rule)
	}

	candidates := topo.DataSources
	if len(e.Default) > 0 {
		candidates = []string{topo.DefaultDataSource}
	}

	for _, ds := range candidates {
		u := route.NewRouteUnit(identity(ds))
		complete := true
		for gi, rule := range rules {
			tables := rule.ActualTableNames(ds)
			if len(tables) == 0 {
				complete = false
				break
			}
			dn, _ := rule.DataNode(ds, tables[0])
			gu, err := bindingUnit(topo, rule, e.Groups[gi], dn)
			if err != nil {
				return nil, err
			}
			u.AddTableMappers(gu.TableMappers...)
		}
		if !complete {
			continue
		}

		shlog.Zero.Debug().Str("data source", ds).Msg("join predicate is always false, routing to one unit")
		ctx := route.NewRouteContext()
		ctx.AlwaysFalse = true
		ctx.AddUnit(u)
		if err := decorate(ctx, topo, e.Broadcast, e.Default); err != nil {
			return nil, err
		}
		return ctx, nil
	}
	return nil, sherror.Newf(sherror.SHR_CROSS_DATASOURCE, "sharded tables %v have no data source in common", e.Groups)
}

// cartesian picks one alternative of every group in all possible ways.
func cartesian(groups [][][]route.RouteMapper) [][]route.RouteMapper {
	ret := [][]route.RouteMapper{nil}
	for _, alts := range groups {
		next := make([][]route.RouteMapper, 0, len(ret)*len(alts))
		for _, prefix := range ret {
			for _, a := range alts {
				combo := make([]route.RouteMapper, 0, len(prefix)+len(a))
				combo = append(combo, prefix...)
				combo = append(combo, a...)
				next = append(next, combo)
			}
		}
		ret = next
	}
	return ret
}
