package engine

import (
	"github.com/pg-sharding/shroute/pkg/models/datanode"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/algorithm"
	"github.com/pg-sharding/shroute/router/condition"
	"github.com/pg-sharding/shroute/router/route"
)

// groupRoute is the result of routing one sharded table or binding group.
type groupRoute struct {
	units       []*route.RouteUnit
	rows        [][]datanode.DataNode
	alwaysFalse bool
}

func routeStandard(e *StandardEngine, topo *topology.Topology, conds *condition.Result) (*route.RouteContext, error) {
	gr, err := routeGroup(e.Tables, topo, conds)
	if err != nil {
		return nil, err
	}

	ctx := route.NewRouteContext()
	for _, u := range gr.units {
		ctx.AddUnit(u)
	}
	ctx.OriginalDataNodes = gr.rows
	ctx.AlwaysFalse = gr.alwaysFalse

	if err := decorate(ctx, topo, e.Broadcast, e.Default); err != nil {
		return nil, err
	}
	return ctx, nil
}

// routeGroup routes the first table of group with its own rule and maps the other
// binding members to the actual tables at the same position.
func routeGroup(group []string, topo *topology.Topology, conds *condition.Result) (*groupRoute, error) {
	primary := group[0]
	rule, ok := topo.TableRule(primary)
	if !ok {
		return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "no sharding rule for table \"%s\"", primary)
	}
	if conds == nil {
		conds = condition.Unconditional()
	}

	gr := &groupRoute{}
	seen := map[datanode.DataNode]struct{}{}
	addNode := func(dn datanode.DataNode) error {
		if _, ok := seen[dn]; ok {
			return nil
		}
		seen[dn] = struct{}{}
		u, err := bindingUnit(topo, rule, group, dn)
		if err != nil {
			return err
		}
		gr.units = append(gr.units, u)
		return nil
	}

	for _, c := range conds.Conditions {
		values, ok := mergedValues(c, group)
		if !ok {
			continue
		}
		nodes, err := routeRule(rule, values)
		if err != nil {
			return nil, err
		}
		if c.Row >= 0 {
			if len(nodes) != 1 && len(rule.ActualDataNodes) > 1 {
				return nil, sherror.Newf(sherror.SHR_INSERT_MULTI_NODE,
					"row %d of table \"%s\" routes to %d data nodes, expected exactly one", c.Row, primary, len(nodes))
			}
			gr.rows = append(gr.rows, nodes)
		}
		for _, dn := range nodes {
			if err := addNode(dn); err != nil {
				return nil, err
			}
		}
	}

	if len(gr.units) == 0 {
		if len(rule.ActualDataNodes) == 0 {
			return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "no data node for table \"%s\"", primary)
		}
		// never match: still keep one target so the statement yields its metadata
		shlog.Zero.Debug().Str("table", primary).Msg("predicate is always false, routing to one data node")
		gr.alwaysFalse = true
		if err := addNode(rule.ActualDataNodes[0]); err != nil {
			return nil, err
		}
	}
	return gr, nil
}

// routeRule applies the database strategy, then the table strategy on each selected data source.
func routeRule(rule *topology.TableRule, values map[string]algorithm.ColumnValues) ([]datanode.DataNode, error) {
	dataSources, err := rule.DatabaseStrategy.Shard(rule.LogicTable, rule.ActualDataSources(), values)
	if err != nil {
		return nil, err
	}

	var nodes []datanode.DataNode
	for _, ds := range dataSources {
		tables, err := rule.TableStrategy.Shard(rule.LogicTable, rule.ActualTableNames(ds), values)
		if sherror.HasCode(err, sherror.SHR_ROUTING_ERROR) {
			// values of other data sources only
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			if dn, ok := rule.DataNode(ds, t); ok {
				nodes = append(nodes, dn)
			}
		}
	}
	if len(nodes) == 0 {
		return nil, sherror.Newf(sherror.SHR_ROUTING_ERROR, "no data node of table \"%s\" matches the sharding values", rule.LogicTable)
	}
	return nodes, nil
}

// mergedValues combines the values of all binding members, which share the sharding key.
// ok is false when the members contradict each other.
func mergedValues(c *condition.Condition, group []string) (map[string]algorithm.ColumnValues, bool) {
	ret := map[string]algorithm.ColumnValues{}
	for _, t := range group {
		for col, cv := range c.Values(t) {
			prev, ok := ret[col]
			if !ok {
				ret[col] = cv
				continue
			}
			merged, ok := condition.Intersect(prev, cv)
			if !ok {
				return nil, false
			}
			ret[col] = merged
		}
	}
	return ret, true
}

func bindingUnit(topo *topology.Topology, rule *topology.TableRule, group []string, dn datanode.DataNode) (*route.RouteUnit, error) {
	u := route.NewRouteUnit(identity(dn.DataSourceName), route.NewRouteMapper(rule.LogicTable, dn.TableName))
	if len(group) == 1 {
		return u, nil
	}

	idx := rule.FindActualTableIndex(dn.DataSourceName, dn.TableName)
	for _, other := range group[1:] {
		otherRule, ok := topo.TableRule(other)
		if !ok {
			return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "no sharding rule for table \"%s\"", other)
		}
		actual, ok := otherRule.ActualTableByIndex(dn.DataSourceName, idx)
		if !ok {
			return nil, sherror.Newf(sherror.SHR_ROUTING_ERROR,
				"binding table \"%s\" has no actual table matching %s", other, dn)
		}
		u.AddTableMappers(route.NewRouteMapper(other, actual))
	}
	return u, nil
}

// decorate adds broadcast tables to every unit and keeps only units on the default
// data source when default tables take part.
func decorate(ctx *route.RouteContext, topo *topology.Topology, broadcast, defaults []string) error {
	if len(defaults) > 0 {
		kept := ctx.Units[:0]
		for _, u := range ctx.Units {
			if u.DataSourceMapper.ActualName == topo.DefaultDataSource {
				for _, t := range defaults {
					u.AddTableMappers(identity(t))
				}
				kept = append(kept, u)
			}
		}
		ctx.Units = kept
		if len(kept) == 0 {
			return sherror.Newf(sherror.SHR_CROSS_DATASOURCE,
				"tables %v on default data source \"%s\" cannot be combined with the routed sharded tables", defaults, topo.DefaultDataSource)
		}
	}
	for _, u := range ctx.Units {
		for _, t := range broadcast {
			u.AddTableMappers(identity(t))
		}
	}
	return nil
}
