package single

import (
	"context"

	"github.com/pg-sharding/shroute/pkg/lock"
	"github.com/pg-sharding/shroute/pkg/models/datanode"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/pg-sharding/shroute/router/statement"
)

// Router routes single (non-sharded) tables and owns their registration.
type Router struct {
	holder *topology.Holder
	locker lock.Locker
	// catalog is set when the locker shares owners with other routers.
	catalog lock.Catalog
}

func NewRouter(holder *topology.Holder, locker lock.Locker) *Router {
	r := &Router{
		holder: holder,
		locker: locker,
	}
	if c, ok := locker.(lock.Catalog); ok {
		r.catalog = c
	}
	return r
}

// Sync adds the tables other routers registered in the shared catalog to the local topology.
func (r *Router) Sync(ctx context.Context) error {
	if r.catalog == nil {
		return nil
	}
	owners, err := r.catalog.Owners(ctx)
	if err != nil {
		return err
	}
	for table, ds := range owners {
		if err := r.adopt(table, ds); err != nil {
			return err
		}
	}
	return nil
}

// adopt registers a table owned elsewhere unless the topology already knows it.
func (r *Router) adopt(table, ds string) error {
	_, err := r.holder.Update(func(cur *topology.Topology) (*topology.Topology, error) {
		if cur.Category(table) != topology.CategoryUnknown {
			return cur, nil
		}
		if !cur.HasDataSource(ds) {
			return nil, sherror.Newf(sherror.SHR_NO_DATASOURCE,
				"table \"%s\" is owned by unknown data source \"%s\"", table, ds)
		}
		return cur.WithSingleTables(cur.SingleTables().With(table, datanode.NewDataNode(ds, table))), nil
	})
	return err
}

// creates reports whether stmt may register new single tables.
func creates(stmt *statement.Statement) bool {
	return stmt.Type == statement.TypeCreateTable || stmt.Type == statement.TypeCreateView
}

// Tables returns the statement tables handled by the single router.
func Tables(stmt *statement.Statement, topo *topology.Topology) []string {
	var ret []string
	for _, name := range stmt.TableNames() {
		switch topo.Category(name) {
		case topology.CategorySingle:
			ret = append(ret, name)
		case topology.CategoryUnknown:
			if creates(stmt) {
				ret = append(ret, name)
			}
		}
	}
	return ret
}

// Route resolves the single tables of stmt against topo. New tables of a CREATE statement
// are assigned an owning data source first.
func (r *Router) Route(ctx context.Context, stmt *statement.Statement, topo *topology.Topology) (*route.RouteContext, error) {
	tables := Tables(stmt, topo)
	rctx := route.NewRouteContext()
	if len(tables) == 0 {
		return rctx, nil
	}

	nodes := make([]datanode.DataNode, 0, len(tables))
	for _, t := range tables {
		dn, ok := topo.SingleTables().Lookup(t)
		switch {
		case ok && creates(stmt) && !stmt.IfNotExists:
			return nil, sherror.Newf(sherror.SHR_TABLE_EXISTS, "table \"%s\" already exists on \"%s\"", t, dn.DataSourceName)
		case !ok:
			var err error
			if dn, err = r.create(ctx, t, stmt.IfNotExists); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, dn)
	}

	if !stmt.IsSelect() {
		for _, dn := range nodes[1:] {
			if dn.DataSourceName != nodes[0].DataSourceName {
				return nil, sherror.Newf(sherror.SHR_CROSS_DATASOURCE,
					"single tables %v are located on different data sources", tables)
			}
		}
	}

	for i, dn := range nodes {
		rctx.PutUnit(route.NewRouteMapper(dn.DataSourceName, dn.DataSourceName), route.NewRouteMapper(tables[i], dn.TableName))
	}
	rctx.Sort(topo.DataSourceIndex)
	return rctx, nil
}

// create registers a new single table. The lock keyed by table name serializes
// creators across routers; the compare-and-swap on the holder serializes them in process.
// With a shared catalog the owner is claimed there first and an owner recorded by
// another router wins.
func (r *Router) create(ctx context.Context, table string, ifNotExists bool) (datanode.DataNode, error) {
	unlock, err := r.locker.Lock(ctx, table)
	if err != nil {
		return datanode.DataNode{}, err
	}
	defer unlock()

	claimed := ""
	if cur := r.holder.Get(); r.catalog != nil && cur.Category(table) == topology.CategoryUnknown {
		ds, err := assign(cur)
		if err != nil {
			return datanode.DataNode{}, err
		}
		owner, ok, err := r.catalog.Claim(ctx, table, ds)
		if err != nil {
			return datanode.DataNode{}, err
		}
		if !ok {
			if err := r.adopt(table, owner); err != nil {
				return datanode.DataNode{}, err
			}
			shlog.Zero.Debug().Str("table", table).Str("data source", owner).Msg("table is registered by another router")
			if !ifNotExists {
				return datanode.DataNode{}, sherror.Newf(sherror.SHR_TABLE_EXISTS, "table \"%s\" already exists on \"%s\"", table, owner)
			}
			return datanode.NewDataNode(owner, table), nil
		}
		claimed = owner
	}

	next, err := r.holder.Update(func(cur *topology.Topology) (*topology.Topology, error) {
		if cur.Category(table) != topology.CategoryUnknown {
			if ifNotExists {
				return cur, nil
			}
			return nil, sherror.Newf(sherror.SHR_TABLE_EXISTS, "table \"%s\" already exists", table)
		}
		ds := claimed
		if ds == "" {
			var err error
			if ds, err = assign(cur); err != nil {
				return nil, err
			}
		}
		return cur.WithSingleTables(cur.SingleTables().With(table, datanode.NewDataNode(ds, table))), nil
	})
	if err != nil {
		return datanode.DataNode{}, err
	}

	nodes := next.DataNodes(table)
	if len(nodes) == 0 {
		return datanode.DataNode{}, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "no data node for table \"%s\"", table)
	}
	if len(nodes) > 1 {
		// concurrently configured as a broadcast or sharded table
		return datanode.DataNode{}, sherror.Newf(sherror.SHR_TABLE_EXISTS, "table \"%s\" already exists", table)
	}

	shlog.Zero.Info().
		Str("table", table).
		Str("data source", nodes[0].DataSourceName).
		Uint64("topology version", next.Version).
		Msg("registered single table")
	return nodes[0], nil
}

// assign picks the owner of a new table: the default data source when configured,
// else the data source holding the fewest single tables, ties broken by configured order.
func assign(topo *topology.Topology) (string, error) {
	if topo.DefaultDataSource != "" {
		return topo.DefaultDataSource, nil
	}
	if len(topo.DataSources) == 0 {
		return "", sherror.New(sherror.SHR_NO_DATASOURCE, "no data sources configured")
	}
	load := topo.SingleTables().LoadByDataSource()
	best := topo.DataSources[0]
	for _, ds := range topo.DataSources[1:] {
		if load[ds] < load[best] {
			best = ds
		}
	}
	return best, nil
}

// Remove unregisters a single table, typically after its DROP TABLE succeeded.
func (r *Router) Remove(ctx context.Context, table string) error {
	unlock, err := r.locker.Lock(ctx, table)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = r.holder.Update(func(cur *topology.Topology) (*topology.Topology, error) {
		if _, ok := cur.SingleTables().Lookup(table); !ok {
			return nil, sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "single table \"%s\" is not registered", table)
		}
		return cur.WithSingleTables(cur.SingleTables().Without(table)), nil
	})
	if err != nil {
		return err
	}
	if r.catalog != nil {
		return r.catalog.Release(ctx, table)
	}
	return nil
}
