package qrouter

import (
	"context"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/lock"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/router/pagination"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/pg-sharding/shroute/router/statement"
)

// Plan is the routing outcome of one statement.
type Plan struct {
	Engine  string              `json:"engine"`
	Context *route.RouteContext `json:"route"`
	// Shadow is set when the statement was redirected to shadow data sources.
	Shadow bool `json:"shadow,omitempty"`
	// Pagination is the per-target limit when the statement is routed to several units.
	Pagination *pagination.Revision `json:"pagination,omitempty"`
	// TopologyVersion is the version of the snapshot the statement was routed against.
	TopologyVersion uint64 `json:"topology_version"`
}

type QueryRouter interface {
	Route(ctx context.Context, stmt *statement.Statement, params []any) (*Plan, error)

	// DropSingleTable forgets a single table after its DROP TABLE succeeded.
	DropSingleTable(ctx context.Context, table string) error
	// Sync loads single tables other routers registered in a shared catalog.
	Sync(ctx context.Context) error

	Topology() *topology.Topology
}

// NewQrouter builds the query router for a topology. A topology with one data source and
// no table rules needs no routing and gets the local router.
func NewQrouter(holder *topology.Holder, locker lock.Locker, cfg *config.Router) QueryRouter {
	topo := holder.Get()
	if len(topo.DataSources) == 1 && topo.ShardedTableCount() == 0 &&
		len(topo.BroadcastTables()) == 0 && topo.SingleTables().Len() == 0 && topo.Shadow() == nil {
		return NewLocalQrouter(holder)
	}
	return NewProxyRouter(holder, locker, cfg)
}

// Units is a convenience accessor used by callers that only need the targets.
func (p *Plan) Units() []*route.RouteUnit {
	if p == nil || p.Context == nil {
		return nil
	}
	return p.Context.Units
}
