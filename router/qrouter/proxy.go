package qrouter

import (
	"context"
	"time"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/lock"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/condition"
	"github.com/pg-sharding/shroute/router/engine"
	"github.com/pg-sharding/shroute/router/pagination"
	"github.com/pg-sharding/shroute/router/shadow"
	"github.com/pg-sharding/shroute/router/single"
	"github.com/pg-sharding/shroute/router/statement"
)

// ProxyQrouter routes statements through the sharding engines, the single table
// router and the shadow decorator.
type ProxyQrouter struct {
	holder *topology.Holder
	single *single.Router

	routeLogger *shlog.RouteLogger
}

var _ QueryRouter = &ProxyQrouter{}

func NewProxyRouter(holder *topology.Holder, locker lock.Locker, cfg *config.Router) *ProxyQrouter {
	logMinDuration := time.Duration(-1)
	if cfg != nil {
		logMinDuration = cfg.LogMinDuration()
	}
	return &ProxyQrouter{
		holder:      holder,
		single:      single.NewRouter(holder, locker),
		routeLogger: shlog.NewRouteLogger(logMinDuration),
	}
}

func (qr *ProxyQrouter) Topology() *topology.Topology {
	return qr.holder.Get()
}

func (qr *ProxyQrouter) DropSingleTable(ctx context.Context, table string) error {
	return qr.single.Remove(ctx, table)
}

func (qr *ProxyQrouter) Sync(ctx context.Context) error {
	return qr.single.Sync(ctx)
}

// Route plans stmt against the current topology snapshot. Either a complete plan or an error
// is returned, never a partial plan.
func (qr *ProxyQrouter) Route(ctx context.Context, stmt *statement.Statement, params []any) (*Plan, error) {
	start := time.Now()
	topo := qr.holder.Get()

	p, err := qr.route(ctx, topo, stmt, params)
	if err != nil {
		shlog.Zero.Debug().
			Err(err).
			Str("stmt_type", stmt.Type.String()).
			Strs("tables", stmt.TableNames()).
			Msg("failed to route statement")
		return nil, err
	}

	qr.routeLogger.ReportRoute(stmt.Type.String(), p.Engine, len(p.Context.Units), time.Since(start))
	return p, nil
}

func (qr *ProxyQrouter) route(ctx context.Context, topo *topology.Topology, stmt *statement.Statement, params []any) (*Plan, error) {
	eng, err := engine.Select(stmt, topo)
	if err != nil {
		return nil, err
	}

	var conds *condition.Result
	switch eng.(type) {
	case *engine.StandardEngine, *engine.ComplexEngine:
		conds, err = condition.NewExtractor(topo.IsShardingColumn).WithBinding(topo.BindingGroup).Extract(stmt, params)
		if err != nil {
			return nil, err
		}
	}

	rctx, err := engine.Route(eng, stmt, topo, conds)
	if err != nil {
		return nil, err
	}

	if len(single.Tables(stmt, topo)) > 0 {
		singleCtx, err := qr.single.Route(ctx, stmt, topo)
		if err != nil {
			return nil, err
		}
		rctx = single.Compose(rctx, singleCtx, stmt.IsSelect())
		rctx.Sort(topo.DataSourceIndex)
	}

	p := &Plan{
		Engine:          engine.Name(eng),
		Context:         rctx,
		TopologyVersion: topo.Version,
	}

	isShadow, err := shadow.IsShadow(stmt, topo, params)
	if err != nil {
		return nil, err
	}
	if isShadow {
		p.Shadow = true
		p.Context = shadow.Decorate(rctx, topo.Shadow())
	}

	if stmt.IsSelect() && len(rctx.Units) > 1 {
		if p.Pagination, err = pagination.Revise(stmt, params, topo.MaxRowCount); err != nil {
			return nil, err
		}
	}

	shlog.Zero.Debug().
		Str("stmt_type", stmt.Type.String()).
		Str("engine", p.Engine).
		Bool("shadow", p.Shadow).
		Str("route", p.Context.String()).
		Msg("statement routed")
	return p, nil
}
