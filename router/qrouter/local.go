package qrouter

import (
	"context"
	"time"

	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/pg-sharding/shroute/router/statement"
)

// LocalQrouter sends every statement, unchanged, to the only data source.
type LocalQrouter struct {
	holder *topology.Holder
}

var _ QueryRouter = &LocalQrouter{}

func NewLocalQrouter(holder *topology.Holder) *LocalQrouter {
	return &LocalQrouter{holder: holder}
}

func (l *LocalQrouter) Route(_ context.Context, stmt *statement.Statement, _ []any) (*Plan, error) {
	start := time.Now()
	topo := l.holder.Get()
	if len(topo.DataSources) != 1 {
		return nil, sherror.Newf(sherror.SHR_NO_DATASOURCE, "local router needs exactly one data source, got %d", len(topo.DataSources))
	}

	rctx := route.NewRouteContext()
	if stmt.Type != statement.TypeUse {
		ds := topo.DataSources[0]
		u := route.NewRouteUnit(route.NewRouteMapper(ds, ds))
		for _, t := range stmt.TableNames() {
			u.AddTableMappers(route.NewRouteMapper(t, t))
		}
		rctx.AddUnit(u)
	}

	shlog.Zero.Debug().
		Str("stmt_type", stmt.Type.String()).
		Dur("duration", time.Since(start)).
		Msg("local routing")
	return &Plan{Engine: "local", Context: rctx, TopologyVersion: topo.Version}, nil
}

func (l *LocalQrouter) DropSingleTable(_ context.Context, table string) error {
	return sherror.Newf(sherror.SHR_TABLE_NOT_FOUND, "single table \"%s\" is not registered", table)
}

func (l *LocalQrouter) Sync(context.Context) error {
	return nil
}

func (l *LocalQrouter) Topology() *topology.Topology {
	return l.holder.Get()
}
