package shadow_test

import (
	"testing"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/router/binder"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/pg-sharding/shroute/router/shadow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shadowTopology(t *testing.T, withRule bool) *topology.Topology {
	t.Helper()
	cfg := &config.Router{
		DataSources:  []string{"ds_0", "ds_1"},
		SingleTables: map[string]string{"t_order": "ds_0.t_order", "t_audit": "ds_1.t_audit"},
	}
	if withRule {
		cfg.Shadow = &config.ShadowCfg{
			DataSources: map[string]string{"ds_0": "ds_0_shadow"},
			Tables: map[string]config.ShadowTableCfg{
				"t_order": {Column: "tag", Values: []string{"test", "1"}},
			},
			EnableHint: true,
		}
	}
	topo, err := topology.New(cfg)
	require.NoError(t, err)
	return topo
}

func TestIsShadow(t *testing.T) {
	assert := assert.New(t)
	topo := shadowTopology(t, true)

	type tcase struct {
		query  string
		params []any
		exp    bool
	}

	for _, tt := range []tcase{
		{query: "SELECT * FROM t_order WHERE tag = 'test'", exp: true},
		{query: "SELECT * FROM t_order WHERE tag IN ('test', 1)", exp: true},
		{query: "SELECT * FROM t_order WHERE tag = ?", params: []any{"test"}, exp: true},
		{query: "UPDATE t_order SET v = 1 WHERE tag = 'test' OR tag = '1'", exp: true},
		{query: "SELECT * FROM t_order WHERE tag IN ('test', 'prod')", exp: false},
		{query: "SELECT * FROM t_order WHERE tag = 'test' OR id = 3", exp: false},
		{query: "SELECT * FROM t_order WHERE tag > 'test'", exp: false},
		{query: "SELECT * FROM t_order", exp: false},
		{query: "SELECT * FROM t_audit WHERE tag = 'test'", exp: false},
		{query: "/* shadow:TRUE */ SELECT * FROM t_audit", exp: true},
		{query: "/* shadow:false */ SELECT * FROM t_order", exp: false},
		{query: "ALTER TABLE t_order ADD COLUMN tag INT", exp: false},
	} {
		stmt, err := binder.Bind(tt.query)
		require.NoError(t, err, tt.query)
		got, err := shadow.IsShadow(stmt, topo, tt.params)
		assert.NoError(err, "query: %s", tt.query)
		assert.Equal(tt.exp, got, "query: %s", tt.query)
	}
}

func TestIsShadowWithoutRule(t *testing.T) {
	assert := assert.New(t)
	topo := shadowTopology(t, false)

	stmt, err := binder.Bind("/* shadow:true */ SELECT * FROM t_order WHERE tag = 'test'")
	require.NoError(t, err)
	got, err := shadow.IsShadow(stmt, topo, nil)
	assert.NoError(err)
	assert.False(got)
}

func TestDecorate(t *testing.T) {
	assert := assert.New(t)
	topo := shadowTopology(t, true)

	ctx := route.NewRouteContext()
	ctx.AddUnit(route.NewRouteUnit(route.NewRouteMapper("ds_0", "ds_0"), route.NewRouteMapper("t_order", "t_order")))
	ctx.AddUnit(route.NewRouteUnit(route.NewRouteMapper("ds_1", "ds_1"), route.NewRouteMapper("t_audit", "t_audit")))
	ctx.AlwaysFalse = true

	got := shadow.Decorate(ctx, topo.Shadow())
	assert.Equal("ds_0->ds_0_shadow[t_order] ds_1[t_audit]", got.String())
	assert.Equal([]string{"ds_0_shadow", "ds_1"}, got.DataSourceNames())
	assert.True(got.AlwaysFalse)

	// the input plan is unchanged
	assert.Equal("ds_0[t_order] ds_1[t_audit]", ctx.String())
}
