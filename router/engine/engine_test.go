package engine_test

import (
	"testing"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/router/binder"
	"github.com/pg-sharding/shroute/router/condition"
	"github.com/pg-sharding/shroute/router/engine"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Router {
	mod4 := &config.StrategyCfg{Type: config.StrategyStandard, Column: "order_id", Algorithm: "mod4"}
	return &config.Router{
		DataSources: []string{"ds_0", "ds_1", "ds_2", "ds_3"},
		Sharding: config.ShardingCfg{
			Tables: map[string]*config.TableCfg{
				"t_order": {
					ActualDataNodes:  "ds_0.t_order_0, ds_1.t_order_1, ds_2.t_order_2, ds_3.t_order_3",
					DatabaseStrategy: mod4,
					TableStrategy:    mod4,
				},
				"t_order_item": {
					ActualDataNodes:  "ds_0.t_order_item_0, ds_1.t_order_item_1, ds_2.t_order_item_2, ds_3.t_order_item_3",
					DatabaseStrategy: mod4,
					TableStrategy:    mod4,
				},
				"t_user": {
					ActualDataNodes:  "ds_${0..1}.t_user",
					DatabaseStrategy: &config.StrategyCfg{Type: config.StrategyStandard, Column: "user_id", Algorithm: "mod2"},
				},
			},
			BindingTables:   [][]string{{"t_order", "t_order_item"}},
			BroadcastTables: []string{"t_dict"},
			Algorithms: map[string]*config.AlgorithmCfg{
				"mod4": {Type: "MOD", Props: map[string]string{"sharding-count": "4"}},
				"mod2": {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
			},
		},
		SingleTables: map[string]string{"t_config": "ds_1.t_config"},
	}
}

func testTopology(t *testing.T, mutate ...func(*config.Router)) *topology.Topology {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	topo, err := topology.New(cfg)
	require.NoError(t, err)
	return topo
}

func routeQuery(t *testing.T, topo *topology.Topology, query string, params ...any) (*route.RouteContext, error) {
	t.Helper()
	stmt, err := binder.Bind(query)
	require.NoError(t, err)

	e, err := engine.Select(stmt, topo)
	if err != nil {
		return nil, err
	}
	conds, err := condition.NewExtractor(topo.IsShardingColumn).WithBinding(topo.BindingGroup).Extract(stmt, params)
	if err != nil {
		return nil, err
	}
	return engine.Route(e, stmt, topo, conds)
}

func TestSelectEngine(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	type tcase struct {
		query string
		exp   string
	}

	for _, tt := range []tcase{
		{query: "BEGIN", exp: "database-broadcast"},
		{query: "SET autocommit = 1", exp: "database-broadcast"},
		{query: "CREATE DATABASE foo", exp: "database-broadcast"},
		{query: "CREATE TABLE t_order (order_id INT)", exp: "table-broadcast"},
		{query: "ALTER TABLE t_dict ADD COLUMN c INT", exp: "table-broadcast"},
		{query: "DROP TABLE IF EXISTS t_missing", exp: "database-broadcast"},
		{query: "CREATE TABLE t_new (id INT)", exp: "none"},
		{query: "USE db1", exp: "ignore"},
		{query: "SET names utf8", exp: "database-broadcast"},
		{query: "SHOW TABLES", exp: "unicast"},
		{query: "SHOW COLUMNS FROM t_order", exp: "unicast"},
		{query: "DESCRIBE t_config", exp: "none"},
		{query: "GRANT SELECT ON t_order TO 'u'@'%'", exp: "table-broadcast"},
		{query: "GRANT SELECT ON *.* TO 'u'@'%'", exp: "database-broadcast"},
		{query: "SELECT * FROM t_dict", exp: "unicast"},
		{query: "UPDATE t_dict SET v = 1", exp: "database-broadcast"},
		{query: "SELECT * FROM t_config", exp: "none"},
		{query: "SELECT * FROM t_dict, t_config", exp: "unicast"},
		{query: "SELECT 1", exp: "unicast"},
		{query: "SELECT * FROM t_order WHERE order_id = 1", exp: "standard"},
		{query: "SELECT * FROM t_order o JOIN t_order_item i ON o.order_id = i.order_id", exp: "standard"},
		{query: "SELECT * FROM t_order, t_dict", exp: "standard"},
		{query: "SELECT * FROM t_order, t_user", exp: "complex"},
	} {
		stmt, err := binder.Bind(tt.query)
		require.NoError(t, err, tt.query)
		e, err := engine.Select(stmt, topo)
		assert.NoError(err, "query: %s", tt.query)
		assert.Equal(tt.exp, engine.Name(e), "query: %s", tt.query)
	}
}

func TestSelectEngineUnknownTable(t *testing.T) {
	assert := assert.New(t)

	topo := testTopology(t)
	for _, q := range []string{
		"SELECT * FROM t_missing",
		"UPDATE t_order, t_missing SET v = 1",
		"ALTER TABLE t_missing ADD COLUMN c INT",
	} {
		stmt, err := binder.Bind(q)
		require.NoError(t, err)
		_, err = engine.Select(stmt, topo)
		assert.True(sherror.HasCode(err, sherror.SHR_TABLE_NOT_FOUND), "query: %s, err: %v", q, err)
	}

	topo = testTopology(t, func(cfg *config.Router) { cfg.DefaultDataSource = "ds_2" })
	ctx, err := routeQuery(t, topo, "SELECT * FROM t_missing, t_dict")
	assert.NoError(err)
	assert.Equal("ds_2[t_dict,t_missing]", ctx.String())
}

func TestRouteStandard(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	type tcase struct {
		query  string
		params []any
		exp    string
	}

	for _, tt := range []tcase{
		{query: "SELECT * FROM t_order WHERE order_id = 5", exp: "ds_1[t_order->t_order_1]"},
		{query: "SELECT * FROM t_order WHERE order_id = ?", params: []any{int64(7)}, exp: "ds_3[t_order->t_order_3]"},
		{query: "SELECT * FROM t_order WHERE order_id IN (4, 9)", exp: "ds_0[t_order->t_order_0] ds_1[t_order->t_order_1]"},
		{query: "SELECT * FROM t_order WHERE order_id BETWEEN 1 AND 2", exp: "ds_1[t_order->t_order_1] ds_2[t_order->t_order_2]"},
		{query: "SELECT * FROM t_order WHERE order_id = 1 OR order_id = 3", exp: "ds_1[t_order->t_order_1] ds_3[t_order->t_order_3]"},
		{
			query: "SELECT * FROM t_order",
			exp:   "ds_0[t_order->t_order_0] ds_1[t_order->t_order_1] ds_2[t_order->t_order_2] ds_3[t_order->t_order_3]",
		},
		{
			query: "SELECT * FROM t_order o JOIN t_order_item i ON o.order_id = i.order_id WHERE o.order_id = 6",
			exp:   "ds_2[t_order->t_order_2,t_order_item->t_order_item_2]",
		},
		{
			query: "SELECT * FROM t_order o JOIN t_order_item i ON o.order_id = i.order_id WHERE i.order_id IN (1, 2)",
			exp:   "ds_1[t_order->t_order_1,t_order_item->t_order_item_1] ds_2[t_order->t_order_2,t_order_item->t_order_item_2]",
		},
		{query: "SELECT * FROM t_order, t_dict WHERE order_id = 3", exp: "ds_3[t_dict,t_order->t_order_3]"},
		{query: "UPDATE t_user SET name = 'x' WHERE user_id = 3", exp: "ds_1[t_user]"},
	} {
		ctx, err := routeQuery(t, topo, tt.query, tt.params...)
		if !assert.NoError(err, "query: %s", tt.query) {
			continue
		}
		assert.Equal(tt.exp, ctx.String(), "query: %s", tt.query)
		assert.False(ctx.AlwaysFalse, "query: %s", tt.query)
	}
}

func TestRouteAlwaysFalseKeepsOneUnit(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	for _, q := range []string{
		"SELECT * FROM t_order WHERE order_id = 1 AND order_id = 2",
		"DELETE FROM t_order WHERE order_id > 10 AND order_id < 3",
	} {
		ctx, err := routeQuery(t, topo, q)
		require.NoError(t, err)
		assert.True(ctx.AlwaysFalse, "query: %s", q)
		assert.Equal("ds_0[t_order->t_order_0]", ctx.String(), "query: %s", q)
	}

	// binding members contradicting each other never match either
	ctx, err := routeQuery(t, topo, "SELECT * FROM t_order o JOIN t_order_item i ON o.order_id = i.order_id WHERE o.order_id = 1 AND i.order_id = 2")
	require.NoError(t, err)
	assert.True(ctx.AlwaysFalse)
	assert.Equal("ds_0[t_order->t_order_0,t_order_item->t_order_item_0]", ctx.String())
}

func TestRouteComplexAlwaysFalse(t *testing.T) {
	assert := assert.New(t)

	// t_item starts on ds_1, so the first nodes of the two groups are on different data sources
	topo := testTopology(t, func(cfg *config.Router) {
		cfg.Sharding.Tables["t_item"] = &config.TableCfg{ActualDataNodes: "ds_1.t_item_0, ds_0.t_item_1"}
	})

	type tcase struct {
		query string
		exp   string
	}

	for _, tt := range []tcase{
		{
			query: "SELECT * FROM t_order o JOIN t_item i ON o.x = i.x WHERE o.order_id = 1 AND o.order_id = 2",
			exp:   "ds_0[t_item->t_item_1,t_order->t_order_0]",
		},
		{
			query: "SELECT * FROM t_item i JOIN t_order o ON o.x = i.x WHERE o.order_id > 5 AND o.order_id < 2",
			exp:   "ds_0[t_item->t_item_1,t_order->t_order_0]",
		},
		{
			query: "SELECT * FROM t_order o, t_user u WHERE o.order_id = 2 AND u.user_id = 1 AND u.user_id = 3",
			exp:   "ds_0[t_order->t_order_0,t_user]",
		},
	} {
		ctx, err := routeQuery(t, topo, tt.query)
		if !assert.NoError(err, "query: %s", tt.query) {
			continue
		}
		assert.True(ctx.AlwaysFalse, "query: %s", tt.query)
		assert.Len(ctx.Units, 1, "query: %s", tt.query)
		assert.Equal(tt.exp, ctx.String(), "query: %s", tt.query)
	}
}

func TestRouteInsert(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	ctx, err := routeQuery(t, topo, "INSERT INTO t_order (order_id, v) VALUES (1, 'a'), (?, 'b'), (5, 'c')", int64(6))
	require.NoError(t, err)
	assert.Equal("ds_1[t_order->t_order_1] ds_2[t_order->t_order_2]", ctx.String())
	require.Len(t, ctx.OriginalDataNodes, 3)
	assert.Equal("ds_1.t_order_1", ctx.OriginalDataNodes[0][0].String())
	assert.Equal("ds_2.t_order_2", ctx.OriginalDataNodes[1][0].String())
	assert.Equal("ds_1.t_order_1", ctx.OriginalDataNodes[2][0].String())

	for _, q := range []string{
		"INSERT INTO t_order (v) VALUES ('a')",
		"INSERT INTO t_user (name) VALUES ('a')",
	} {
		_, err = routeQuery(t, topo, q)
		assert.True(sherror.HasCode(err, sherror.SHR_INSERT_MULTI_NODE), "query: %s, err: %v", q, err)
	}

	_, err = routeQuery(t, topo, "INSERT INTO t_order (order_id) VALUES ('abc')")
	assert.True(sherror.HasCode(err, sherror.SHR_INVALID_SHARDING_VALUE), "err: %v", err)
}

func TestRouteComplex(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	ctx, err := routeQuery(t, topo, "SELECT * FROM t_order, t_user")
	require.NoError(t, err)
	assert.Equal("ds_0[t_order->t_order_0,t_user] ds_1[t_order->t_order_1,t_user]", ctx.String())

	ctx, err = routeQuery(t, topo, "SELECT * FROM t_order o, t_user u WHERE o.order_id = 1 AND u.user_id = 3")
	require.NoError(t, err)
	assert.Equal("ds_1[t_order->t_order_1,t_user]", ctx.String())

	_, err = routeQuery(t, topo, "SELECT * FROM t_order o, t_user u WHERE o.order_id = 2 AND u.user_id = 1")
	assert.True(sherror.HasCode(err, sherror.SHR_CROSS_DATASOURCE), "err: %v", err)
}

func TestRouteWithDefaultTables(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t, func(cfg *config.Router) { cfg.DefaultDataSource = "ds_0" })

	ctx, err := routeQuery(t, topo, "SELECT * FROM t_order, t_other")
	require.NoError(t, err)
	assert.Equal("ds_0[t_order->t_order_0,t_other]", ctx.String())

	_, err = routeQuery(t, topo, "SELECT * FROM t_order, t_other WHERE order_id = 1")
	assert.True(sherror.HasCode(err, sherror.SHR_CROSS_DATASOURCE), "err: %v", err)
}

func TestRouteBroadcasts(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	type tcase struct {
		query string
		exp   string
	}

	for _, tt := range []tcase{
		{query: "CREATE DATABASE foo", exp: "ds_0[] ds_1[] ds_2[] ds_3[]"},
		{query: "COMMIT", exp: "ds_0[] ds_1[] ds_2[] ds_3[]"},
		{query: "UPDATE t_dict SET v = 1", exp: "ds_0[] ds_1[] ds_2[] ds_3[]"},
		{query: "ALTER TABLE t_dict ADD COLUMN c INT", exp: "ds_0[t_dict] ds_1[t_dict] ds_2[t_dict] ds_3[t_dict]"},
		{query: "DROP TABLE t_user", exp: "ds_0[t_user] ds_1[t_user]"},
		{
			query: "TRUNCATE TABLE t_order",
			exp:   "ds_0[t_order->t_order_0] ds_1[t_order->t_order_1] ds_2[t_order->t_order_2] ds_3[t_order->t_order_3]",
		},
		{query: "SELECT * FROM t_dict", exp: "ds_0[t_dict]"},
		{query: "SHOW COLUMNS FROM t_order", exp: "ds_0[t_order->t_order_0]"},
		{query: "SELECT * FROM t_dict, t_config", exp: "ds_1[t_dict]"},
		{query: "USE db1", exp: ""},
	} {
		ctx, err := routeQuery(t, topo, tt.query)
		if !assert.NoError(err, "query: %s", tt.query) {
			continue
		}
		assert.Equal(tt.exp, ctx.String(), "query: %s", tt.query)
	}
}

func TestRouteIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	for _, q := range []string{
		"SELECT * FROM t_order WHERE order_id IN (1, 2, 3)",
		"SELECT * FROM t_order, t_user",
		"CREATE TABLE t_order (order_id INT)",
	} {
		first, err := routeQuery(t, topo, q)
		require.NoError(t, err)
		second, err := routeQuery(t, topo, q)
		require.NoError(t, err)
		assert.True(first.Equal(second), "query: %s", q)
	}
}

func TestBindingTablesRouteIdentically(t *testing.T) {
	assert := assert.New(t)
	topo := testTopology(t)

	for _, v := range []int64{0, 1, 5, 10, 4242} {
		a, err := routeQuery(t, topo, "SELECT * FROM t_order WHERE order_id = ?", v)
		require.NoError(t, err)
		b, err := routeQuery(t, topo, "SELECT * FROM t_order_item WHERE order_id = ?", v)
		require.NoError(t, err)

		require.Len(t, a.Units, 1)
		require.Len(t, b.Units, 1)
		ta, _ := a.Units[0].ActualTableName("t_order")
		tb, _ := b.Units[0].ActualTableName("t_order_item")
		assert.Equal(ta[len("t_order"):], tb[len("t_order_item"):], "value %d", v)
		assert.Equal(a.Units[0].DataSourceMapper, b.Units[0].DataSourceMapper)
	}
}
