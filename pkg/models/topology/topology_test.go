package topology_test

import (
	"sync"
	"testing"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/models/datanode"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/router/algorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Router {
	return &config.Router{
		DataSources:       []string{"ds_0", "ds_1"},
		DefaultDataSource: "",
		Sharding: config.ShardingCfg{
			Tables: map[string]*config.TableCfg{
				"t_order": {
					ActualDataNodes:  "ds_${0..1}.t_order_${0..1}",
					DatabaseStrategy: &config.StrategyCfg{Type: config.StrategyStandard, Column: "user_id", Algorithm: "mod2"},
					TableStrategy:    &config.StrategyCfg{Type: config.StrategyStandard, Column: "order_id", Algorithm: "mod2"},
				},
				"t_order_item": {
					ActualDataNodes: "ds_${0..1}.t_order_item_${0..1}",
				},
				"T_User": {},
			},
			BindingTables:   [][]string{{"t_order", "t_order_item"}},
			BroadcastTables: []string{"t_dict"},
			DefaultDatabaseStrategy: &config.StrategyCfg{
				Type: config.StrategyStandard, Column: "user_id", Algorithm: "mod2",
			},
			Algorithms: map[string]*config.AlgorithmCfg{
				"mod2": {Type: "MOD", Props: map[string]string{"sharding-count": "2"}},
			},
		},
		SingleTables: map[string]string{"t_config": "ds_1.t_config"},
	}
}

func TestNewTopology(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.New(testConfig())
	require.NoError(t, err)

	assert.Equal(topology.CategorySharded, topo.Category("T_ORDER"))
	assert.Equal(topology.CategorySharded, topo.Category("t_user"))
	assert.Equal(topology.CategoryBroadcast, topo.Category("t_dict"))
	assert.Equal(topology.CategorySingle, topo.Category("t_config"))
	assert.Equal(topology.CategoryUnknown, topo.Category("t_missing"))

	rule, ok := topo.TableRule("t_order")
	require.True(t, ok)
	assert.Equal([]string{"ds_0", "ds_1"}, rule.ActualDataSources())
	assert.Equal([]string{"t_order_0", "t_order_1"}, rule.ActualTableNames("ds_1"))
	assert.Equal(1, rule.FindActualTableIndex("ds_0", "t_order_1"))
	assert.Equal([]string{"user_id", "order_id"}, rule.ShardingColumns())
	assert.True(rule.IsShardingColumn("ORDER_ID"))

	item, _ := topo.TableRule("t_order_item")
	assert.True(item.IsShardingColumn("user_id"), "default database strategy applies")
	assert.False(item.IsShardingColumn("order_id"))

	user, _ := topo.TableRule("t_user")
	assert.Equal([]string{"ds_0", "ds_1"}, user.ActualDataSources())
	assert.Equal([]string{"T_User"}, user.ActualTableNames("ds_0"))

	assert.True(topo.AllInOneBindingGroup([]string{"t_order", "T_ORDER_ITEM"}))
	assert.False(topo.AllInOneBindingGroup([]string{"t_order", "t_user"}))
	assert.Equal([]string{"t_order", "t_order_item"}, topo.BindingGroup("t_order_item"))

	assert.Len(topo.DataNodes("t_dict"), 2)
	assert.Equal([]datanode.DataNode{{DataSourceName: "ds_1", TableName: "t_config"}}, topo.DataNodes("t_config"))
	assert.Nil(topo.DataNodes("t_missing"))
}

func TestNewTopologyBadAlgorithm(t *testing.T) {
	cfg := testConfig()
	cfg.Sharding.Algorithms["mod2"].Props = map[string]string{}

	_, err := topology.New(cfg)
	assert.True(t, sherror.HasCode(err, sherror.SHR_CONFIG_ERROR))
}

func TestStrategyShard(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.New(testConfig())
	require.NoError(t, err)
	rule, _ := topo.TableRule("t_order")

	got, err := rule.DatabaseStrategy.Shard("t_order", rule.ActualDataSources(), map[string]algorithm.ColumnValues{
		"user_id": {Exact: []any{int64(3)}},
	})
	assert.NoError(err)
	assert.Equal([]string{"ds_1"}, got)

	got, err = rule.DatabaseStrategy.Shard("t_order", rule.ActualDataSources(), map[string]algorithm.ColumnValues{
		"order_id": {Exact: []any{int64(3)}},
	})
	assert.NoError(err)
	assert.Equal([]string{"ds_0", "ds_1"}, got, "no value for the strategy column")

	var none *topology.Strategy
	got, err = none.Shard("t", []string{"a"}, nil)
	assert.NoError(err)
	assert.Equal([]string{"a"}, got)
}

func TestRegistryCopyOnWrite(t *testing.T) {
	assert := assert.New(t)

	r := topology.NewRegistry(map[string]datanode.DataNode{"T_A": datanode.NewDataNode("ds_0", "t_a")})
	r2 := r.With("t_b", datanode.NewDataNode("ds_1", "t_b"))

	assert.Equal(1, r.Len())
	assert.Equal(2, r2.Len())
	_, ok := r2.Lookup("t_a")
	assert.True(ok)
	assert.Equal([]string{"t_a", "t_b"}, r2.Names())
	assert.Equal(map[string]int{"ds_0": 1, "ds_1": 1}, r2.LoadByDataSource())

	r3 := r2.Without("T_B")
	assert.Equal(1, r3.Len())
	assert.Equal(2, r2.Len())
}

func TestHolderUpdate(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.New(testConfig())
	require.NoError(t, err)
	h := topology.NewHolder(topo)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.Update(func(cur *topology.Topology) (*topology.Topology, error) {
				name := "t_new_" + string(rune('a'+i))
				return cur.WithSingleTables(cur.SingleTables().With(name, datanode.NewDataNode("ds_0", name))), nil
			})
			assert.NoError(err)
		}(i)
	}
	wg.Wait()

	cur := h.Get()
	assert.Equal(writers+1, cur.SingleTables().Len())
	assert.Equal(uint64(writers), cur.Version)
	assert.Equal(1, topo.SingleTables().Len(), "original snapshot untouched")

	old := h.Swap(topo)
	assert.Equal(cur, old)
	assert.Equal(uint64(writers+1), h.Get().Version)
	assert.Equal(1, h.Get().SingleTables().Len())
}

func TestHolderUpdateError(t *testing.T) {
	topo, err := topology.New(testConfig())
	require.NoError(t, err)
	h := topology.NewHolder(topo)

	_, err = h.Update(func(*topology.Topology) (*topology.Topology, error) {
		return nil, sherror.NewByCode(sherror.SHR_TABLE_EXISTS)
	})
	assert.True(t, sherror.HasCode(err, sherror.SHR_TABLE_EXISTS))
	assert.Same(t, topo, h.Get())
}
