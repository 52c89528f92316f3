package topology

import (
	"github.com/pg-sharding/shroute/pkg/models/datanode"
)

// TableRule describes one sharded logical table.
type TableRule struct {
	LogicTable       string
	ActualDataNodes  []datanode.DataNode
	DatabaseStrategy *Strategy
	TableStrategy    *Strategy

	dataSources []string
	tablesByDS  map[string][]string
}

func NewTableRule(logicTable string, nodes []datanode.DataNode, dbs, tbs *Strategy) *TableRule {
	r := &TableRule{
		LogicTable:       logicTable,
		ActualDataNodes:  nodes,
		DatabaseStrategy: dbs,
		TableStrategy:    tbs,
		tablesByDS:       map[string][]string{},
	}
	for _, dn := range nodes {
		if _, ok := r.tablesByDS[dn.DataSourceName]; !ok {
			r.dataSources = append(r.dataSources, dn.DataSourceName)
		}
		r.tablesByDS[dn.DataSourceName] = append(r.tablesByDS[dn.DataSourceName], dn.TableName)
	}
	return r
}

// ActualDataSources returns data sources in the order they first appear among the data nodes.
func (r *TableRule) ActualDataSources() []string {
	return r.dataSources
}

func (r *TableRule) ActualTableNames(dataSource string) []string {
	return r.tablesByDS[dataSource]
}

// DataNode returns the node for dataSource and actualTable.
func (r *TableRule) DataNode(dataSource, actualTable string) (datanode.DataNode, bool) {
	for _, dn := range r.ActualDataNodes {
		if dn.DataSourceName == dataSource && dn.TableName == actualTable {
			return dn, true
		}
	}
	return datanode.DataNode{}, false
}

// FindActualTableIndex returns the position of actualTable within the tables on dataSource, or -1.
func (r *TableRule) FindActualTableIndex(dataSource, actualTable string) int {
	for i, t := range r.tablesByDS[dataSource] {
		if t == actualTable {
			return i
		}
	}
	return -1
}

// ActualTableByIndex is the inverse of FindActualTableIndex.
func (r *TableRule) ActualTableByIndex(dataSource string, idx int) (string, bool) {
	tables := r.tablesByDS[dataSource]
	if idx < 0 || idx >= len(tables) {
		return "", false
	}
	return tables[idx], true
}

func (r *TableRule) IsShardingColumn(col string) bool {
	return r.DatabaseStrategy.HasColumn(col) || r.TableStrategy.HasColumn(col)
}

// ShardingColumns returns database columns first, then table columns, without repeats.
func (r *TableRule) ShardingColumns() []string {
	var ret []string
	seen := map[string]struct{}{}
	for _, s := range []*Strategy{r.DatabaseStrategy, r.TableStrategy} {
		if s == nil {
			continue
		}
		for _, c := range s.Columns {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				ret = append(ret, c)
			}
		}
	}
	return ret
}
