package topology

import (
	"sort"
	"strings"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/pkg/models/datanode"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/router/algorithm"
)

type Category int

const (
	CategoryUnknown = Category(iota)
	CategorySharded
	CategoryBroadcast
	CategorySingle
)

func (c Category) String() string {
	switch c {
	case CategorySharded:
		return "sharded"
	case CategoryBroadcast:
		return "broadcast"
	case CategorySingle:
		return "single"
	}
	return "unknown"
}

type ShadowTable struct {
	Column string
	Values map[string]struct{}
}

type ShadowRule struct {
	DataSources map[string]string
	Tables      map[string]ShadowTable
	EnableHint  bool
}

// Topology is an immutable snapshot of the logical to physical mapping.
// It is never modified after construction; use the With* methods or a Holder to derive a new one.
type Topology struct {
	Version uint64

	DataSources       []string
	DefaultDataSource string
	MaxRowCount       int64

	tables        map[string]*TableRule
	bindingGroups [][]string
	bindingOf     map[string]int
	broadcast     map[string]struct{}
	singles       *Registry
	shadow        *ShadowRule
}

// New builds a topology from a router configuration.
func New(cfg *config.Router) (*Topology, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	algs := map[string]algorithm.ShardingAlgorithm{}
	for name, acfg := range cfg.Sharding.Algorithms {
		if acfg == nil {
			return nil, sherror.Newf(sherror.SHR_CONFIG_ERROR, "algorithm \"%s\" is empty", name)
		}
		alg, err := algorithm.New(acfg.Type, acfg.Props)
		if err != nil {
			return nil, err
		}
		algs[name] = alg
	}

	t := &Topology{
		DataSources:       append([]string(nil), cfg.DataSources...),
		DefaultDataSource: cfg.DefaultDataSource,
		MaxRowCount:       cfg.MaxRowCount,
		tables:            map[string]*TableRule{},
		bindingOf:         map[string]int{},
		broadcast:         map[string]struct{}{},
	}

	for name, tcfg := range cfg.Sharding.Tables {
		lname := strings.ToLower(name)
		var nodes []datanode.DataNode
		if tcfg.ActualDataNodes == "" {
			for _, ds := range cfg.DataSources {
				nodes = append(nodes, datanode.NewDataNode(ds, name))
			}
		} else {
			var err error
			nodes, err = datanode.ParseDataNodes(tcfg.ActualDataNodes)
			if err != nil {
				return nil, sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\": %s", name, err)
			}
		}

		dbCfg, tbCfg := tcfg.DatabaseStrategy, tcfg.TableStrategy
		if dbCfg == nil {
			dbCfg = cfg.Sharding.DefaultDatabaseStrategy
		}
		if tbCfg == nil {
			tbCfg = cfg.Sharding.DefaultTableStrategy
		}
		t.tables[lname] = NewTableRule(lname, nodes, NewStrategy(dbCfg, algs), NewStrategy(tbCfg, algs))
	}

	for i, group := range cfg.Sharding.BindingTables {
		members := make([]string, 0, len(group))
		for _, m := range group {
			lm := strings.ToLower(m)
			members = append(members, lm)
			t.bindingOf[lm] = i
		}
		t.bindingGroups = append(t.bindingGroups, members)
	}

	for _, b := range cfg.Sharding.BroadcastTables {
		t.broadcast[strings.ToLower(b)] = struct{}{}
	}

	singles := map[string]datanode.DataNode{}
	for name, node := range cfg.SingleTables {
		dn, err := datanode.ParseDataNode(node)
		if err != nil {
			return nil, sherror.Newf(sherror.SHR_CONFIG_ERROR, "single table \"%s\": %s", name, err)
		}
		singles[name] = dn
	}
	t.singles = NewRegistry(singles)

	if cfg.Shadow != nil {
		sr := &ShadowRule{
			DataSources: map[string]string{},
			Tables:      map[string]ShadowTable{},
			EnableHint:  cfg.Shadow.EnableHint,
		}
		for k, v := range cfg.Shadow.DataSources {
			sr.DataSources[k] = v
		}
		for name, st := range cfg.Shadow.Tables {
			values := map[string]struct{}{}
			for _, v := range st.Values {
				values[v] = struct{}{}
			}
			sr.Tables[strings.ToLower(name)] = ShadowTable{Column: strings.ToLower(st.Column), Values: values}
		}
		t.shadow = sr
	}

	return t, nil
}

func (t *Topology) clone() *Topology {
	next := *t
	return &next
}

// WithSingleTables returns a copy of the topology using the given registry.
func (t *Topology) WithSingleTables(r *Registry) *Topology {
	next := t.clone()
	next.singles = r
	return next
}

func (t *Topology) SingleTables() *Registry {
	return t.singles
}

func (t *Topology) Shadow() *ShadowRule {
	return t.shadow
}

func (t *Topology) Category(table string) Category {
	name := strings.ToLower(table)
	if _, ok := t.tables[name]; ok {
		return CategorySharded
	}
	if _, ok := t.broadcast[name]; ok {
		return CategoryBroadcast
	}
	if _, ok := t.singles.Lookup(name); ok {
		return CategorySingle
	}
	return CategoryUnknown
}

func (t *Topology) TableRule(table string) (*TableRule, bool) {
	r, ok := t.tables[strings.ToLower(table)]
	return r, ok
}

// ShardingTableNames returns the sharded tables among names, in input order.
func (t *Topology) ShardingTableNames(names []string) []string {
	var ret []string
	for _, n := range names {
		if t.Category(n) == CategorySharded {
			ret = append(ret, strings.ToLower(n))
		}
	}
	return ret
}

func (t *Topology) IsBroadcast(table string) bool {
	_, ok := t.broadcast[strings.ToLower(table)]
	return ok
}

// AllBroadcast reports whether names is non-empty and every table is a broadcast table.
func (t *Topology) AllBroadcast(names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !t.IsBroadcast(n) {
			return false
		}
	}
	return true
}

func (t *Topology) BroadcastTableNames(names []string) []string {
	var ret []string
	for _, n := range names {
		if t.IsBroadcast(n) {
			ret = append(ret, strings.ToLower(n))
		}
	}
	return ret
}

// BindingGroup returns the binding group containing table, or nil.
func (t *Topology) BindingGroup(table string) []string {
	i, ok := t.bindingOf[strings.ToLower(table)]
	if !ok {
		return nil
	}
	return t.bindingGroups[i]
}

// AllInOneBindingGroup reports whether all sharded tables belong to one binding group.
func (t *Topology) AllInOneBindingGroup(names []string) bool {
	if len(names) == 0 {
		return false
	}
	first, ok := t.bindingOf[strings.ToLower(names[0])]
	if !ok {
		return false
	}
	for _, n := range names[1:] {
		if i, ok := t.bindingOf[strings.ToLower(n)]; !ok || i != first {
			return false
		}
	}
	return true
}

// DataNodes returns every physical node of a logical table, in configured order.
func (t *Topology) DataNodes(table string) []datanode.DataNode {
	name := strings.ToLower(table)
	switch t.Category(name) {
	case CategorySharded:
		return t.tables[name].ActualDataNodes
	case CategoryBroadcast:
		ret := make([]datanode.DataNode, 0, len(t.DataSources))
		for _, ds := range t.DataSources {
			ret = append(ret, datanode.NewDataNode(ds, name))
		}
		return ret
	case CategorySingle:
		dn, _ := t.singles.Lookup(name)
		return []datanode.DataNode{dn}
	}
	return nil
}

// DataSourceIndex gives the configured position of a data source, or len(DataSources) if unknown.
func (t *Topology) DataSourceIndex(ds string) int {
	for i, d := range t.DataSources {
		if d == ds {
			return i
		}
	}
	return len(t.DataSources)
}

// SortDataSources orders names by configured data source order.
func (t *Topology) SortDataSources(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ii, jj := t.DataSourceIndex(names[i]), t.DataSourceIndex(names[j])
		if ii != jj {
			return ii < jj
		}
		return names[i] < names[j]
	})
}

func (t *Topology) HasDataSource(ds string) bool {
	return t.DataSourceIndex(ds) < len(t.DataSources)
}

// ShardedTableCount is used for diagnostics.
func (t *Topology) ShardedTableCount() int {
	return len(t.tables)
}

// ShardedTables returns the sharded logical names, sorted.
func (t *Topology) ShardedTables() []string {
	ret := make([]string, 0, len(t.tables))
	for k := range t.tables {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (t *Topology) BroadcastTables() []string {
	ret := make([]string, 0, len(t.broadcast))
	for k := range t.broadcast {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (t *Topology) BindingGroups() [][]string {
	return t.bindingGroups
}

// IsShardingColumn reports whether col routes the sharded table. It satisfies condition.ColumnFilter.
func (t *Topology) IsShardingColumn(table, col string) bool {
	r, ok := t.tables[strings.ToLower(table)]
	return ok && r.IsShardingColumn(col)
}

// IsShadowColumn reports whether col is the shadow tag column of table.
func (t *Topology) IsShadowColumn(table, col string) bool {
	if t.shadow == nil {
		return false
	}
	st, ok := t.shadow.Tables[strings.ToLower(table)]
	return ok && st.Column == strings.ToLower(col)
}
