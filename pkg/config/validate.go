package config

import (
	"github.com/pg-sharding/shroute/pkg/models/datanode"
	"github.com/pg-sharding/shroute/pkg/models/sherror"
)

// Validate checks structural consistency of the router configuration.
// Algorithm properties are checked later, when the topology is built.
func (r *Router) Validate() error {
	if len(r.DataSources) == 0 {
		return sherror.New(sherror.SHR_CONFIG_ERROR, "no data sources configured")
	}

	known := map[string]struct{}{}
	for _, ds := range r.DataSources {
		if ds == "" {
			return sherror.New(sherror.SHR_CONFIG_ERROR, "empty data source name")
		}
		if _, ok := known[ds]; ok {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "duplicate data source \"%s\"", ds)
		}
		known[ds] = struct{}{}
	}

	if r.DefaultDataSource != "" {
		if _, ok := known[r.DefaultDataSource]; !ok {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "default data source \"%s\" is not declared", r.DefaultDataSource)
		}
	}

	category := map[string]string{}
	claim := func(table, kind string) error {
		if prev, ok := category[table]; ok {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\" is both %s and %s", table, prev, kind)
		}
		category[table] = kind
		return nil
	}

	cardinality := map[string]int{}
	for name, tbl := range r.Sharding.Tables {
		if err := claim(name, "sharded"); err != nil {
			return err
		}
		if tbl == nil {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\" has empty rule", name)
		}
		n := len(r.DataSources)
		if tbl.ActualDataNodes != "" {
			nodes, err := datanode.ParseDataNodes(tbl.ActualDataNodes)
			if err != nil {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\": %s", name, err)
			}
			if len(nodes) == 0 {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\" has no actual data nodes", name)
			}
			for _, dn := range nodes {
				if _, ok := known[dn.DataSourceName]; !ok {
					return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\" references unknown data source \"%s\"", name, dn.DataSourceName)
				}
			}
			n = len(nodes)
		}
		cardinality[name] = n

		for _, st := range []*StrategyCfg{tbl.DatabaseStrategy, tbl.TableStrategy} {
			if err := r.validateStrategy(name, st); err != nil {
				return err
			}
		}
	}

	for _, st := range []*StrategyCfg{r.Sharding.DefaultDatabaseStrategy, r.Sharding.DefaultTableStrategy} {
		if err := r.validateStrategy("<default>", st); err != nil {
			return err
		}
	}

	for _, name := range r.Sharding.BroadcastTables {
		if err := claim(name, "broadcast"); err != nil {
			return err
		}
	}

	for name, node := range r.SingleTables {
		if err := claim(name, "single"); err != nil {
			return err
		}
		dn, err := datanode.ParseDataNode(node)
		if err != nil {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "single table \"%s\": %s", name, err)
		}
		if _, ok := known[dn.DataSourceName]; !ok {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "single table \"%s\" references unknown data source \"%s\"", name, dn.DataSourceName)
		}
	}

	for _, group := range r.Sharding.BindingTables {
		if len(group) == 0 {
			return sherror.New(sherror.SHR_CONFIG_ERROR, "empty binding table group")
		}
		for _, member := range group {
			if category[member] != "sharded" {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR, "binding table \"%s\" is not a sharded table", member)
			}
			if cardinality[member] != cardinality[group[0]] {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR,
					"binding tables \"%s\" and \"%s\" have different data node counts", group[0], member)
			}
		}
	}

	if r.Shadow != nil {
		for prod, shadow := range r.Shadow.DataSources {
			if _, ok := known[prod]; !ok {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR, "shadow rule references unknown data source \"%s\"", prod)
			}
			if shadow == "" || shadow == prod {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR, "invalid shadow data source for \"%s\"", prod)
			}
		}
		for name, tbl := range r.Shadow.Tables {
			if tbl.Column == "" || len(tbl.Values) == 0 {
				return sherror.Newf(sherror.SHR_CONFIG_ERROR, "shadow table \"%s\" needs a column and tag values", name)
			}
		}
	}

	switch r.Lock.Type {
	case "", LockLocal:
	case LockEtcd:
		if len(r.Lock.Endpoints) == 0 {
			return sherror.New(sherror.SHR_CONFIG_ERROR, "etcd lock requires endpoints")
		}
	default:
		return sherror.Newf(sherror.SHR_CONFIG_ERROR, "unknown lock type \"%s\"", r.Lock.Type)
	}

	return nil
}

func (r *Router) validateStrategy(table string, st *StrategyCfg) error {
	if st == nil {
		return nil
	}
	switch st.Type {
	case StrategyNone:
		return nil
	case StrategyStandard, "":
		if st.Column == "" {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\": standard strategy requires a column", table)
		}
	case StrategyComplex:
		if len(st.Columns) == 0 {
			return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\": complex strategy requires columns", table)
		}
	default:
		return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\": unknown strategy type \"%s\"", table, st.Type)
	}
	if _, ok := r.Sharding.Algorithms[st.Algorithm]; !ok {
		return sherror.Newf(sherror.SHR_CONFIG_ERROR, "table \"%s\": unknown sharding algorithm \"%s\"", table, st.Algorithm)
	}
	return nil
}
