package topology

import (
	"sort"
	"strings"

	"github.com/pg-sharding/shroute/pkg/models/datanode"
)

// Registry is an immutable map of single (non-sharded) tables to their data node.
// Mutating methods return a new registry.
type Registry struct {
	tables map[string]datanode.DataNode
}

func NewRegistry(tables map[string]datanode.DataNode) *Registry {
	r := &Registry{tables: make(map[string]datanode.DataNode, len(tables))}
	for k, v := range tables {
		r.tables[strings.ToLower(k)] = v
	}
	return r
}

func (r *Registry) Lookup(name string) (datanode.DataNode, bool) {
	if r == nil {
		return datanode.DataNode{}, false
	}
	dn, ok := r.tables[strings.ToLower(name)]
	return dn, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tables)
}

// Names returns the registered logical names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	ret := make([]string, 0, len(r.tables))
	for k := range r.tables {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (r *Registry) With(name string, dn datanode.DataNode) *Registry {
	next := r.clone()
	next.tables[strings.ToLower(name)] = dn
	return next
}

func (r *Registry) Without(name string) *Registry {
	next := r.clone()
	delete(next.tables, strings.ToLower(name))
	return next
}

// LoadByDataSource counts single tables per data source.
func (r *Registry) LoadByDataSource() map[string]int {
	ret := map[string]int{}
	if r == nil {
		return ret
	}
	for _, dn := range r.tables {
		ret[dn.DataSourceName]++
	}
	return ret
}

func (r *Registry) clone() *Registry {
	next := &Registry{tables: map[string]datanode.DataNode{}}
	if r == nil {
		return next
	}
	for k, v := range r.tables {
		next.tables[k] = v
	}
	return next
}
