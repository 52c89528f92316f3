package route

import (
	"slices"
	"sort"
	"strings"

	"github.com/pg-sharding/shroute/pkg/models/datanode"
)

// RouteContext is the routing plan of one statement.
// It is built by a single routing pass and must not be modified once returned to the caller.
type RouteContext struct {
	Units []*RouteUnit `json:"units"`

	// OriginalDataNodes holds, for each insert row, the data nodes the row was routed to.
	OriginalDataNodes [][]datanode.DataNode `json:"original_data_nodes,omitempty"`

	// AlwaysFalse is set when the statement predicate can never match;
	// the plan then still holds one unit so the statement can be executed for its metadata.
	AlwaysFalse bool `json:"always_false,omitempty"`
}

func NewRouteContext() *RouteContext {
	return &RouteContext{}
}

func (c *RouteContext) IsEmpty() bool {
	return len(c.Units) == 0
}

// AddUnit adds u unless an equal unit is already present.
func (c *RouteContext) AddUnit(u *RouteUnit) {
	for _, o := range c.Units {
		if o.Equal(u) {
			return
		}
	}
	c.Units = append(c.Units, u)
}

// PutUnit merges table mappers into the unit routed to the data source, creating it if needed.
func (c *RouteContext) PutUnit(ds RouteMapper, tables ...RouteMapper) {
	for _, u := range c.Units {
		if u.DataSourceMapper == ds {
			u.AddTableMappers(tables...)
			return
		}
	}
	c.Units = append(c.Units, NewRouteUnit(ds, tables...))
}

// DataSourceNames returns the distinct actual data source names in unit order.
func (c *RouteContext) DataSourceNames() []string {
	seen := map[string]struct{}{}
	var ret []string
	for _, u := range c.Units {
		name := u.DataSourceMapper.ActualName
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			ret = append(ret, name)
		}
	}
	return ret
}

// LogicTableNames returns every logical table that has a mapper in some unit.
func (c *RouteContext) LogicTableNames() []string {
	seen := map[string]struct{}{}
	var ret []string
	for _, u := range c.Units {
		for _, m := range u.TableMappers {
			if _, ok := seen[m.LogicName]; !ok {
				seen[m.LogicName] = struct{}{}
				ret = append(ret, m.LogicName)
			}
		}
	}
	return ret
}

// ActualTableNames returns the physical names of a logical table on one data source.
func (c *RouteContext) ActualTableNames(dataSource, logic string) []string {
	logic = strings.ToLower(logic)
	var ret []string
	for _, u := range c.Units {
		if u.DataSourceMapper.ActualName != dataSource {
			continue
		}
		if actual, ok := u.ActualTableName(logic); ok && !slices.Contains(ret, actual) {
			ret = append(ret, actual)
		}
	}
	return ret
}

// Sort orders units by data source position in order, then by their table mappers.
func (c *RouteContext) Sort(order func(ds string) int) {
	sort.SliceStable(c.Units, func(i, j int) bool {
		a, b := c.Units[i], c.Units[j]
		oa, ob := order(a.DataSourceMapper.ActualName), order(b.DataSourceMapper.ActualName)
		if oa != ob {
			return oa < ob
		}
		return a.key() < b.key()
	})
}

// Equal reports whether both contexts hold the same set of units.
func (c *RouteContext) Equal(o *RouteContext) bool {
	if len(c.Units) != len(o.Units) {
		return false
	}
	for _, u := range c.Units {
		found := false
		for _, ou := range o.Units {
			if u.Equal(ou) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return c.AlwaysFalse == o.AlwaysFalse
}

func (c *RouteContext) String() string {
	parts := make([]string, 0, len(c.Units))
	for _, u := range c.Units {
		parts = append(parts, u.String())
	}
	return strings.Join(parts, " ")
}
