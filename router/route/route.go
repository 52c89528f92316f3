package route

import (
	"sort"
	"strings"
)

// RouteMapper maps a logical name to the physical one.
type RouteMapper struct {
	LogicName  string `json:"logic_name"`
	ActualName string `json:"actual_name"`
}

func NewRouteMapper(logic, actual string) RouteMapper {
	return RouteMapper{LogicName: logic, ActualName: actual}
}

func (m RouteMapper) String() string {
	if m.LogicName == m.ActualName {
		return m.LogicName
	}
	return m.LogicName + "->" + m.ActualName
}

// RouteUnit is one physical execution target: a data source and the tables on it taking part.
type RouteUnit struct {
	DataSourceMapper RouteMapper   `json:"data_source"`
	TableMappers     []RouteMapper `json:"tables"`
}

func NewRouteUnit(ds RouteMapper, tables ...RouteMapper) *RouteUnit {
	u := &RouteUnit{DataSourceMapper: ds}
	u.AddTableMappers(tables...)
	return u
}

// AddTableMappers appends mappers not present yet, keeping insertion order.
func (u *RouteUnit) AddTableMappers(ms ...RouteMapper) {
	for _, m := range ms {
		if !u.hasMapper(m) {
			u.TableMappers = append(u.TableMappers, m)
		}
	}
}

func (u *RouteUnit) hasMapper(m RouteMapper) bool {
	for _, o := range u.TableMappers {
		if o == m {
			return true
		}
	}
	return false
}

// ActualTableName returns the physical name of a logical table within the unit.
func (u *RouteUnit) ActualTableName(logic string) (string, bool) {
	logic = strings.ToLower(logic)
	for _, m := range u.TableMappers {
		if m.LogicName == logic {
			return m.ActualName, true
		}
	}
	return "", false
}

func (u *RouteUnit) LogicTableNames() []string {
	ret := make([]string, 0, len(u.TableMappers))
	for _, m := range u.TableMappers {
		ret = append(ret, m.LogicName)
	}
	return ret
}

// Equal compares units structurally; the order of table mappers is irrelevant.
func (u *RouteUnit) Equal(o *RouteUnit) bool {
	if u.DataSourceMapper != o.DataSourceMapper || len(u.TableMappers) != len(o.TableMappers) {
		return false
	}
	for _, m := range u.TableMappers {
		if !o.hasMapper(m) {
			return false
		}
	}
	return true
}

func (u *RouteUnit) Clone() *RouteUnit {
	return &RouteUnit{
		DataSourceMapper: u.DataSourceMapper,
		TableMappers:     append([]RouteMapper(nil), u.TableMappers...),
	}
}

func (u *RouteUnit) key() string {
	names := make([]string, 0, len(u.TableMappers))
	for _, m := range u.TableMappers {
		names = append(names, m.String())
	}
	sort.Strings(names)
	return u.DataSourceMapper.String() + "[" + strings.Join(names, ",") + "]"
}

func (u *RouteUnit) String() string {
	return u.key()
}
