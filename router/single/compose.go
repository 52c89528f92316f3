package single

import (
	"github.com/pg-sharding/shroute/router/route"
)

// Compose combines the plan of the sharding engines with the single table plan.
//
// An empty sharding plan is replaced by the single plan. A SELECT reads each table where it
// lives, so single mappers are merged into the units of their data source. Any other statement
// keeps only data sources present in both plans.
func Compose(sharding, single *route.RouteContext, isSelect bool) *route.RouteContext {
	if single == nil || single.IsEmpty() {
		return sharding
	}
	if sharding == nil || sharding.IsEmpty() {
		return single
	}

	ret := route.NewRouteContext()
	ret.OriginalDataNodes = sharding.OriginalDataNodes
	ret.AlwaysFalse = sharding.AlwaysFalse

	mappers := map[string][]route.RouteMapper{}
	for _, u := range single.Units {
		mappers[u.DataSourceMapper.ActualName] = append(mappers[u.DataSourceMapper.ActualName], u.TableMappers...)
	}

	merged := map[string]bool{}
	for _, u := range sharding.Units {
		ds := u.DataSourceMapper.ActualName
		extra, ok := mappers[ds]
		if !ok {
			if isSelect {
				ret.AddUnit(u.Clone())
			}
			continue
		}
		next := u.Clone()
		next.AddTableMappers(extra...)
		ret.AddUnit(next)
		merged[ds] = true
	}

	if isSelect {
		for _, u := range single.Units {
			if !merged[u.DataSourceMapper.ActualName] {
				ret.AddUnit(u.Clone())
			}
		}
	}
	return ret
}
