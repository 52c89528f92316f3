package shadow

import (
	"fmt"
	"strings"

	"github.com/pg-sharding/shroute/pkg/models/topology"
	"github.com/pg-sharding/shroute/pkg/shlog"
	"github.com/pg-sharding/shroute/router/condition"
	"github.com/pg-sharding/shroute/router/route"
	"github.com/pg-sharding/shroute/router/statement"
)

const HintKey = "shadow"

// IsShadow reports whether stmt carries shadow traffic: either the hint is present and
// enabled, or every alternative of the statement tags a shadow table with a shadow value.
func IsShadow(stmt *statement.Statement, topo *topology.Topology, params []any) (bool, error) {
	rule := topo.Shadow()
	if rule == nil {
		return false, nil
	}
	if rule.EnableHint {
		if v, ok := stmt.Hint(HintKey); ok && strings.EqualFold(v, "true") {
			return true, nil
		}
	}
	if stmt.Kind() != statement.KindDML {
		return false, nil
	}

	conds, err := condition.NewExtractor(topo.IsShadowColumn).Extract(stmt, params)
	if err != nil {
		return false, err
	}
	if conds.AlwaysFalse || len(conds.Conditions) == 0 {
		return false, nil
	}
	for _, c := range conds.Conditions {
		if !tagged(c, stmt, rule) {
			return false, nil
		}
	}
	return true, nil
}

func tagged(c *condition.Condition, stmt *statement.Statement, rule *topology.ShadowRule) bool {
	for _, name := range stmt.TableNames() {
		st, ok := rule.Tables[name]
		if !ok {
			continue
		}
		cv, ok := c.Values(name)[st.Column]
		if !ok || cv.IsRange() || len(cv.Exact) == 0 {
			continue
		}
		all := true
		for _, v := range cv.Exact {
			if _, ok := st.Values[fmt.Sprint(v)]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Decorate returns a copy of ctx with every data source replaced by its shadow data source.
// Data sources without a shadow counterpart are kept.
func Decorate(ctx *route.RouteContext, rule *topology.ShadowRule) *route.RouteContext {
	ret := route.NewRouteContext()
	ret.OriginalDataNodes = ctx.OriginalDataNodes
	ret.AlwaysFalse = ctx.AlwaysFalse
	for _, u := range ctx.Units {
		next := u.Clone()
		if shadow, ok := rule.DataSources[u.DataSourceMapper.ActualName]; ok {
			next.DataSourceMapper.ActualName = shadow
		}
		ret.AddUnit(next)
	}
	shlog.Zero.Debug().Str("route", ret.String()).Msg("routed to shadow data sources")
	return ret
}
