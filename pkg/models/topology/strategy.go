package topology

import (
	"strings"

	"github.com/pg-sharding/shroute/pkg/config"
	"github.com/pg-sharding/shroute/router/algorithm"
)

// Strategy binds sharding columns to an algorithm. A nil strategy selects every target.
type Strategy struct {
	Type      string
	Columns   []string
	Algorithm algorithm.ShardingAlgorithm
}

func NewStrategy(cfg *config.StrategyCfg, algs map[string]algorithm.ShardingAlgorithm) *Strategy {
	if cfg == nil || cfg.Type == config.StrategyNone {
		return nil
	}
	s := &Strategy{
		Type:      cfg.Type,
		Algorithm: algs[cfg.Algorithm],
	}
	if s.Type == "" {
		s.Type = config.StrategyStandard
	}
	if s.Type == config.StrategyComplex {
		for _, c := range cfg.Columns {
			s.Columns = append(s.Columns, strings.ToLower(c))
		}
	} else {
		s.Columns = []string{strings.ToLower(cfg.Column)}
	}
	return s
}

// Shard narrows targets using the values known for the strategy columns.
// Without any value for its columns the strategy is unconditional and keeps all targets.
func (s *Strategy) Shard(table string, targets []string, values map[string]algorithm.ColumnValues) ([]string, error) {
	if s == nil || s.Algorithm == nil {
		return targets, nil
	}

	sv := algorithm.ShardingValue{
		LogicTable: table,
		Columns:    map[string]algorithm.ColumnValues{},
	}
	for _, col := range s.Columns {
		if cv, ok := values[col]; ok {
			sv.Columns[col] = cv
		}
	}
	if len(sv.Columns) == 0 {
		return targets, nil
	}

	selected, err := s.Algorithm.Select(targets, sv)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		allowed[t] = struct{}{}
	}
	ret := make([]string, 0, len(selected))
	for _, t := range selected {
		if _, ok := allowed[t]; ok {
			ret = append(ret, t)
		}
	}
	return ret, nil
}

func (s *Strategy) HasColumn(col string) bool {
	if s == nil {
		return false
	}
	col = strings.ToLower(col)
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}
