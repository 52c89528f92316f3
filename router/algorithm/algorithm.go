package algorithm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pg-sharding/shroute/pkg/models/sherror"
)

//go:generate mockgen -source=./algorithm.go -destination=../mock/algorithm/mock_algorithm.go -package=mock

// ShardingAlgorithm selects, out of the ordered candidate targets, the ones a sharding value maps to.
// Implementations must be pure: the same targets and value always give the same result.
type ShardingAlgorithm interface {
	Type() string
	Select(targets []string, value ShardingValue) ([]string, error)
}

type Factory func(props map[string]string) (ShardingAlgorithm, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an algorithm type available to New. Type names are case-insensitive.
func Register(typ string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToUpper(typ)] = f
}

// New builds an algorithm of the given type from its configured properties.
func New(typ string, props map[string]string) (ShardingAlgorithm, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToUpper(typ)]
	registryMu.RUnlock()
	if !ok {
		return nil, sherror.Newf(sherror.SHR_CONFIG_ERROR, "unknown sharding algorithm type \"%s\"", typ)
	}
	if props == nil {
		props = map[string]string{}
	}
	alg, err := f(props)
	if err != nil {
		return nil, sherror.Newf(sherror.SHR_CONFIG_ERROR, "algorithm %s: %s", strings.ToUpper(typ), err)
	}
	return alg, nil
}

// Types lists registered algorithm types.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ret := make([]string, 0, len(registry))
	for k := range registry {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func init() {
	Register(TypeMod, NewModAlgorithm)
	Register(TypeHashMod, NewHashModAlgorithm)
	Register(TypeInline, NewInlineAlgorithm)
	Register(TypeComplexInline, NewComplexInlineAlgorithm)
	Register(TypeVolumeRange, NewVolumeRangeAlgorithm)
	Register(TypeBoundaryRange, NewBoundaryRangeAlgorithm)
	Register(TypeInterval, NewIntervalAlgorithm)
}

func invalidValue(table, column string, v any, err error) error {
	return sherror.Newf(sherror.SHR_INVALID_SHARDING_VALUE,
		"table \"%s\" column \"%s\": cannot use %v (%T): %s", table, column, v, v, err)
}

// noTarget is reported when none of the values has a target; values landing
// outside the candidates are skipped otherwise.
func noTarget(v any, targets []string) error {
	return sherror.Newf(sherror.SHR_ROUTING_ERROR,
		"no target for sharding value %v among [%s]", v, strings.Join(targets, ", "))
}

func intProp(props map[string]string, key string, required bool, def int64) (int64, error) {
	raw, ok := props[key]
	if !ok || strings.TrimSpace(raw) == "" {
		if required {
			return 0, fmt.Errorf("property \"%s\" is required", key)
		}
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("property \"%s\": %w", key, err)
	}
	return n, nil
}

// numericSuffix returns the trailing run of digits of a target name.
func numericSuffix(target string) (int64, bool) {
	i := len(target)
	for i > 0 && target[i-1] >= '0' && target[i-1] <= '9' {
		i--
	}
	if i == len(target) {
		return 0, false
	}
	n, err := strconv.ParseInt(target[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// hasExactSuffix reports whether target ends in suffix and the suffix is not
// a tail of a longer digit run, so t_11 does not match suffix 1.
func hasExactSuffix(target, suffix string) bool {
	if suffix == "" || !strings.HasSuffix(target, suffix) {
		return false
	}
	rest := target[:len(target)-len(suffix)]
	if rest == "" {
		return true
	}
	return !(isDigit(rest[len(rest)-1]) && isDigit(suffix[0]))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// targetByIndex finds the target whose numeric suffix equals idx.
func targetByIndex(targets []string, idx int64) (string, bool) {
	for _, t := range targets {
		if n, ok := numericSuffix(t); ok && n == idx {
			return t, true
		}
	}
	return "", false
}

// targetsByIndexes keeps target order and returns the ones whose suffix is in the set.
func targetsByIndexes(targets []string, idx map[int64]struct{}) []string {
	ret := make([]string, 0, len(idx))
	for _, t := range targets {
		if n, ok := numericSuffix(t); ok {
			if _, hit := idx[n]; hit {
				ret = append(ret, t)
			}
		}
	}
	return ret
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// orderLike returns the members of selected in the order they appear in targets.
func orderLike(targets []string, selected []string) []string {
	set := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		set[s] = struct{}{}
	}
	ret := make([]string, 0, len(selected))
	for _, t := range targets {
		if _, ok := set[t]; ok {
			ret = append(ret, t)
		}
	}
	return ret
}
