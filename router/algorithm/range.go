package algorithm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	TypeVolumeRange   = "VOLUME_RANGE"
	TypeBoundaryRange = "BOUNDARY_RANGE"
)

// partition covers the integers lo..hi inclusive.
type partition struct {
	lo, hi int64
}

// RangeAlgorithm assigns integer values to consecutive partitions; partition i is served
// by the target with numeric suffix i.
type RangeAlgorithm struct {
	typ        string
	partitions []partition
}

// NewVolumeRangeAlgorithm splits [range-lower, range-upper) into sharding-volume sized partitions,
// plus one partition below the lower bound and one at or above the upper bound.
func NewVolumeRangeAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	lower, err := intProp(props, "range-lower", true, 0)
	if err != nil {
		return nil, err
	}
	upper, err := intProp(props, "range-upper", true, 0)
	if err != nil {
		return nil, err
	}
	volume, err := intProp(props, "sharding-volume", true, 0)
	if err != nil {
		return nil, err
	}
	if volume <= 0 {
		return nil, fmt.Errorf("sharding-volume must be positive, got %d", volume)
	}
	if upper <= lower {
		return nil, fmt.Errorf("range-upper %d must be greater than range-lower %d", upper, lower)
	}

	bounds := []int64{lower}
	for b := lower + volume; b < upper; b += volume {
		bounds = append(bounds, b)
	}
	bounds = append(bounds, upper)
	return &RangeAlgorithm{typ: TypeVolumeRange, partitions: partitionsFromBounds(bounds)}, nil
}

// NewBoundaryRangeAlgorithm builds partitions from the ascending sharding-ranges list, e.g. "1,5,10"
// gives (-inf,1) [1,5) [5,10) [10,+inf).
func NewBoundaryRangeAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	raw, ok := props["sharding-ranges"]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("property \"sharding-ranges\" is required")
	}
	var bounds []int64
	for _, s := range strings.Split(raw, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("property \"sharding-ranges\": %w", err)
		}
		bounds = append(bounds, n)
	}
	if !sort.SliceIsSorted(bounds, func(i, j int) bool { return bounds[i] < bounds[j] }) {
		return nil, fmt.Errorf("sharding-ranges must be ascending")
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] == bounds[i-1] {
			return nil, fmt.Errorf("duplicate boundary %d in sharding-ranges", bounds[i])
		}
	}
	return &RangeAlgorithm{typ: TypeBoundaryRange, partitions: partitionsFromBounds(bounds)}, nil
}

func partitionsFromBounds(bounds []int64) []partition {
	ret := make([]partition, 0, len(bounds)+1)
	ret = append(ret, partition{lo: math.MinInt64, hi: bounds[0] - 1})
	for i := 1; i < len(bounds); i++ {
		ret = append(ret, partition{lo: bounds[i-1], hi: bounds[i] - 1})
	}
	ret = append(ret, partition{lo: bounds[len(bounds)-1], hi: math.MaxInt64})
	return ret
}

func (r *RangeAlgorithm) Type() string {
	return r.typ
}

func (r *RangeAlgorithm) partitionOf(v int64) int64 {
	i := sort.Search(len(r.partitions), func(i int) bool { return r.partitions[i].hi >= v })
	return int64(i)
}

func (r *RangeAlgorithm) Select(targets []string, value ShardingValue) ([]string, error) {
	col, cv, err := value.single()
	if err != nil {
		return nil, err
	}

	if cv.IsRange() {
		lo, hasLo, hi, hasHi, err := cv.Range.IntBounds()
		if err != nil {
			return nil, invalidValue(value.LogicTable, col, cv.Range.String(), err)
		}
		if !hasLo {
			lo = math.MinInt64
		}
		if !hasHi {
			hi = math.MaxInt64
		}
		idx := map[int64]struct{}{}
		for i, p := range r.partitions {
			if max(p.lo, lo) <= min(p.hi, hi) {
				idx[int64(i)] = struct{}{}
			}
		}
		return targetsByIndexes(targets, idx), nil
	}

	ret := make([]string, 0, len(cv.Exact))
	var missed any
	for _, raw := range cv.Exact {
		v, err := ToInt64(raw)
		if err != nil {
			return nil, invalidValue(value.LogicTable, col, raw, err)
		}
		t, ok := targetByIndex(targets, r.partitionOf(v))
		if !ok {
			missed = raw
			continue
		}
		ret = appendUnique(ret, t)
	}
	if len(ret) == 0 && missed != nil {
		return nil, noTarget(missed, targets)
	}
	return orderLike(targets, ret), nil
}
