package algorithm

import (
	"fmt"

	"github.com/pg-sharding/shroute/pkg/models/hashfunction"
)

const (
	TypeMod     = "MOD"
	TypeHashMod = "HASH_MOD"
)

// ModAlgorithm routes integer values by value mod sharding-count.
type ModAlgorithm struct {
	count int64
}

func NewModAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	n, err := intProp(props, "sharding-count", true, 0)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("sharding-count must be positive, got %d", n)
	}
	return &ModAlgorithm{count: n}, nil
}

func (m *ModAlgorithm) Type() string {
	return TypeMod
}

func (m *ModAlgorithm) mod(v int64) int64 {
	r := v % m.count
	if r < 0 {
		r += m.count
	}
	return r
}

func (m *ModAlgorithm) Select(targets []string, value ShardingValue) ([]string, error) {
	col, cv, err := value.single()
	if err != nil {
		return nil, err
	}

	if cv.IsRange() {
		lo, hasLo, hi, hasHi, err := cv.Range.IntBounds()
		if err != nil {
			return nil, invalidValue(value.LogicTable, col, cv.Range.String(), err)
		}
		if hasLo && hasHi && hi < lo {
			return []string{}, nil
		}
		if !hasLo || !hasHi || uint64(hi)-uint64(lo) >= uint64(m.count-1) {
			return targets, nil
		}
		idx := map[int64]struct{}{}
		for v := lo; v <= hi; v++ {
			idx[m.mod(v)] = struct{}{}
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
		t, ok := targetByIndex(targets, m.mod(v))
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

// HashModAlgorithm hashes the value first, so it accepts strings as well as integers.
type HashModAlgorithm struct {
	count     int64
	hash      hashfunction.HashFunctionType
	valueType string
}

func NewHashModAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	n, err := intProp(props, "sharding-count", true, 0)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("sharding-count must be positive, got %d", n)
	}
	hf, err := hashfunction.HashFunctionByName(props["hash-function"])
	if err != nil {
		return nil, err
	}
	vt := props["value-type"]
	if err := hashfunction.ValidateValueType(vt); err != nil {
		return nil, err
	}
	return &HashModAlgorithm{count: n, hash: hf, valueType: vt}, nil
}

func (h *HashModAlgorithm) Type() string {
	return TypeHashMod
}

func (h *HashModAlgorithm) Select(targets []string, value ShardingValue) ([]string, error) {
	col, cv, err := value.single()
	if err != nil {
		return nil, err
	}
	if cv.IsRange() {
		return targets, nil
	}

	ret := make([]string, 0, len(cv.Exact))
	var missed any
	for _, raw := range cv.Exact {
		in := raw
		_, isStr := stringish(raw)
		if !isStr || h.valueType == hashfunction.ValueTypeInteger || h.hash == hashfunction.HashFunctionIdent {
			n, err := ToInt64(raw)
			if err != nil {
				return nil, invalidValue(value.LogicTable, col, raw, err)
			}
			in = n
		}

		hashed, err := hashfunction.ApplyHashFunction(in, h.valueType, h.hash)
		if err != nil {
			return nil, invalidValue(value.LogicTable, col, raw, err)
		}
		t, ok := targetByIndex(targets, int64(hashed%uint64(h.count)))
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
