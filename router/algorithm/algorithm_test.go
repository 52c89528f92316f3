package algorithm_test

import (
	"testing"

	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/router/algorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tcase struct {
	name  string
	value algorithm.ShardingValue
	exp   []string
	code  string
}

func runCases(t *testing.T, alg algorithm.ShardingAlgorithm, targets []string, cases []tcase) {
	t.Helper()
	assert := assert.New(t)

	for _, tt := range cases {
		got, err := alg.Select(targets, tt.value)
		if tt.code != "" {
			assert.Error(err, tt.name)
			assert.True(sherror.HasCode(err, tt.code), "%s: %v", tt.name, err)
			continue
		}
		assert.NoError(err, tt.name)
		assert.Equal(tt.exp, got, tt.name)
	}
}

func mustNew(t *testing.T, typ string, props map[string]string) algorithm.ShardingAlgorithm {
	t.Helper()
	alg, err := algorithm.New(typ, props)
	require.NoError(t, err)
	return alg
}

func TestModAlgorithm(t *testing.T) {
	alg := mustNew(t, "mod", map[string]string{"sharding-count": "4"})
	targets := []string{"ds_0", "ds_1", "ds_2", "ds_3"}

	runCases(t, alg, targets, []tcase{
		{name: "exact", value: algorithm.NewExactValue("t_order", "order_id", int64(5)), exp: []string{"ds_1"}},
		{name: "numeric string", value: algorithm.NewExactValue("t_order", "order_id", "5"), exp: []string{"ds_1"}},
		{name: "negative", value: algorithm.NewExactValue("t_order", "order_id", int64(-3)), exp: []string{"ds_1"}},
		{name: "in list", value: algorithm.NewExactValue("t_order", "order_id", int64(5), int64(2), int64(1)), exp: []string{"ds_1", "ds_2"}},
		{name: "short range", value: algorithm.NewRangeValue("t_order", "order_id", algorithm.Closed(int64(1), int64(2))), exp: []string{"ds_1", "ds_2"}},
		{name: "exclusive bounds", value: algorithm.NewRangeValue("t_order", "order_id", algorithm.Range{
			Lower: &algorithm.Bound{Value: int64(1)},
			Upper: &algorithm.Bound{Value: int64(3)},
		}), exp: []string{"ds_2"}},
		{name: "wide range", value: algorithm.NewRangeValue("t_order", "order_id", algorithm.Closed(int64(1), int64(10))), exp: targets},
		{name: "open range", value: algorithm.NewRangeValue("t_order", "order_id", algorithm.GreaterThan(int64(5))), exp: targets},
		{name: "not a number", value: algorithm.NewExactValue("t_order", "order_id", "abc"), code: sherror.SHR_INVALID_SHARDING_VALUE},
		{name: "fraction", value: algorithm.NewExactValue("t_order", "order_id", 1.5), code: sherror.SHR_INVALID_SHARDING_VALUE},
	})

	runCases(t, alg, []string{"ds_0", "ds_1"}, []tcase{
		{name: "missing target", value: algorithm.NewExactValue("t_order", "order_id", int64(3)), code: sherror.SHR_ROUTING_ERROR},
	})
}

func TestModAlgorithmExactSuffix(t *testing.T) {
	alg := mustNew(t, algorithm.TypeMod, map[string]string{"sharding-count": "12"})
	targets := []string{"t_order_1", "t_order_11"}

	runCases(t, alg, targets, []tcase{
		{name: "one", value: algorithm.NewExactValue("t_order", "id", int64(1)), exp: []string{"t_order_1"}},
		{name: "eleven", value: algorithm.NewExactValue("t_order", "id", int64(11)), exp: []string{"t_order_11"}},
	})
}

func TestModAlgorithmDeterministic(t *testing.T) {
	assert := assert.New(t)

	alg := mustNew(t, algorithm.TypeMod, map[string]string{"sharding-count": "4"})
	targets := []string{"ds_0", "ds_1", "ds_2", "ds_3"}

	for v := int64(-20); v < 20; v++ {
		a, err := alg.Select(targets, algorithm.NewExactValue("t", "id", v))
		assert.NoError(err)
		b, err := alg.Select(targets, algorithm.NewExactValue("t", "id", v))
		assert.NoError(err)
		assert.Equal(a, b)
		assert.Len(a, 1)
	}
}

func TestHashModAlgorithm(t *testing.T) {
	assert := assert.New(t)

	targets := []string{"ds_0", "ds_1", "ds_2", "ds_3"}

	ident := mustNew(t, algorithm.TypeHashMod, map[string]string{"sharding-count": "4", "hash-function": "identity"})
	runCases(t, ident, targets, []tcase{
		{name: "identity", value: algorithm.NewExactValue("t", "id", int64(-6)), exp: []string{"ds_2"}},
		{name: "identity rejects text", value: algorithm.NewExactValue("t", "id", "abc"), code: sherror.SHR_INVALID_SHARDING_VALUE},
		{name: "range", value: algorithm.NewRangeValue("t", "id", algorithm.Closed(int64(1), int64(2))), exp: targets},
	})

	for _, hf := range []string{"murmur", "city"} {
		alg := mustNew(t, algorithm.TypeHashMod, map[string]string{"sharding-count": "4", "hash-function": hf})
		for _, v := range []any{int64(42), "user-42", 17} {
			a, err := alg.Select(targets, algorithm.NewExactValue("t", "id", v))
			assert.NoError(err)
			b, err := alg.Select(targets, algorithm.NewExactValue("t", "id", v))
			assert.NoError(err)
			assert.Equal(a, b)
			assert.Len(a, 1)
		}
	}

	_, err := algorithm.New(algorithm.TypeHashMod, map[string]string{"sharding-count": "4", "hash-function": "sha1"})
	assert.True(sherror.HasCode(err, sherror.SHR_CONFIG_ERROR))
}

func TestInlineAlgorithm(t *testing.T) {
	alg := mustNew(t, algorithm.TypeInline, map[string]string{"algorithm-expression": "t_order_${order_id % 4}"})
	targets := []string{"t_order_0", "t_order_1", "t_order_2", "t_order_3"}

	runCases(t, alg, targets, []tcase{
		{name: "exact", value: algorithm.NewExactValue("t_order", "order_id", int64(6)), exp: []string{"t_order_2"}},
		{name: "numeric string", value: algorithm.NewExactValue("t_order", "order_id", "7"), exp: []string{"t_order_3"}},
		{name: "in list", value: algorithm.NewExactValue("t_order", "order_id", int64(3), int64(4)), exp: []string{"t_order_0", "t_order_3"}},
		{name: "range", value: algorithm.NewRangeValue("t_order", "order_id", algorithm.AtLeast(int64(3))), exp: targets},
		{name: "text", value: algorithm.NewExactValue("t_order", "order_id", "x"), code: sherror.SHR_INVALID_SHARDING_VALUE},
	})

	db := mustNew(t, algorithm.TypeInline, map[string]string{"algorithm-expression": "ds_$->{user_id % 2}"})
	runCases(t, db, []string{"ds_0", "ds_1"}, []tcase{
		{name: "arrow placeholder", value: algorithm.NewExactValue("t_order", "user_id", int64(9)), exp: []string{"ds_1"}},
	})

	_, err := algorithm.New(algorithm.TypeInline, map[string]string{"algorithm-expression": "t_order"})
	assert.Error(t, err)
	_, err = algorithm.New(algorithm.TypeInline, map[string]string{})
	assert.Error(t, err)
}

func TestComplexInlineAlgorithm(t *testing.T) {
	alg := mustNew(t, algorithm.TypeComplexInline, map[string]string{
		"algorithm-expression": "t_${user_id % 2}_${order_id % 2}",
		"sharding-columns":     "user_id, order_id",
	})
	targets := []string{"t_0_0", "t_0_1", "t_1_0", "t_1_1"}

	runCases(t, alg, targets, []tcase{
		{
			name: "product",
			value: algorithm.ShardingValue{
				LogicTable: "t",
				Columns: map[string]algorithm.ColumnValues{
					"user_id":  {Exact: []any{int64(1), int64(2)}},
					"order_id": {Exact: []any{int64(3)}},
				},
			},
			exp: []string{"t_0_1", "t_1_1"},
		},
		{
			name:  "missing column",
			value: algorithm.NewExactValue("t", "user_id", int64(1)),
			exp:   targets,
		},
		{
			name: "range column",
			value: algorithm.ShardingValue{
				LogicTable: "t",
				Columns: map[string]algorithm.ColumnValues{
					"user_id":  {Exact: []any{int64(1)}},
					"order_id": {Range: &algorithm.Range{Lower: &algorithm.Bound{Value: int64(1)}}},
				},
			},
			exp: targets,
		},
	})
}

func TestVolumeRangeAlgorithm(t *testing.T) {
	alg := mustNew(t, algorithm.TypeVolumeRange, map[string]string{
		"range-lower":     "10",
		"range-upper":     "40",
		"sharding-volume": "10",
	})
	targets := []string{"t_0", "t_1", "t_2", "t_3", "t_4"}

	runCases(t, alg, targets, []tcase{
		{name: "below lower", value: algorithm.NewExactValue("t", "id", int64(5)), exp: []string{"t_0"}},
		{name: "lower boundary", value: algorithm.NewExactValue("t", "id", int64(10)), exp: []string{"t_1"}},
		{name: "inside", value: algorithm.NewExactValue("t", "id", int64(19)), exp: []string{"t_1"}},
		{name: "next boundary", value: algorithm.NewExactValue("t", "id", int64(20)), exp: []string{"t_2"}},
		{name: "above upper", value: algorithm.NewExactValue("t", "id", int64(45)), exp: []string{"t_4"}},
		{name: "range", value: algorithm.NewRangeValue("t", "id", algorithm.Closed(int64(15), int64(25))), exp: []string{"t_1", "t_2"}},
		{name: "point range on boundary", value: algorithm.NewRangeValue("t", "id", algorithm.Closed(int64(20), int64(20))), exp: []string{"t_2"}},
		{name: "open interval", value: algorithm.NewRangeValue("t", "id", algorithm.Range{
			Lower: &algorithm.Bound{Value: int64(10)},
			Upper: &algorithm.Bound{Value: int64(20)},
		}), exp: []string{"t_1"}},
		{name: "less than", value: algorithm.NewRangeValue("t", "id", algorithm.LessThan(int64(10))), exp: []string{"t_0"}},
		{name: "at least upper", value: algorithm.NewRangeValue("t", "id", algorithm.AtLeast(int64(40))), exp: []string{"t_4"}},
	})

	_, err := algorithm.New(algorithm.TypeVolumeRange, map[string]string{"range-lower": "10", "range-upper": "5", "sharding-volume": "1"})
	assert.Error(t, err)
}

func TestBoundaryRangeAlgorithm(t *testing.T) {
	alg := mustNew(t, algorithm.TypeBoundaryRange, map[string]string{"sharding-ranges": "1, 5, 10"})
	targets := []string{"ds_0", "ds_1", "ds_2", "ds_3"}

	runCases(t, alg, targets, []tcase{
		{name: "first", value: algorithm.NewExactValue("t", "id", int64(0)), exp: []string{"ds_0"}},
		{name: "boundary", value: algorithm.NewExactValue("t", "id", int64(1)), exp: []string{"ds_1"}},
		{name: "second boundary", value: algorithm.NewExactValue("t", "id", int64(5)), exp: []string{"ds_2"}},
		{name: "last", value: algorithm.NewExactValue("t", "id", int64(100)), exp: []string{"ds_3"}},
		{name: "range across boundary", value: algorithm.NewRangeValue("t", "id", algorithm.Closed(int64(4), int64(5))), exp: []string{"ds_1", "ds_2"}},
	})

	_, err := algorithm.New(algorithm.TypeBoundaryRange, map[string]string{"sharding-ranges": "5,1"})
	assert.Error(t, err)
}

func TestIntervalAlgorithm(t *testing.T) {
	alg := mustNew(t, algorithm.TypeInterval, map[string]string{
		"datetime-pattern":         "yyyy-MM-dd HH:mm:ss",
		"datetime-lower":           "2024-01-01 00:00:00",
		"datetime-upper":           "2024-03-31 23:59:59",
		"sharding-suffix-pattern":  "yyyyMM",
		"datetime-interval-amount": "1",
		"datetime-interval-unit":   "MONTHS",
	})
	targets := []string{"t_order_202401", "t_order_202402", "t_order_202403"}

	runCases(t, alg, targets, []tcase{
		{name: "exact", value: algorithm.NewExactValue("t_order", "created", "2024-02-15 10:00:00"), exp: []string{"t_order_202402"}},
		{name: "half open", value: algorithm.NewRangeValue("t_order", "created", algorithm.Range{
			Lower: &algorithm.Bound{Value: "2024-01-20 00:00:00", Inclusive: true},
			Upper: &algorithm.Bound{Value: "2024-02-01 00:00:00"},
		}), exp: []string{"t_order_202401"}},
		{name: "closed on boundary", value: algorithm.NewRangeValue("t_order", "created",
			algorithm.Closed("2024-01-20 00:00:00", "2024-02-01 00:00:00")), exp: []string{"t_order_202401", "t_order_202402"}},
		{name: "unbounded", value: algorithm.NewRangeValue("t_order", "created", algorithm.AtLeast("2024-02-10 00:00:00")),
			exp: []string{"t_order_202402", "t_order_202403"}},
		{name: "out of interval", value: algorithm.NewExactValue("t_order", "created", "2025-01-01 00:00:00"), code: sherror.SHR_ROUTING_ERROR},
		{name: "bad format", value: algorithm.NewExactValue("t_order", "created", "yesterday"), code: sherror.SHR_INVALID_SHARDING_VALUE},
	})
}

func TestNewUnknownType(t *testing.T) {
	assert := assert.New(t)

	_, err := algorithm.New("CLASS_BASED", nil)
	assert.True(sherror.HasCode(err, sherror.SHR_CONFIG_ERROR))

	_, err = algorithm.New(algorithm.TypeMod, nil)
	assert.True(sherror.HasCode(err, sherror.SHR_CONFIG_ERROR))

	assert.Contains(algorithm.Types(), algorithm.TypeInterval)
}
