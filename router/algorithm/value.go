package algorithm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Bound struct {
	Value     any
	Inclusive bool
}

// Range is an interval of sharding values. A nil bound is unbounded.
type Range struct {
	Lower *Bound
	Upper *Bound
}

func AtLeast(v any) Range { return Range{Lower: &Bound{Value: v, Inclusive: true}} }
func GreaterThan(v any) Range { return Range{Lower: &Bound{Value: v}} }
func AtMost(v any) Range { return Range{Upper: &Bound{Value: v, Inclusive: true}} }
func LessThan(v any) Range { return Range{Upper: &Bound{Value: v}} }

func Closed(lo, hi any) Range {
	return Range{Lower: &Bound{Value: lo, Inclusive: true}, Upper: &Bound{Value: hi, Inclusive: true}}
}

func (r Range) String() string {
	var sb strings.Builder
	if r.Lower == nil {
		sb.WriteString("(-inf")
	} else if r.Lower.Inclusive {
		fmt.Fprintf(&sb, "[%v", r.Lower.Value)
	} else {
		fmt.Fprintf(&sb, "(%v", r.Lower.Value)
	}
	sb.WriteString(", ")
	if r.Upper == nil {
		sb.WriteString("+inf)")
	} else if r.Upper.Inclusive {
		fmt.Fprintf(&sb, "%v]", r.Upper.Value)
	} else {
		fmt.Fprintf(&sb, "%v)", r.Upper.Value)
	}
	return sb.String()
}

// Contains reports whether v lies inside the range. Incomparable values are reported as contained.
func (r Range) Contains(v any) bool {
	if r.Lower != nil {
		c, err := Compare(v, r.Lower.Value)
		if err == nil && (c < 0 || (c == 0 && !r.Lower.Inclusive)) {
			return false
		}
	}
	if r.Upper != nil {
		c, err := Compare(v, r.Upper.Value)
		if err == nil && (c > 0 || (c == 0 && !r.Upper.Inclusive)) {
			return false
		}
	}
	return true
}

// Intersect narrows r by o. ok is false when the result is provably empty.
func (r Range) Intersect(o Range) (Range, bool) {
	res := r
	if o.Lower != nil {
		if res.Lower == nil {
			res.Lower = o.Lower
		} else if c, err := Compare(o.Lower.Value, res.Lower.Value); err == nil {
			if c > 0 || (c == 0 && !o.Lower.Inclusive) {
				res.Lower = o.Lower
			}
		}
	}
	if o.Upper != nil {
		if res.Upper == nil {
			res.Upper = o.Upper
		} else if c, err := Compare(o.Upper.Value, res.Upper.Value); err == nil {
			if c < 0 || (c == 0 && !o.Upper.Inclusive) {
				res.Upper = o.Upper
			}
		}
	}
	if res.Lower != nil && res.Upper != nil {
		c, err := Compare(res.Lower.Value, res.Upper.Value)
		if err == nil && (c > 0 || (c == 0 && !(res.Lower.Inclusive && res.Upper.Inclusive))) {
			return res, false
		}
	}
	return res, true
}

// ColumnValues holds the candidate values of one sharding column.
// Exact values are alternatives; when Range is set Exact is empty.
type ColumnValues struct {
	Exact []any
	Range *Range
}

func (cv ColumnValues) IsRange() bool {
	return cv.Range != nil
}

type ShardingValue struct {
	LogicTable string
	Columns    map[string]ColumnValues
}

func NewExactValue(table, column string, values ...any) ShardingValue {
	return ShardingValue{
		LogicTable: table,
		Columns:    map[string]ColumnValues{column: {Exact: values}},
	}
}

func NewRangeValue(table, column string, r Range) ShardingValue {
	return ShardingValue{
		LogicTable: table,
		Columns:    map[string]ColumnValues{column: {Range: &r}},
	}
}

func (sv ShardingValue) single() (string, ColumnValues, error) {
	if len(sv.Columns) != 1 {
		return "", ColumnValues{}, fmt.Errorf("expected exactly one sharding column for table \"%s\", got %d", sv.LogicTable, len(sv.Columns))
	}
	for col, cv := range sv.Columns {
		return col, cv, nil
	}
	return "", ColumnValues{}, nil
}

// ToInt64 coerces integer-like values, including numeric strings.
func ToInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return uintToInt64(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return uintToInt64(x)
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case []byte:
		return ToInt64(string(x))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("\"%s\" is not a number", x)
		}
		return floatToInt64(f)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", u)
	}
	return int64(u), nil
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

// number returns the numeric form of v; isInt tells which of i or f is meaningful.
func number(v any) (i int64, f float64, isInt bool, ok bool) {
	switch x := v.(type) {
	case float32:
		return 0, float64(x), false, true
	case float64:
		return 0, x, false, true
	case string, []byte:
		s := strings.TrimSpace(fmt.Sprintf("%s", x))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, 0, true, true
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil {
			return 0, fl, false, true
		}
		return 0, 0, false, false
	case bool, nil:
		return 0, 0, false, false
	default:
		n, err := ToInt64(v)
		if err != nil {
			return 0, 0, false, false
		}
		return n, 0, true, true
	}
}

// Compare orders two sharding values. Strings compare lexically unless both parse as numbers.
func Compare(a, b any) (int, error) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return ta.Compare(tb), nil
	}

	sa, aStr := stringish(a)
	sb, bStr := stringish(b)
	if aStr && bStr {
		ai, af, aInt, aOk := number(a)
		bi, bf, bInt, bOk := number(b)
		if !aOk || !bOk {
			return strings.Compare(sa, sb), nil
		}
		return compareNumbers(ai, af, aInt, bi, bf, bInt), nil
	}

	ai, af, aInt, aOk := number(a)
	bi, bf, bInt, bOk := number(b)
	if !aOk || !bOk {
		return 0, fmt.Errorf("cannot compare %v (%T) with %v (%T)", a, a, b, b)
	}
	return compareNumbers(ai, af, aInt, bi, bf, bInt), nil
}

func stringish(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

func compareNumbers(ai int64, af float64, aInt bool, bi int64, bf float64, bInt bool) int {
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	if aInt {
		af = float64(ai)
	}
	if bInt {
		bf = float64(bi)
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

// IntBounds converts the range to closed integer bounds.
func (r Range) IntBounds() (lo int64, hasLo bool, hi int64, hasHi bool, err error) {
	if r.Lower != nil {
		lo, err = ToInt64(r.Lower.Value)
		if err != nil {
			return
		}
		hasLo = true
		if !r.Lower.Inclusive {
			if lo == math.MaxInt64 {
				err = fmt.Errorf("empty range %s", r)
				return
			}
			lo++
		}
	}
	if r.Upper != nil {
		hi, err = ToInt64(r.Upper.Value)
		if err != nil {
			return
		}
		hasHi = true
		if !r.Upper.Inclusive {
			if hi == math.MinInt64 {
				err = fmt.Errorf("empty range %s", r)
				return
			}
			hi--
		}
	}
	return
}
