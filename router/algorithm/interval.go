package algorithm

import (
	"fmt"
	"strings"
	"time"
)

const TypeInterval = "INTERVAL"

const maxIntervals = 100000

// patternLayout converts yyyy-MM-dd style date patterns to Go layouts.
var patternLayout = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
)

// IntervalAlgorithm maps timestamps to time-bucketed targets, e.g. t_order_202401.
type IntervalAlgorithm struct {
	layout       string
	suffixLayout string
	lower        time.Time
	upper        time.Time
	amount       int
	unit         string
}

func NewIntervalAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	pattern := props["datetime-pattern"]
	if pattern == "" {
		return nil, fmt.Errorf("property \"datetime-pattern\" is required")
	}
	suffix := props["sharding-suffix-pattern"]
	if suffix == "" {
		return nil, fmt.Errorf("property \"sharding-suffix-pattern\" is required")
	}

	a := &IntervalAlgorithm{
		layout:       patternLayout.Replace(pattern),
		suffixLayout: patternLayout.Replace(suffix),
		unit:         strings.ToUpper(props["datetime-interval-unit"]),
	}
	if a.unit == "" {
		a.unit = "DAYS"
	}

	var err error
	a.lower, err = time.Parse(a.layout, props["datetime-lower"])
	if err != nil {
		return nil, fmt.Errorf("property \"datetime-lower\": %w", err)
	}
	if raw := props["datetime-upper"]; raw != "" {
		a.upper, err = time.Parse(a.layout, raw)
		if err != nil {
			return nil, fmt.Errorf("property \"datetime-upper\": %w", err)
		}
	} else {
		a.upper = time.Now().UTC()
	}
	if a.upper.Before(a.lower) {
		return nil, fmt.Errorf("datetime-upper is before datetime-lower")
	}

	amount, err := intProp(props, "datetime-interval-amount", false, 1)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("datetime-interval-amount must be positive, got %d", amount)
	}
	a.amount = int(amount)

	if _, err := a.step(a.lower); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *IntervalAlgorithm) Type() string {
	return TypeInterval
}

func (a *IntervalAlgorithm) step(t time.Time) (time.Time, error) {
	switch a.unit {
	case "SECONDS":
		return t.Add(time.Duration(a.amount) * time.Second), nil
	case "MINUTES":
		return t.Add(time.Duration(a.amount) * time.Minute), nil
	case "HOURS":
		return t.Add(time.Duration(a.amount) * time.Hour), nil
	case "DAYS":
		return t.AddDate(0, 0, a.amount), nil
	case "WEEKS":
		return t.AddDate(0, 0, 7*a.amount), nil
	case "MONTHS":
		return t.AddDate(0, a.amount, 0), nil
	case "YEARS":
		return t.AddDate(a.amount, 0, 0), nil
	default:
		return t, fmt.Errorf("unknown datetime-interval-unit \"%s\"", a.unit)
	}
}

func (a *IntervalAlgorithm) toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		return a.toTime(string(x))
	case string:
		t, err := time.Parse(a.layout, strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// forEachInterval walks [start, next) buckets from lower bound to upper bound.
func (a *IntervalAlgorithm) forEachInterval(fn func(start, next time.Time) bool) {
	cur := a.lower
	for i := 0; i < maxIntervals && !cur.After(a.upper); i++ {
		next, _ := a.step(cur)
		if !fn(cur, next) {
			return
		}
		cur = next
	}
}

func (a *IntervalAlgorithm) matchTargets(targets []string, start time.Time) []string {
	suffix := start.Format(a.suffixLayout)
	var ret []string
	for _, t := range targets {
		if hasExactSuffix(t, suffix) {
			ret = append(ret, t)
		}
	}
	return ret
}

func (a *IntervalAlgorithm) Select(targets []string, value ShardingValue) ([]string, error) {
	col, cv, err := value.single()
	if err != nil {
		return nil, err
	}

	if cv.IsRange() {
		var lo, hi *time.Time
		var hiIncl bool
		if cv.Range.Lower != nil {
			t, err := a.toTime(cv.Range.Lower.Value)
			if err != nil {
				return nil, invalidValue(value.LogicTable, col, cv.Range.Lower.Value, err)
			}
			lo = &t
		}
		if cv.Range.Upper != nil {
			t, err := a.toTime(cv.Range.Upper.Value)
			if err != nil {
				return nil, invalidValue(value.LogicTable, col, cv.Range.Upper.Value, err)
			}
			hi, hiIncl = &t, cv.Range.Upper.Inclusive
		}

		var ret []string
		a.forEachInterval(func(start, next time.Time) bool {
			if hi != nil && (start.After(*hi) || (start.Equal(*hi) && !hiIncl)) {
				return false
			}
			if lo != nil && !next.After(*lo) {
				return true
			}
			ret = appendUnique(ret, a.matchTargets(targets, start)...)
			return true
		})
		return orderLike(targets, ret), nil
	}

	ret := make([]string, 0, len(cv.Exact))
	var missed any
	for _, raw := range cv.Exact {
		v, err := a.toTime(raw)
		if err != nil {
			return nil, invalidValue(value.LogicTable, col, raw, err)
		}
		var hit []string
		a.forEachInterval(func(start, next time.Time) bool {
			if !v.Before(start) && v.Before(next) {
				hit = a.matchTargets(targets, start)
				return false
			}
			return true
		})
		if len(hit) == 0 {
			missed = raw
			continue
		}
		ret = appendUnique(ret, hit...)
	}
	if len(ret) == 0 && missed != nil {
		return nil, noTarget(missed, targets)
	}
	return orderLike(targets, ret), nil
}
