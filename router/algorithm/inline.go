package algorithm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pg-sharding/shroute/pkg/models/hashfunction"
)

const (
	TypeInline        = "INLINE"
	TypeComplexInline = "COMPLEX_INLINE"
)

var inlineFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs expects one argument")
		}
		f, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs expects a number, got %T", args[0])
		}
		return math.Abs(f), nil
	},
	"hash": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("hash expects one argument")
		}
		in := args[0]
		if f, ok := in.(float64); ok {
			n, err := floatToInt64(f)
			if err != nil {
				return nil, err
			}
			in = n
		}
		h, err := hashfunction.ApplyHashFunction(in, hashfunction.ValueTypeAuto, hashfunction.HashFunctionMurmur)
		if err != nil {
			return nil, err
		}
		return float64(h), nil
	},
}

type inlinePart struct {
	literal string
	expr    *govaluate.EvaluableExpression
}

// inlineTemplate is a target name template like "t_order_${order_id % 4}".
type inlineTemplate struct {
	raw   string
	parts []inlinePart
}

func compileTemplate(raw string) (*inlineTemplate, error) {
	t := &inlineTemplate{raw: raw}
	rest := raw
	for len(rest) > 0 {
		open, skip := -1, 0
		if i := strings.Index(rest, "${"); i != -1 {
			open, skip = i, 2
		}
		if i := strings.Index(rest, "$->{"); i != -1 && (open == -1 || i < open) {
			open, skip = i, 4
		}
		if open == -1 {
			t.parts = append(t.parts, inlinePart{literal: rest})
			break
		}
		if open > 0 {
			t.parts = append(t.parts, inlinePart{literal: rest[:open]})
		}
		rest = rest[open+skip:]
		closing := strings.IndexByte(rest, '}')
		if closing == -1 {
			return nil, fmt.Errorf("unterminated placeholder in \"%s\"", raw)
		}
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(rest[:closing], inlineFunctions)
		if err != nil {
			return nil, fmt.Errorf("invalid expression \"%s\": %w", rest[:closing], err)
		}
		t.parts = append(t.parts, inlinePart{expr: expr})
		rest = rest[closing+1:]
	}
	if len(t.vars()) == 0 {
		return nil, fmt.Errorf("expression \"%s\" references no sharding column", raw)
	}
	return t, nil
}

func (t *inlineTemplate) vars() []string {
	seen := map[string]struct{}{}
	var ret []string
	for _, p := range t.parts {
		if p.expr == nil {
			continue
		}
		for _, v := range p.expr.Vars() {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				ret = append(ret, v)
			}
		}
	}
	sort.Strings(ret)
	return ret
}

func (t *inlineTemplate) render(params map[string]any) (string, error) {
	var sb strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			sb.WriteString(p.literal)
			continue
		}
		res, err := p.expr.Evaluate(params)
		if err != nil {
			return "", err
		}
		sb.WriteString(formatInlineResult(res))
	}
	return sb.String(), nil
}

func formatInlineResult(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e18 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}

func inlineParam(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
		return x
	}
	return v
}

func pickTarget(targets []string, name string) (string, bool) {
	for _, t := range targets {
		if t == name {
			return t, true
		}
	}
	return "", false
}

// InlineAlgorithm evaluates a single-column target name expression.
// Range values cannot be evaluated and select every target.
type InlineAlgorithm struct {
	tmpl *inlineTemplate
}

func NewInlineAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	expr, ok := props["algorithm-expression"]
	if !ok || strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("property \"algorithm-expression\" is required")
	}
	tmpl, err := compileTemplate(strings.TrimSpace(expr))
	if err != nil {
		return nil, err
	}
	if len(tmpl.vars()) != 1 {
		return nil, fmt.Errorf("expression \"%s\" must reference exactly one column", expr)
	}
	return &InlineAlgorithm{tmpl: tmpl}, nil
}

func (a *InlineAlgorithm) Type() string {
	return TypeInline
}

func (a *InlineAlgorithm) Select(targets []string, value ShardingValue) ([]string, error) {
	col, cv, err := value.single()
	if err != nil {
		return nil, err
	}
	if cv.IsRange() {
		return targets, nil
	}

	varName := a.tmpl.vars()[0]
	ret := make([]string, 0, len(cv.Exact))
	var missed any
	for _, raw := range cv.Exact {
		name, err := a.tmpl.render(map[string]any{varName: inlineParam(raw)})
		if err != nil {
			return nil, invalidValue(value.LogicTable, col, raw, err)
		}
		t, ok := pickTarget(targets, name)
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

// ComplexInlineAlgorithm evaluates an expression over several columns,
// taking the Cartesian product of their exact values.
type ComplexInlineAlgorithm struct {
	tmpl    *inlineTemplate
	columns []string
}

func NewComplexInlineAlgorithm(props map[string]string) (ShardingAlgorithm, error) {
	expr, ok := props["algorithm-expression"]
	if !ok || strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("property \"algorithm-expression\" is required")
	}
	tmpl, err := compileTemplate(strings.TrimSpace(expr))
	if err != nil {
		return nil, err
	}
	cols := tmpl.vars()
	if raw, ok := props["sharding-columns"]; ok && raw != "" {
		cols = nil
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
	}
	return &ComplexInlineAlgorithm{tmpl: tmpl, columns: cols}, nil
}

func (a *ComplexInlineAlgorithm) Type() string {
	return TypeComplexInline
}

func (a *ComplexInlineAlgorithm) Select(targets []string, value ShardingValue) ([]string, error) {
	combos := []map[string]any{{}}
	for _, col := range a.columns {
		cv, ok := lookupColumn(value.Columns, col)
		if !ok || cv.IsRange() {
			return targets, nil
		}
		next := make([]map[string]any, 0, len(combos)*len(cv.Exact))
		for _, c := range combos {
			for _, v := range cv.Exact {
				m := make(map[string]any, len(c)+1)
				for k, vv := range c {
					m[k] = vv
				}
				m[col] = inlineParam(v)
				next = append(next, m)
			}
		}
		combos = next
	}

	ret := make([]string, 0, len(combos))
	var missed any
	for _, params := range combos {
		name, err := a.tmpl.render(params)
		if err != nil {
			return nil, invalidValue(value.LogicTable, strings.Join(a.columns, ","), params, err)
		}
		t, ok := pickTarget(targets, name)
		if !ok {
			missed = params
			continue
		}
		ret = appendUnique(ret, t)
	}
	if len(ret) == 0 && missed != nil {
		return nil, noTarget(missed, targets)
	}
	return orderLike(targets, ret), nil
}

func lookupColumn(cols map[string]ColumnValues, name string) (ColumnValues, bool) {
	if cv, ok := cols[name]; ok {
		return cv, true
	}
	for k, cv := range cols {
		if strings.EqualFold(k, name) {
			return cv, true
		}
	}
	return ColumnValues{}, false
}
