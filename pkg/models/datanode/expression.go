package datanode

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandExpression expands inline expressions such as
//
//	ds_${0..1}.t_order_${0..3}
//	ds_${['a', 'b']}.t_user, ds_2.t_user
//
// Placeholders are written as ${...} or $->{...}. A placeholder holds either an
// inclusive integer range "lo..hi" or a bracketed list. Several placeholders in one
// segment produce their Cartesian product, leftmost varying slowest.
func ExpandExpression(expr string) ([]string, error) {
	segments, err := splitSegments(expr)
	if err != nil {
		return nil, err
	}

	ret := make([]string, 0)
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		expanded, err := expandSegment(seg)
		if err != nil {
			return nil, err
		}
		ret = append(ret, expanded...)
	}
	return ret, nil
}

// splitSegments splits on commas that are not inside a placeholder.
func splitSegments(expr string) ([]string, error) {
	var (
		segments []string
		depth    int
		start    int
	)
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced '}' in expression '%s'", expr)
			}
		case ',':
			if depth == 0 {
				segments = append(segments, expr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '{' in expression '%s'", expr)
	}
	return append(segments, expr[start:]), nil
}

func expandSegment(seg string) ([]string, error) {
	results := []string{""}

	for len(seg) > 0 {
		open, skip := placeholderStart(seg)
		if open == -1 {
			for i := range results {
				results[i] += seg
			}
			break
		}

		prefix := seg[:open]
		rest := seg[open+skip:]
		closing := strings.IndexByte(rest, '}')
		if closing == -1 {
			return nil, fmt.Errorf("unterminated placeholder in '%s'", seg)
		}

		values, err := placeholderValues(rest[:closing])
		if err != nil {
			return nil, err
		}

		next := make([]string, 0, len(results)*len(values))
		for _, r := range results {
			for _, v := range values {
				next = append(next, r+prefix+v)
			}
		}
		results = next
		seg = rest[closing+1:]
	}

	return results, nil
}

func placeholderStart(seg string) (int, int) {
	i := strings.Index(seg, "$")
	for i != -1 {
		if strings.HasPrefix(seg[i:], "${") {
			return i, 2
		}
		if strings.HasPrefix(seg[i:], "$->{") {
			return i, 4
		}
		j := strings.Index(seg[i+1:], "$")
		if j == -1 {
			return -1, 0
		}
		i += j + 1
	}
	return -1, 0
}

func placeholderValues(body string) ([]string, error) {
	body = strings.TrimSpace(body)

	if strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]") {
		items := strings.Split(body[1:len(body)-1], ",")
		ret := make([]string, 0, len(items))
		for _, it := range items {
			it = strings.Trim(strings.TrimSpace(it), `'"`)
			if it == "" {
				return nil, fmt.Errorf("empty list item in placeholder '%s'", body)
			}
			ret = append(ret, it)
		}
		return ret, nil
	}

	if lo, hi, ok := strings.Cut(body, ".."); ok {
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid range start in placeholder '%s': %w", body, err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid range end in placeholder '%s': %w", body, err)
		}
		if from > to {
			return nil, fmt.Errorf("descending range in placeholder '%s'", body)
		}
		ret := make([]string, 0, to-from+1)
		for i := from; i <= to; i++ {
			ret = append(ret, strconv.Itoa(i))
		}
		return ret, nil
	}

	if body == "" {
		return nil, fmt.Errorf("empty placeholder")
	}
	return []string{body}, nil
}
