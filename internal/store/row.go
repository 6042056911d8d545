package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Row is a single record keyed by column name.
type Row map[string]any

// Clone returns a copy of r. Nested JSON values are copied through a
// marshal round-trip so callers never share mutable state with the store.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		switch v.(type) {
		case map[string]any, []any, Row:
			raw, err := json.Marshal(v)
			if err != nil {
				out[k] = v
				continue
			}
			var cp any
			if err := json.Unmarshal(raw, &cp); err != nil {
				out[k] = v
				continue
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// Merge returns a copy of r with every key of patch applied on top.
func (r Row) Merge(patch Row) Row {
	out := r.Clone()
	if out == nil {
		out = make(Row, len(patch))
	}
	maps.Copy(out, patch)
	return out
}

// ID returns the row's "id" column as a string.
func (r Row) ID() string { return r.String("id") }

// String returns column col as a string. Missing and nil values yield "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Float returns column col as a float64. Numeric strings are parsed;
// anything else yields zero.
func (r Row) Float(col string) float64 {
	f, _ := toFloat(r[col])
	return f
}

// Int returns column col as an int, truncating fractional values.
func (r Row) Int(col string) int {
	return int(r.Float(col))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// compare orders a and b. Numbers compare numerically, everything else by
// string representation, which keeps ISO dates in calendar order.
func compare(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa := Row{"v": a}.String("v")
	sb := Row{"v": b}.String("v")
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// Matches reports whether row satisfies every filter. Comparisons follow SQL
// NULL semantics: a nil filter value matches only with OpEq (IS NULL) or
// OpNeq (IS NOT NULL), and a NULL column never satisfies a comparison
// against a non-nil value.
func Matches(row Row, filters []Filter) bool {
	for _, f := range filters {
		v := row[f.Column]
		if f.Value == nil {
			switch f.Op {
			case OpEq:
				if v != nil {
					return false
				}
			case OpNeq:
				if v == nil {
					return false
				}
			default:
				return false
			}
			continue
		}
		if v == nil {
			return false
		}
		c := compare(v, f.Value)
		var hit bool
		switch f.Op {
		case OpEq:
			hit = c == 0
		case OpNeq:
			hit = c != 0
		case OpGt:
			hit = c > 0
		case OpGte:
			hit = c >= 0
		case OpLt:
			hit = c < 0
		case OpLte:
			hit = c <= 0
		}
		if !hit {
			return false
		}
	}
	return true
}
