package conditions

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// FieldSource resolves a condition field path to a raw value. Implementations
// return nil for unknown paths; Evaluate never panics on missing data.
type FieldSource interface {
	Field(name string) any
}

// Evaluate interprets a condition tree against one record. A nil condition
// never matches, so an icon without a rule cannot auto-match. The function is
// pure: no I/O, no mutation, safe to call per client per icon during a batch
// sweep. Malformed input degrades to false instead of erroring.
func Evaluate(src FieldSource, c *Condition) bool {
	if c == nil {
		return false
	}
	if c.IsGroup() {
		return evaluateGroup(src, c)
	}
	return evaluateLeaf(src, c)
}

func evaluateGroup(src FieldSource, c *Condition) bool {
	switch c.LogicalOperator {
	case LogicalAnd:
		for i := range c.Conditions {
			if !Evaluate(src, &c.Conditions[i]) {
				return false
			}
		}
		return true
	case LogicalOr:
		for i := range c.Conditions {
			if Evaluate(src, &c.Conditions[i]) {
				return true
			}
		}
		return false
	}
	return false
}

func evaluateLeaf(src FieldSource, c *Condition) bool {
	fieldValue := src.Field(c.Field)

	switch c.Operator {
	case OpEquals:
		return looseEqual(fieldValue, c.Value)
	case OpNotEquals:
		return !looseEqual(fieldValue, c.Value)
	case OpContains:
		return contains(fieldValue, c.Value)
	case OpNotContains:
		return !contains(fieldValue, c.Value)
	case OpGreaterThan:
		return compareNumbers(fieldValue, c.Value, func(a, b float64) bool { return a > b })
	case OpLessThan:
		return compareNumbers(fieldValue, c.Value, func(a, b float64) bool { return a < b })
	case OpGreaterThanOrEqual:
		return compareNumbers(fieldValue, c.Value, func(a, b float64) bool { return a >= b })
	case OpLessThanOrEqual:
		return compareNumbers(fieldValue, c.Value, func(a, b float64) bool { return a <= b })
	case OpIsEmpty:
		return isEmpty(fieldValue)
	case OpIsNotEmpty:
		return !isEmpty(fieldValue)
	case OpIn:
		values, ok := asSlice(c.Value)
		if !ok {
			return false
		}
		return memberOf(values, fieldValue)
	case OpNotIn:
		values, ok := asSlice(c.Value)
		if !ok {
			// Fails open when the rule value is not a list. Kept as the
			// documented behavior; see DESIGN.md before changing polarity.
			return true
		}
		return !memberOf(values, fieldValue)
	case OpBetween:
		if c.SecondValue == nil {
			return false
		}
		v, ok1 := toNumber(fieldValue)
		lo, ok2 := toNumber(c.Value)
		hi, ok3 := toNumber(c.SecondValue)
		return ok1 && ok2 && ok3 && v >= lo && v <= hi
	}
	return false
}

// looseEqual compares case-insensitively when either side is a string, and
// numerically when both sides coerce to numbers.
func looseEqual(a, b any) bool {
	if isString(a) || isString(b) {
		return strings.EqualFold(toString(a), toString(b))
	}
	if fa, ok := toNumber(a); ok {
		if fb, ok2 := toNumber(b); ok2 {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

// contains is a membership test when the field holds a list, a
// case-insensitive substring test otherwise.
func contains(fieldValue, conditionValue any) bool {
	if conditionValue == nil {
		// A rule without a needle matches nothing, like the other
		// malformed-input branches.
		return false
	}
	if items, ok := asSlice(fieldValue); ok {
		return memberOf(items, conditionValue)
	}
	if fieldValue == nil {
		return false
	}
	return strings.Contains(strings.ToLower(toString(fieldValue)), strings.ToLower(toString(conditionValue)))
}

func memberOf(items []any, v any) bool {
	for _, item := range items {
		if looseEqual(item, v) {
			return true
		}
	}
	return false
}

func compareNumbers(a, b any, cmp func(a, b float64) bool) bool {
	fa, ok := toNumber(a)
	if !ok {
		return false
	}
	fb, ok := toNumber(b)
	if !ok {
		return false
	}
	return cmp(fa, fb)
}

// isEmpty is true for nil, blank or whitespace-only strings, and empty lists.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	if items, ok := asSlice(v); ok {
		return len(items) == 0
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// toNumber coerces a value to float64. Any failure (nil, non-numeric string,
// unsupported type) reports false, which every numeric operator turns into a
// non-match; comparisons never propagate a NaN.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// asSlice widens the concrete slice types that reach the evaluator: []any
// from deserialized rule values and []string from client accessors.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}
