package service

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

var knownOperators = map[string]bool{
	entity.OpEquals:             true,
	entity.OpNotEquals:          true,
	entity.OpGreaterThan:        true,
	entity.OpGreaterThanOrEqual: true,
	entity.OpLessThan:           true,
	entity.OpLessThanOrEqual:    true,
	entity.OpContains:           true,
	entity.OpNotContains:        true,
	entity.OpStartsWith:         true,
	entity.OpEndsWith:           true,
	entity.OpIn:                 true,
	entity.OpNotIn:              true,
	entity.OpBetween:            true,
	entity.OpIsEmpty:            true,
	entity.OpIsNotEmpty:         true,
	entity.OpExpression:         true,
}

// validateConditions checks operator names and operand shapes at write time
func validateConditions(conditions []entity.RuleCondition) error {
	for i, cond := range conditions {
		if !knownOperators[cond.Operator] {
			return apperr.Validation("condition %d: unknown operator %q", i, cond.Operator)
		}

		switch cond.Operator {
		case entity.OpExpression:
			expr, ok := cond.Value.(string)
			if !ok || strings.TrimSpace(expr) == "" {
				return apperr.Validation("condition %d: expression must be a non-empty string", i)
			}
			if _, err := govaluate.NewEvaluableExpression(expr); err != nil {
				return apperr.Validation("condition %d: invalid expression: %v", i, err)
			}
			continue
		case entity.OpBetween:
			if _, _, ok := betweenBounds(cond.Value); !ok {
				return apperr.Validation("condition %d: between needs a [min, max] pair", i)
			}
		case entity.OpIn, entity.OpNotIn:
			if _, ok := listItems(cond.Value); !ok {
				return apperr.Validation("condition %d: %s needs a list value", i, cond.Operator)
			}
		}

		if strings.TrimSpace(cond.Field) == "" {
			return apperr.Validation("condition %d: field is required", i)
		}
	}
	return nil
}

// evaluateCondition tests one condition against the reference data.
// A missing field satisfies only the negative operators.
func evaluateCondition(cond entity.RuleCondition, data map[string]interface{}) (bool, error) {
	if cond.Operator == entity.OpExpression {
		return evaluateExpression(cond.Value, data)
	}

	value, found := getFieldValue(cond.Field, data)

	switch cond.Operator {
	case entity.OpIsEmpty:
		return !found || isEmpty(value), nil
	case entity.OpIsNotEmpty:
		return found && !isEmpty(value), nil
	case entity.OpNotEquals:
		return !found || !compareEqual(value, cond.Value), nil
	case entity.OpNotContains:
		return !found || !checkContains(value, cond.Value), nil
	case entity.OpNotIn:
		return !found || !checkIn(value, cond.Value), nil
	}

	if !found {
		return false, nil
	}

	switch cond.Operator {
	case entity.OpEquals:
		return compareEqual(value, cond.Value), nil
	case entity.OpGreaterThan, entity.OpGreaterThanOrEqual, entity.OpLessThan, entity.OpLessThanOrEqual:
		cmp, ok := compareNumeric(value, cond.Value)
		if !ok {
			return false, nil
		}
		switch cond.Operator {
		case entity.OpGreaterThan:
			return cmp > 0, nil
		case entity.OpGreaterThanOrEqual:
			return cmp >= 0, nil
		case entity.OpLessThan:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case entity.OpContains:
		return checkContains(value, cond.Value), nil
	case entity.OpStartsWith:
		return strings.HasPrefix(toString(value), toString(cond.Value)), nil
	case entity.OpEndsWith:
		return strings.HasSuffix(toString(value), toString(cond.Value)), nil
	case entity.OpIn:
		return checkIn(value, cond.Value), nil
	case entity.OpBetween:
		n, ok := toFloat64(value)
		lo, hi, okBounds := betweenBounds(cond.Value)
		return ok && okBounds && n >= lo && n <= hi, nil
	}

	return false, fmt.Errorf("unknown operator %q", cond.Operator)
}

// evaluateExpression runs a boolean govaluate formula. Dotted paths must be
// bracketed, e.g. [supplier.country] == 'SN'.
func evaluateExpression(raw interface{}, data map[string]interface{}) (bool, error) {
	expr, ok := raw.(string)
	if !ok {
		return false, fmt.Errorf("expression must be a string")
	}

	expression, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, fmt.Errorf("failed to parse expression: %w", err)
	}

	parameters := make(map[string]interface{})
	for _, name := range expression.Vars() {
		val, _ := getFieldValue(name, data)
		parameters[name] = val
	}

	result, err := expression.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression result is not a boolean: %v", result)
	}
	return b, nil
}

// getFieldValue resolves a dotted path through nested maps
func getFieldValue(field string, data map[string]interface{}) (interface{}, bool) {
	current := interface{}(data)
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		val, ok := m[part]
		if !ok {
			return nil, false
		}
		current = val
	}
	return current, true
}

func compareEqual(a, b interface{}) bool {
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return af == bf
		}
	}
	return toString(a) == toString(b)
}

func compareNumeric(a, b interface{}) (int, bool) {
	af, ok := toFloat64(a)
	if !ok {
		return 0, false
	}
	bf, ok := toFloat64(b)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// listItems accepts a JSON array or a comma separated string
func listItems(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case string:
		parts := strings.Split(list, ",")
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, true
	}
	return nil, false
}

func checkIn(value, list interface{}) bool {
	items, ok := listItems(list)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEqual(value, item) {
			return true
		}
	}
	return false
}

// checkContains tests slice membership for list fields and substring otherwise
func checkContains(value, needle interface{}) bool {
	if items, ok := value.([]interface{}); ok {
		for _, item := range items {
			if compareEqual(item, needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(toString(value), toString(needle))
}

func betweenBounds(v interface{}) (float64, float64, bool) {
	items, ok := v.([]interface{})
	if !ok || len(items) != 2 {
		return 0, 0, false
	}
	lo, ok := toFloat64(items[0])
	if !ok {
		return 0, 0, false
	}
	hi, ok := toFloat64(items[1])
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
