// Package workflow implements the trigger pipeline: matching candidate
// workflows, evaluating their conditions, running their actions in order and
// recording exactly one execution per matched workflow.
package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// EvaluateConditions reports whether a workflow's condition list holds for
// the given field scope. An empty list is vacuously true; an empty logic
// defaults to AND. Pure: no I/O, no mutation of scope, deterministic for a
// fixed input, so the config APIs can preview it freely before saving.
func EvaluateConditions(conditions []models.Condition, logic models.ConditionLogic, scope map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}

	if logic == models.ConditionLogicOr {
		for _, condition := range conditions {
			if EvaluateCondition(condition, scope) {
				return true
			}
		}

		return false
	}

	for _, condition := range conditions {
		if !EvaluateCondition(condition, scope) {
			return false
		}
	}

	return true
}

// EvaluateCondition evaluates one field-level predicate. Unknown operators
// evaluate to false; definitions are validated at save time, so reaching one
// here means the stored definition predates the operator set.
func EvaluateCondition(condition models.Condition, scope map[string]any) bool {
	value := resolveField(scope, condition.Field)

	switch condition.Operator {
	case models.OperatorEquals:
		return looseEquals(value, condition.Value)
	case models.OperatorNotEquals:
		return !looseEquals(value, condition.Value)
	case models.OperatorContains:
		return contains(value, condition.Value)
	case models.OperatorNotContains:
		return !contains(value, condition.Value)
	case models.OperatorIsEmpty:
		return isEmpty(value)
	case models.OperatorIsNotEmpty:
		return !isEmpty(value)
	case models.OperatorGreaterThan:
		return numericCompare(value, condition.Value, func(a, b float64) bool { return a > b })
	case models.OperatorLessThan:
		return numericCompare(value, condition.Value, func(a, b float64) bool { return a < b })
	}

	return false
}

// resolveField walks a dotted path through nested maps. A missing segment, or
// a segment that is not a map, resolves to nil, the empty sentinel, so
// emptiness operators stay well defined over absent fields.
func resolveField(scope map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = scope
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = node[segment]
		if !ok {
			return nil
		}
	}

	return current
}

// isEmpty reports whether a value is the empty sentinel: nil, an empty
// string, or an empty collection. Numbers and booleans are never empty.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}

	return false
}

// looseEquals compares the way workflow authors expect: numerically when both
// sides are numbers (JSON decoding makes every number float64, authors write
// "3" and 3 interchangeably), canonical strings otherwise. The empty sentinel
// stringifies to "", so a missing field equals "".
func looseEquals(left, right any) bool {
	leftNum, leftOK := asNumber(left)
	rightNum, rightOK := asNumber(right)

	if leftOK && rightOK {
		return leftNum == rightNum
	}

	return canonicalString(left) == canonicalString(right)
}

// contains matches substrings on strings and membership on lists.
func contains(value, needle any) bool {
	switch v := value.(type) {
	case []any:
		for _, element := range v {
			if looseEquals(element, needle) {
				return true
			}
		}

		return false
	default:
		needleStr := canonicalString(needle)
		if needleStr == "" {
			return false
		}

		return strings.Contains(canonicalString(value), needleStr)
	}
}

// numericCompare orders two values when both are numeric; anything else is
// false. Ordering over strings or timestamps is not defined for workflow
// conditions, event payloads carry epoch numbers where ordering matters.
func numericCompare(left, right any, cmp func(a, b float64) bool) bool {
	leftNum, leftOK := asNumber(left)
	rightNum, rightOK := asNumber(right)

	if !leftOK || !rightOK {
		return false
	}

	return cmp(leftNum, rightNum)
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	}

	return 0, false
}

// canonicalString renders a value the way authors see it in the UI: floats
// without trailing zeros, booleans as true/false, nil as the empty string.
func canonicalString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}

	return fmt.Sprintf("%v", value)
}
