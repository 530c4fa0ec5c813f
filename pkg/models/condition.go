package models

import (
	"errors"
	"fmt"
)

// ConditionLogic combines the results of a workflow's condition list.
type ConditionLogic string

const (
	ConditionLogicAnd ConditionLogic = "and"
	ConditionLogicOr  ConditionLogic = "or"
)

// Valid reports whether l is a known combinator.
func (l ConditionLogic) Valid() bool {
	return l == ConditionLogicAnd || l == ConditionLogicOr
}

// ConditionOperator is a single field-level comparison.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorIsEmpty     ConditionOperator = "is_empty"
	OperatorIsNotEmpty  ConditionOperator = "is_not_empty"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
)

// Valid reports whether o is a known operator.
func (o ConditionOperator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains,
		OperatorIsEmpty, OperatorIsNotEmpty, OperatorGreaterThan, OperatorLessThan:
		return true
	}

	return false
}

// Unary reports whether o compares a field against nothing but emptiness.
func (o ConditionOperator) Unary() bool {
	return o == OperatorIsEmpty || o == OperatorIsNotEmpty
}

// Condition is one field-level predicate evaluated against the trigger
// event's field scope. Field is a dotted path; a missing path resolves to the
// empty sentinel rather than failing.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// Validate rejects malformed conditions at workflow save time.
func (c Condition) Validate() error {
	if c.Field == "" {
		return errors.New("condition field is required")
	}

	if !c.Operator.Valid() {
		return fmt.Errorf("unknown condition operator %q", c.Operator)
	}

	if !c.Operator.Unary() && c.Value == nil {
		return fmt.Errorf("operator %q requires a comparison value", c.Operator)
	}

	return nil
}
