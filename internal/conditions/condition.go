// Package conditions implements the rule trees icons carry for automatic
// client tagging: a recursive and/or structure of field comparisons, stored
// as JSON on the icon and evaluated against one client at a time.
package conditions

import (
	"bytes"
	"encoding/json"
)

// Operator identifies a leaf comparison. The set is closed; evaluating an
// operator outside it yields false rather than an error.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "notContains"
	OpGreaterThan        Operator = "greaterThan"
	OpLessThan           Operator = "lessThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpIsEmpty            Operator = "isEmpty"
	OpIsNotEmpty         Operator = "isNotEmpty"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "notIn"
	OpBetween            Operator = "between"
)

// Logical operators for group nodes.
const (
	LogicalAnd = "and"
	LogicalOr  = "or"
)

// Condition is one node of a rule tree: either a leaf comparing a client
// field (Field, Operator, Value, SecondValue) or a group combining children
// (LogicalOperator, Conditions). The JSON keys match the serialized form the
// condition editor produces. Trees are deserialized top-down from storage and
// hold children by value, so they are acyclic by construction.
type Condition struct {
	Field       string   `json:"field,omitempty"`
	Operator    Operator `json:"operator,omitempty"`
	Value       any      `json:"value,omitempty"`
	SecondValue any      `json:"secondValue,omitempty"`

	LogicalOperator string      `json:"logicalOperator,omitempty"`
	Conditions      []Condition `json:"conditions,omitempty"`
}

// IsGroup reports whether the node combines children instead of comparing a
// field.
func (c *Condition) IsGroup() bool {
	return c != nil && c.LogicalOperator != ""
}

// Equal reports whether two trees are semantically identical, by comparing
// normalized JSON encodings. Icon updates use this to decide whether a
// reevaluation sweep is warranted; the editor resubmits the whole tree, so
// pointer identity means nothing.
func Equal(a, b *Condition) bool {
	if a == nil || b == nil {
		return a == b
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
