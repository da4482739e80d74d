package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FilterOperator represents a filter comparison operator
type FilterOperator string

const (
	OpIs          FilterOperator = "is"
	OpIsNot       FilterOperator = "is not"
	OpContains    FilterOperator = "contains"
	OpNotContains FilterOperator = "not contains"
	OpIsEmpty     FilterOperator = "is empty"
	OpIsNotEmpty  FilterOperator = "is not empty"
	OpGreaterThan FilterOperator = "gt"
	OpLessThan    FilterOperator = "lt"
)

// Valid reports whether op is a known operator
func (op FilterOperator) Valid() bool {
	switch op {
	case OpIs, OpIsNot, OpContains, OpNotContains, OpIsEmpty, OpIsNotEmpty, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// NeedsValue reports whether the operator compares against a value
func (op FilterOperator) NeedsValue() bool {
	return op != OpIsEmpty && op != OpIsNotEmpty
}

// Combinator joins the children of a group
type Combinator string

const (
	CombineAnd Combinator = "AND"
	CombineOr  Combinator = "OR"
)

// FilterCondition is a leaf of the filter tree
type FilterCondition struct {
	ColumnName string         `json:"columnName"`
	Operator   FilterOperator `json:"operator"`
	Value      string         `json:"value"`
}

// FilterGroup is an internal node. An empty group matches every row.
type FilterGroup struct {
	CombineWith Combinator   `json:"combineWith"`
	Conditions  []FilterNode `json:"conditions"`
}

// FilterNode is either a condition or a nested group; exactly one is set
type FilterNode struct {
	Condition *FilterCondition
	Group     *FilterGroup
}

// Cond builds a condition node
func Cond(column string, op FilterOperator, value string) FilterNode {
	return FilterNode{Condition: &FilterCondition{ColumnName: column, Operator: op, Value: value}}
}

// Group builds a group node
func Group(combine Combinator, children ...FilterNode) FilterNode {
	if children == nil {
		children = []FilterNode{}
	}
	return FilterNode{Group: &FilterGroup{CombineWith: combine, Conditions: children}}
}

// NewFilter builds a root group
func NewFilter(combine Combinator, children ...FilterNode) FilterGroup {
	if children == nil {
		children = []FilterNode{}
	}
	return FilterGroup{CombineWith: combine, Conditions: children}
}

// IsEmpty reports whether the group has no conditions at all
func (g FilterGroup) IsEmpty() bool {
	return len(g.Conditions) == 0
}

// MarshalJSON encodes the variant that is set
func (n FilterNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Condition != nil && n.Group == nil:
		return json.Marshal(n.Condition)
	case n.Group != nil && n.Condition == nil:
		return json.Marshal(n.Group)
	default:
		return nil, fmt.Errorf("filter node must hold exactly one of condition or group")
	}
}

// UnmarshalJSON decodes a condition when an "operator" key is present and a
// group otherwise
func (n *FilterNode) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("filter node must be an object: %w", err)
	}

	if _, ok := fields["operator"]; ok {
		var c FilterCondition
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		if c.Operator.Valid() && c.Operator.NeedsValue() {
			if _, ok := fields["value"]; !ok {
				return fmt.Errorf("operator %q requires a value", c.Operator)
			}
		}
		*n = FilterNode{Condition: &c}
		return nil
	}

	_, hasCombine := fields["combineWith"]
	_, hasConditions := fields["conditions"]
	if !hasCombine && !hasConditions {
		return fmt.Errorf("filter node is neither a condition nor a group")
	}

	var g FilterGroup
	if err := json.Unmarshal(data, &g); err != nil {
		return err
	}
	*n = FilterNode{Group: &g}
	return nil
}

// ParseFilter decodes a persisted filtering value. The empty string is the
// inactive filter.
func ParseFilter(text string) (FilterGroup, error) {
	if strings.TrimSpace(text) == "" {
		return FilterGroup{CombineWith: CombineAnd}, nil
	}

	var g FilterGroup
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		return FilterGroup{}, fmt.Errorf("malformed filter: %w", err)
	}
	if g.CombineWith == "" && len(g.Conditions) == 0 {
		g.CombineWith = CombineAnd
	}
	return g, nil
}

// Encode serializes the group for persistence. An empty root encodes to the
// empty string.
func (g FilterGroup) Encode() (string, error) {
	if g.IsEmpty() {
		return "", nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	return string(data), nil
}

// Validate checks the whole tree against the table schema
func (g FilterGroup) Validate(schema Schema) error {
	return g.validate(schema, "root")
}

func (g FilterGroup) validate(schema Schema, path string) error {
	if g.CombineWith != CombineAnd && g.CombineWith != CombineOr {
		return fmt.Errorf("%s: combineWith must be AND or OR, got %q", path, g.CombineWith)
	}

	for i, node := range g.Conditions {
		childPath := fmt.Sprintf("%s.%d", path, i)
		switch {
		case node.Condition != nil && node.Group == nil:
			if err := node.Condition.validate(schema, childPath); err != nil {
				return err
			}
		case node.Group != nil && node.Condition == nil:
			if err := node.Group.validate(schema, childPath); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: node must hold exactly one of condition or group", childPath)
		}
	}
	return nil
}

func (c FilterCondition) validate(schema Schema, path string) error {
	if !c.Operator.Valid() {
		return fmt.Errorf("%s: unknown operator %q", path, c.Operator)
	}
	if _, ok := schema[c.ColumnName]; !ok {
		return fmt.Errorf("%s: unknown column %q", path, c.ColumnName)
	}
	return nil
}

// ColumnNames returns every column referenced by a leaf of the tree
func (g FilterGroup) ColumnNames() []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(FilterGroup)
	walk = func(group FilterGroup) {
		for _, node := range group.Conditions {
			if node.Condition != nil && !seen[node.Condition.ColumnName] {
				seen[node.Condition.ColumnName] = true
				names = append(names, node.Condition.ColumnName)
			}
			if node.Group != nil {
				walk(*node.Group)
			}
		}
	}
	walk(g)
	return names
}
