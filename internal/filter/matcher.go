package filter

import (
	"log/slog"
	"strings"

	"github.com/rebeliceyang/lazygrid/internal/models"
)

// Predicate decides whether a loaded row belongs to the view
type Predicate func(row *models.Row) bool

// MatchAll is the predicate of the inactive filter
func MatchAll(*models.Row) bool { return true }

// Matcher compiles filter trees into in-memory predicates
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a matcher that reports missing cells to logger
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// Compile validates the group against the schema and returns its predicate
func (m *Matcher) Compile(schema models.Schema, group models.FilterGroup) (Predicate, error) {
	if err := group.Validate(schema); err != nil {
		return nil, err
	}
	return m.compileGroup(group), nil
}

func (m *Matcher) compileGroup(group models.FilterGroup) Predicate {
	if len(group.Conditions) == 0 {
		return MatchAll
	}

	children := make([]Predicate, 0, len(group.Conditions))
	for _, node := range group.Conditions {
		switch {
		case node.Condition != nil:
			children = append(children, m.compileCondition(*node.Condition))
		case node.Group != nil:
			children = append(children, m.compileGroup(*node.Group))
		}
	}

	if group.CombineWith == models.CombineOr {
		return func(row *models.Row) bool {
			for _, p := range children {
				if p(row) {
					return true
				}
			}
			return false
		}
	}
	return func(row *models.Row) bool {
		for _, p := range children {
			if !p(row) {
				return false
			}
		}
		return true
	}
}

func (m *Matcher) compileCondition(cond models.FilterCondition) Predicate {
	test := conditionTest(cond)
	return func(row *models.Row) bool {
		return test(m.cellValue(row, cond.ColumnName))
	}
}

// cellValue resolves a leaf's cell, reading a missing cell as empty
func (m *Matcher) cellValue(row *models.Row, column string) string {
	cell, ok := row.Cell(column)
	if !ok {
		m.logger.Warn("row is missing a cell", "row_id", row.ID, "table_id", row.TableID, "column", column)
		return ""
	}
	return cell.Value
}

// conditionTest returns the operator's test on a single value
func conditionTest(cond models.FilterCondition) func(string) bool {
	switch cond.Operator {
	case models.OpIs:
		return func(v string) bool { return v == cond.Value }
	case models.OpIsNot:
		return func(v string) bool { return v != cond.Value }
	case models.OpContains:
		needle := strings.ToLower(cond.Value)
		return func(v string) bool { return strings.Contains(strings.ToLower(v), needle) }
	case models.OpNotContains:
		needle := strings.ToLower(cond.Value)
		return func(v string) bool { return !strings.Contains(strings.ToLower(v), needle) }
	case models.OpIsEmpty:
		return func(v string) bool { return v == "" }
	case models.OpIsNotEmpty:
		return func(v string) bool { return v != "" }
	case models.OpGreaterThan, models.OpLessThan:
		operand, ok := models.ParseNumber(cond.Value)
		if !ok {
			return func(string) bool { return false }
		}
		greater := cond.Operator == models.OpGreaterThan
		return func(v string) bool {
			n, ok := models.ParseNumber(v)
			if !ok {
				return false
			}
			if greater {
				return n > operand
			}
			return n < operand
		}
	default:
		// unreachable after validation
		return func(string) bool { return false }
	}
}

// MatchesSearch reports whether any cell of the row contains term, ignoring case
func MatchesSearch(row *models.Row, term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	for _, c := range row.Cells {
		if strings.Contains(strings.ToLower(c.Value), needle) {
			return true
		}
	}
	return false
}
