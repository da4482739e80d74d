package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rebeliceyang/lazygrid/internal/models"
)

// Query is a parameterized SQL statement
type Query struct {
	SQL  string
	Args []any
}

// Builder generates the bulk row selection for a filter tree. Every leaf
// condition gets its own LEFT JOIN on the cells table, aliased by its path in
// the tree, and every literal is a bound argument.
type Builder struct {
	dialect Dialect
}

// NewBuilder creates a new filter builder
func NewBuilder(dialect Dialect) *Builder {
	return &Builder{dialect: dialect}
}

// argMarker stands in for a bind marker until the statement is assembled;
// positional dialects need arguments in textual order
const argMarker = "\x00"

// buildState accumulates joins and arguments for one statement
type buildState struct {
	dialect   Dialect
	joins     []string
	joinArgs  []any
	whereArgs []any
}

func (s *buildState) bindJoin(v any) string {
	s.joinArgs = append(s.joinArgs, v)
	return argMarker
}

func (s *buildState) bind(v any) string {
	s.whereArgs = append(s.whereArgs, v)
	return argMarker
}

// BuildRowSelect returns a query selecting the ids of the table's rows that
// match the group, in current physical order. The group is validated against
// the schema first so no unknown column name reaches the statement.
func (b *Builder) BuildRowSelect(tableID string, schema models.Schema, group models.FilterGroup) (Query, error) {
	if err := group.Validate(schema); err != nil {
		return Query{}, err
	}

	s := &buildState{dialect: b.dialect}
	where, err := s.buildGroup(group, nil)
	if err != nil {
		return Query{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT r.id FROM grid_rows r")
	for _, j := range s.joins {
		sb.WriteString("\n")
		sb.WriteString(j)
	}
	sb.WriteString("\nWHERE r.table_id = " + argMarker + " AND ")
	sb.WriteString(where)
	sb.WriteString("\nORDER BY r.sort_order, r.orig_order")

	args := make([]any, 0, len(s.joinArgs)+1+len(s.whereArgs))
	args = append(args, s.joinArgs...)
	args = append(args, tableID)
	args = append(args, s.whereArgs...)

	return Query{SQL: s.number(sb.String()), Args: args}, nil
}

// number replaces markers with the dialect's placeholders in textual order
func (s *buildState) number(sql string) string {
	var sb strings.Builder
	n := 0
	for {
		i := strings.Index(sql, argMarker)
		if i < 0 {
			sb.WriteString(sql)
			return sb.String()
		}
		n++
		sb.WriteString(sql[:i])
		sb.WriteString(s.dialect.Placeholder(n))
		sql = sql[i+len(argMarker):]
	}
}

// buildGroup recursively builds a filter group
func (s *buildState) buildGroup(group models.FilterGroup, path []int) (string, error) {
	if len(group.Conditions) == 0 {
		return s.dialect.Bool(true), nil
	}

	clauses := make([]string, 0, len(group.Conditions))
	for i, node := range group.Conditions {
		childPath := append(append([]int(nil), path...), i)

		var clause string
		var err error
		switch {
		case node.Condition != nil:
			clause, err = s.buildCondition(*node.Condition, childPath)
		case node.Group != nil:
			clause, err = s.buildGroup(*node.Group, childPath)
		default:
			err = fmt.Errorf("empty filter node at %v", childPath)
		}
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}

	logic := " AND "
	if group.CombineWith == models.CombineOr {
		logic = " OR "
	}
	return "(" + strings.Join(clauses, logic) + ")", nil
}

// leafAlias derives a unique alias from a leaf's depth and position
func leafAlias(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("f%d_%s", len(path), strings.Join(parts, "_"))
}

// buildCondition joins the leaf's cell and returns its boolean expression
func (s *buildState) buildCondition(cond models.FilterCondition, path []int) (string, error) {
	alias := leafAlias(path)
	s.joins = append(s.joins, fmt.Sprintf(
		"LEFT JOIN grid_cells %s ON %s.row_id = r.id AND %s.column_name = %s",
		alias, alias, alias, s.bindJoin(cond.ColumnName),
	))

	// a missing cell reads as the empty string
	value := fmt.Sprintf("COALESCE(%s.value, '')", alias)
	d := s.dialect

	switch cond.Operator {
	case models.OpIs:
		return fmt.Sprintf("%s = %s", value, s.bind(cond.Value)), nil
	case models.OpIsNot:
		return fmt.Sprintf("%s <> %s", value, s.bind(cond.Value)), nil
	case models.OpContains:
		return d.Contains(d.Fold(value), s.bind(strings.ToLower(cond.Value))), nil
	case models.OpNotContains:
		return "NOT (" + d.Contains(d.Fold(value), s.bind(strings.ToLower(cond.Value))) + ")", nil
	case models.OpIsEmpty:
		return value + " = ''", nil
	case models.OpIsNotEmpty:
		return value + " <> ''", nil
	case models.OpGreaterThan, models.OpLessThan:
		n, ok := models.ParseNumber(cond.Value)
		if !ok {
			// a non-numeric operand matches nothing
			return d.Bool(false), nil
		}
		cmp := ">"
		if cond.Operator == models.OpLessThan {
			cmp = "<"
		}
		return fmt.Sprintf("COALESCE(%s %s %s, %s)", d.Number(value), cmp, s.bind(n), d.Bool(false)), nil
	default:
		return "", fmt.Errorf("unsupported operator: %s", cond.Operator)
	}
}
