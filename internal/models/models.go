package models

import (
	"fmt"
	"strings"
	"time"
)

// ColumnType identifies how cell values of a column are interpreted
type ColumnType string

const (
	ColumnText   ColumnType = "TEXT"
	ColumnNumber ColumnType = "NUMBER"
)

// ParseColumnType normalizes a user supplied column type
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToUpper(strings.TrimSpace(s))) {
	case ColumnText:
		return ColumnText, nil
	case ColumnNumber:
		return ColumnNumber, nil
	default:
		return "", fmt.Errorf("unknown column type %q", s)
	}
}

// Table is the unit of transactional consistency for view state
type Table struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Filtering string    `json:"filtering"`
	Sorting   string    `json:"sorting"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Column is a user defined column. Name is the join key for filters and sorts.
type Column struct {
	ID      string     `json:"id"`
	TableID string     `json:"tableId"`
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	Order   int        `json:"order"`
}

// Row is a table row. Order is the current physical rank, OrigOrder the
// immutable insertion sequence.
type Row struct {
	ID        string `json:"id"`
	TableID   string `json:"tableId"`
	Order     int    `json:"order"`
	OrigOrder int    `json:"origOrder"`
	Cells     []Cell `json:"cells"`
}

// Cell holds one value. ColumnName and Type are copied from the column when the
// cell is created.
type Cell struct {
	ID         string     `json:"id"`
	RowID      string     `json:"rowId"`
	ColumnID   string     `json:"columnId"`
	ColumnName string     `json:"columnName"`
	Type       ColumnType `json:"type"`
	Value      string     `json:"value"`
}

// Cell returns the cell for the named column
func (r *Row) Cell(columnName string) (Cell, bool) {
	for _, c := range r.Cells {
		if c.ColumnName == columnName {
			return c, true
		}
	}
	return Cell{}, false
}

// RowRank assigns a physical rank to a row
type RowRank struct {
	RowID string
	Order int
}

// TableView is a loaded table: columns by order, rows by current order
type TableView struct {
	Table   Table    `json:"table"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnNames returns the column names in display order
func (v *TableView) ColumnNames() []string {
	names := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema indexes a table's columns by name
type Schema map[string]Column

// NewSchema builds a Schema from a column list
func NewSchema(columns []Column) Schema {
	s := make(Schema, len(columns))
	for _, c := range columns {
		s[c.Name] = c
	}
	return s
}
