// Package store persists tables, columns, rows and cells.
package store

import (
	"context"
	"fmt"

	"github.com/rebeliceyang/lazygrid/internal/apperrors"
	"github.com/rebeliceyang/lazygrid/internal/filter"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

// RankFunc computes new physical ranks from a table's current rows. It runs
// inside the reorder transaction.
type RankFunc func(rows []models.Row) []models.RowRank

// ViewState is the view state Reorder persists together with the new ranks.
// A nil Filtering leaves the table's filter as it is.
type ViewState struct {
	Filtering *string
	Sorting   string
}

// SelectFunc picks the rows of a snapshot from the table and its columns as
// read in the same transaction. A nil query selects every row.
type SelectFunc func(table models.Table, columns []models.Column) (*filter.Query, error)

// Store is the schema and row/cell store. Every mutating method is atomic.
type Store interface {
	// Dialect returns the SQL dialect filter queries must be built for
	Dialect() filter.Dialect

	CreateTable(ctx context.Context, name string) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	GetTable(ctx context.Context, tableID string) (*models.Table, error)

	// ListColumns returns the table's columns by display order
	ListColumns(ctx context.Context, tableID string) ([]models.Column, error)
	// CreateColumn appends a column and an empty cell for every existing row
	CreateColumn(ctx context.Context, tableID, name string, typ models.ColumnType) (*models.Column, error)

	// CreateRow appends a row with one cell per column. values is keyed by
	// column name; missing names get the empty string.
	CreateRow(ctx context.Context, tableID string, values map[string]string) (*models.Row, error)
	UpdateCellValue(ctx context.Context, cellID, value string) (*models.Cell, error)

	// LoadRows returns every row of the table with its cells, by current order
	LoadRows(ctx context.Context, tableID string) ([]models.Row, error)
	// LoadMatchingRows returns the rows selected by a filter query, by current order
	LoadMatchingRows(ctx context.Context, q filter.Query) ([]models.Row, error)
	// SelectRowIDs runs a filter query and returns the matching row ids
	SelectRowIDs(ctx context.Context, q filter.Query) ([]string, error)

	// Snapshot reads the table, its columns and the rows chosen by sel in
	// one transaction
	Snapshot(ctx context.Context, tableID string, sel SelectFunc) (*models.TableView, error)

	// SetFiltering persists the serialized filter tree
	SetFiltering(ctx context.Context, tableID, filtering string) error
	// Reorder reads the table's rows, ranks them and persists the ranks
	// together with state in one transaction
	Reorder(ctx context.Context, tableID string, state ViewState, rank RankFunc) error

	Ping(ctx context.Context) error
	Close() error
}

const tableColumns = `id, name, filtering, sorting, created_at, updated_at`

func scanTable(sc interface{ Scan(...any) error }) (models.Table, error) {
	var t models.Table
	err := sc.Scan(&t.ID, &t.Name, &t.Filtering, &t.Sorting, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// rowBuilder assembles rows from a row/cell join ordered by row
type rowBuilder struct {
	rows  []models.Row
	index map[string]int
}

func newRowBuilder() *rowBuilder {
	return &rowBuilder{index: make(map[string]int)}
}

func (b *rowBuilder) add(row models.Row, cell *models.Cell) {
	i, ok := b.index[row.ID]
	if !ok {
		row.Cells = []models.Cell{}
		b.rows = append(b.rows, row)
		i = len(b.rows) - 1
		b.index[row.ID] = i
	}
	if cell != nil {
		b.rows[i].Cells = append(b.rows[i].Cells, *cell)
	}
}

func (b *rowBuilder) result() []models.Row {
	if b.rows == nil {
		return []models.Row{}
	}
	return b.rows
}

// checkRank verifies that ranks cover exactly the given rows
func checkRank(rows []models.Row, ranks []models.RowRank) error {
	if len(ranks) != len(rows) {
		return fmt.Errorf("rank covers %d of %d rows", len(ranks), len(rows))
	}
	known := make(map[string]bool, len(rows))
	for _, r := range rows {
		known[r.ID] = true
	}
	for _, r := range ranks {
		if !known[r.RowID] {
			return fmt.Errorf("rank names unknown row %s", r.RowID)
		}
		delete(known, r.RowID)
	}
	return nil
}

// checkValues rejects values addressed to columns the table does not have
func checkValues(columns []models.Column, values map[string]string) error {
	schema := models.NewSchema(columns)
	for name := range values {
		if _, ok := schema[name]; !ok {
			return apperrors.Validationf("unknown column %q", name)
		}
	}
	return nil
}

func tableNotFound(tableID string) error {
	return apperrors.NotFound(fmt.Sprintf("table %s not found", tableID))
}

func cellNotFound(cellID string) error {
	return apperrors.NotFound(fmt.Sprintf("cell %s not found", cellID))
}

func duplicateColumn(name string) error {
	return apperrors.Validationf("column %q already exists", name)
}

// wrap classifies a storage failure unless it is already classified
func wrap(op string, err error) error {
	if err == nil || apperrors.KindOf(err) != 0 {
		return err
	}
	return apperrors.Persistence(op, err)
}
