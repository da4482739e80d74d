package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rebeliceyang/lazygrid/internal/filter"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

const sqliteDriverName = "sqlite3_lazygrid"

var registerOnce sync.Once

// registerDriver installs a sqlite3 driver whose connections carry the
// numeric and case folding functions used by filter queries
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc(filter.SQLiteNumberFunc, sqliteNumber, true); err != nil {
					return err
				}
				return conn.RegisterFunc(filter.SQLiteFoldFunc, strings.ToLower, true)
			},
		})
	})
}

func sqliteNumber(s string) any {
	n, ok := models.ParseNumber(s)
	if !ok {
		return nil
	}
	return n
}

// SQLite is a Store backed by a single SQLite file
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at path
func NewSQLite(path string) (*SQLite, error) {
	registerDriver()

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, err
	}

	// Create schema
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Dialect() filter.Dialect { return filter.SQLite{} }

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction, committing only when fn succeeds
func (s *SQLite) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return wrap(op, err)
	}
	return wrap(op, tx.Commit())
}

func (s *SQLite) CreateTable(ctx context.Context, name string) (*models.Table, error) {
	now := time.Now().UTC()
	t := &models.Table{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grid_tables (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, wrap("create table", err)
	}
	return t, nil
}

func (s *SQLite) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM grid_tables ORDER BY created_at, name`)
	if err != nil {
		return nil, wrap("list tables", err)
	}
	defer func() { _ = rows.Close() }()

	tables := []models.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, wrap("list tables", err)
		}
		tables = append(tables, t)
	}
	return tables, wrap("list tables", rows.Err())
}

func (s *SQLite) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	t, err := scanTable(s.db.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM grid_tables WHERE id = ?`, tableID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tableNotFound(tableID)
	}
	if err != nil {
		return nil, wrap("get table", err)
	}
	return &t, nil
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listColumns(ctx context.Context, q sqlQuerier, tableID string) ([]models.Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, table_id, name, type, position FROM grid_columns WHERE table_id = ? ORDER BY position`, tableID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := []models.Column{}
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.TableID, &c.Name, &c.Type, &c.Order); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (s *SQLite) ListColumns(ctx context.Context, tableID string) ([]models.Column, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	columns, err := listColumns(ctx, s.db, tableID)
	return columns, wrap("list columns", err)
}

// touchTable bumps updated_at and fails when the table does not exist
func touchTable(ctx context.Context, tx *sql.Tx, tableID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE grid_tables SET updated_at = ? WHERE id = ?`, time.Now().UTC(), tableID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return tableNotFound(tableID)
	}
	return nil
}

func (s *SQLite) CreateColumn(ctx context.Context, tableID, name string, typ models.ColumnType) (*models.Column, error) {
	col := &models.Column{ID: uuid.NewString(), TableID: tableID, Name: name, Type: typ}

	err := s.withTx(ctx, "create column", func(tx *sql.Tx) error {
		if err := touchTable(ctx, tx, tableID); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM grid_columns WHERE table_id = ? AND name = ?)`, tableID, name,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return duplicateColumn(name)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM grid_columns WHERE table_id = ?`, tableID,
		).Scan(&col.Order); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO grid_columns (id, table_id, name, type, position) VALUES (?, ?, ?, ?, ?)`,
			col.ID, col.TableID, col.Name, col.Type, col.Order); err != nil {
			if isSQLiteUnique(err) {
				return duplicateColumn(name)
			}
			return err
		}

		rowIDs, err := queryStrings(ctx, tx, `SELECT id FROM grid_rows WHERE table_id = ?`, tableID)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO grid_cells (id, row_id, column_id, column_name, type, value) VALUES (?, ?, ?, ?, ?, '')`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, rowID := range rowIDs {
			if _, err := stmt.ExecContext(ctx, uuid.NewString(), rowID, col.ID, col.Name, col.Type); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (s *SQLite) CreateRow(ctx context.Context, tableID string, values map[string]string) (*models.Row, error) {
	row := &models.Row{ID: uuid.NewString(), TableID: tableID}

	err := s.withTx(ctx, "create row", func(tx *sql.Tx) error {
		// the counter update also takes the write lock for the table
		err := tx.QueryRowContext(ctx,
			`UPDATE grid_tables SET row_seq = row_seq + 1, updated_at = ? WHERE id = ? RETURNING row_seq`,
			time.Now().UTC(), tableID,
		).Scan(&row.OrigOrder)
		if errors.Is(err, sql.ErrNoRows) {
			return tableNotFound(tableID)
		}
		if err != nil {
			return err
		}
		row.Order = row.OrigOrder

		columns, err := listColumns(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := checkValues(columns, values); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO grid_rows (id, table_id, sort_order, orig_order) VALUES (?, ?, ?, ?)`,
			row.ID, tableID, row.Order, row.OrigOrder); err != nil {
			return err
		}

		row.Cells = make([]models.Cell, 0, len(columns))
		for _, col := range columns {
			cell := models.Cell{
				ID:         uuid.NewString(),
				RowID:      row.ID,
				ColumnID:   col.ID,
				ColumnName: col.Name,
				Type:       col.Type,
				Value:      values[col.Name],
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO grid_cells (id, row_id, column_id, column_name, type, value) VALUES (?, ?, ?, ?, ?, ?)`,
				cell.ID, cell.RowID, cell.ColumnID, cell.ColumnName, cell.Type, cell.Value); err != nil {
				return err
			}
			row.Cells = append(row.Cells, cell)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *SQLite) UpdateCellValue(ctx context.Context, cellID, value string) (*models.Cell, error) {
	var c models.Cell
	err := s.db.QueryRowContext(ctx,
		`UPDATE grid_cells SET value = ? WHERE id = ?
		 RETURNING id, row_id, column_id, column_name, type, value`,
		value, cellID,
	).Scan(&c.ID, &c.RowID, &c.ColumnID, &c.ColumnName, &c.Type, &c.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cellNotFound(cellID)
	}
	if err != nil {
		return nil, wrap("update cell", err)
	}
	return &c, nil
}

// rowSelect loads rows joined with their cells in display order
const rowSelect = `SELECT r.id, r.table_id, r.sort_order, r.orig_order,
       c.id, c.column_id, c.column_name, c.type, c.value
FROM grid_rows r
LEFT JOIN grid_cells c ON c.row_id = r.id
LEFT JOIN grid_columns col ON col.id = c.column_id
`

const rowOrder = `
ORDER BY r.sort_order, r.orig_order, col.position`

func loadRows(ctx context.Context, q sqlQuerier, query string, args ...any) ([]models.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	b := newRowBuilder()
	for rows.Next() {
		var r models.Row
		var cellID, columnID, columnName, cellType, value sql.NullString
		if err := rows.Scan(&r.ID, &r.TableID, &r.Order, &r.OrigOrder,
			&cellID, &columnID, &columnName, &cellType, &value); err != nil {
			return nil, err
		}

		var cell *models.Cell
		if cellID.Valid {
			cell = &models.Cell{
				ID:         cellID.String,
				RowID:      r.ID,
				ColumnID:   columnID.String,
				ColumnName: columnName.String,
				Type:       models.ColumnType(cellType.String),
				Value:      value.String,
			}
		}
		b.add(r, cell)
	}
	return b.result(), rows.Err()
}

func (s *SQLite) LoadRows(ctx context.Context, tableID string) ([]models.Row, error) {
	rows, err := loadRows(ctx, s.db, rowSelect+`WHERE r.table_id = ?`+rowOrder, tableID)
	return rows, wrap("load rows", err)
}

func (s *SQLite) LoadMatchingRows(ctx context.Context, q filter.Query) ([]models.Row, error) {
	rows, err := loadRows(ctx, s.db, rowSelect+`WHERE r.id IN (`+q.SQL+`)`+rowOrder, q.Args...)
	return rows, wrap("load rows", err)
}

func queryStrings(ctx context.Context, q sqlQuerier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) SelectRowIDs(ctx context.Context, q filter.Query) ([]string, error) {
	ids, err := queryStrings(ctx, s.db, q.SQL, q.Args...)
	return ids, wrap("select rows", err)
}

func (s *SQLite) SetFiltering(ctx context.Context, tableID, filtering string) error {
	return s.withTx(ctx, "set filter", func(tx *sql.Tx) error {
		if err := touchTable(ctx, tx, tableID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE grid_tables SET filtering = ? WHERE id = ?`, filtering, tableID)
		return err
	})
}

func (s *SQLite) Reorder(ctx context.Context, tableID string, state ViewState, rank RankFunc) error {
	return s.withTx(ctx, "reorder rows", func(tx *sql.Tx) error {
		if err := touchTable(ctx, tx, tableID); err != nil {
			return err
		}

		rows, err := loadRows(ctx, tx, rowSelect+`WHERE r.table_id = ?`+rowOrder, tableID)
		if err != nil {
			return err
		}
		ranks := rank(rows)
		if err := checkRank(rows, ranks); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `UPDATE grid_rows SET sort_order = ? WHERE id = ?`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, r := range ranks {
			if _, err := stmt.ExecContext(ctx, r.Order, r.RowID); err != nil {
				return err
			}
		}

		if state.Filtering != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE grid_tables SET filtering = ? WHERE id = ?`, *state.Filtering, tableID); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE grid_tables SET sorting = ? WHERE id = ?`, state.Sorting, tableID)
		return err
	})
}

func (s *SQLite) Snapshot(ctx context.Context, tableID string, sel SelectFunc) (*models.TableView, error) {
	var view *models.TableView
	err := s.withTx(ctx, "load view", func(tx *sql.Tx) error {
		t, err := scanTable(tx.QueryRowContext(ctx,
			`SELECT `+tableColumns+` FROM grid_tables WHERE id = ?`, tableID))
		if errors.Is(err, sql.ErrNoRows) {
			return tableNotFound(tableID)
		}
		if err != nil {
			return err
		}
		columns, err := listColumns(ctx, tx, tableID)
		if err != nil {
			return err
		}

		q, err := sel(t, columns)
		if err != nil {
			return err
		}
		var rows []models.Row
		if q == nil {
			rows, err = loadRows(ctx, tx, rowSelect+`WHERE r.table_id = ?`+rowOrder, tableID)
		} else {
			rows, err = loadRows(ctx, tx, rowSelect+`WHERE r.id IN (`+q.SQL+`)`+rowOrder, q.Args...)
		}
		if err != nil {
			return err
		}

		view = &models.TableView{Table: t, Columns: columns, Rows: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isSQLiteUnique(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
