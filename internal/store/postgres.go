package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rebeliceyang/lazygrid/internal/config"
	"github.com/rebeliceyang/lazygrid/internal/db/connection"
	"github.com/rebeliceyang/lazygrid/internal/filter"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations to the configured database
func Migrate(cfg config.DatabaseConfig) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, connection.ConnectionURL(cfg))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Postgres is a Store backed by a PostgreSQL connection pool
type Postgres struct {
	pool *connection.Pool
}

// NewPostgres migrates the database and opens a pool on it
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	if err := Migrate(cfg); err != nil {
		return nil, err
	}
	pool, err := connection.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Dialect() filter.Dialect { return filter.Postgres{} }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, p.pool.GetPool(), fn)
	return wrap(op, err)
}

func (p *Postgres) CreateTable(ctx context.Context, name string) (*models.Table, error) {
	var t models.Table
	err := p.pool.GetPool().QueryRow(ctx,
		`INSERT INTO grid_tables (id, name) VALUES ($1, $2) RETURNING `+tableColumns,
		uuid.NewString(), name,
	).Scan(&t.ID, &t.Name, &t.Filtering, &t.Sorting, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrap("create table", err)
	}
	return &t, nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := p.pool.GetPool().Query(ctx, `SELECT `+tableColumns+` FROM grid_tables ORDER BY created_at, name`)
	if err != nil {
		return nil, wrap("list tables", err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Table, error) {
		return scanTable(row)
	})
	if err != nil {
		return nil, wrap("list tables", err)
	}
	return tables, nil
}

func (p *Postgres) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	t, err := scanTable(p.pool.GetPool().QueryRow(ctx,
		`SELECT `+tableColumns+` FROM grid_tables WHERE id = $1`, tableID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tableNotFound(tableID)
	}
	if err != nil {
		return nil, wrap("get table", err)
	}
	return &t, nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgListColumns(ctx context.Context, q pgQuerier, tableID string) ([]models.Column, error) {
	rows, err := q.Query(ctx,
		`SELECT id, table_id, name, type, position FROM grid_columns WHERE table_id = $1 ORDER BY position`, tableID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Column, error) {
		var c models.Column
		err := row.Scan(&c.ID, &c.TableID, &c.Name, &c.Type, &c.Order)
		return c, err
	})
}

func (p *Postgres) ListColumns(ctx context.Context, tableID string) ([]models.Column, error) {
	if _, err := p.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	columns, err := pgListColumns(ctx, p.pool.GetPool(), tableID)
	return columns, wrap("list columns", err)
}

// lockTable takes the row lock that serializes view mutations on a table
func lockTable(ctx context.Context, tx pgx.Tx, tableID string) error {
	tag, err := tx.Exec(ctx, `UPDATE grid_tables SET updated_at = NOW() WHERE id = $1`, tableID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tableNotFound(tableID)
	}
	return nil
}

func (p *Postgres) CreateColumn(ctx context.Context, tableID, name string, typ models.ColumnType) (*models.Column, error) {
	col := &models.Column{ID: uuid.NewString(), TableID: tableID, Name: name, Type: typ}

	err := p.withTx(ctx, "create column", func(tx pgx.Tx) error {
		if err := lockTable(ctx, tx, tableID); err != nil {
			return err
		}

		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM grid_columns WHERE table_id = $1`, tableID,
		).Scan(&col.Order); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO grid_columns (id, table_id, name, type, position) VALUES ($1, $2, $3, $4, $5)`,
			col.ID, col.TableID, col.Name, string(col.Type), col.Order); err != nil {
			if isPgUnique(err) {
				return duplicateColumn(name)
			}
			return err
		}

		rows, err := tx.Query(ctx, `SELECT id FROM grid_rows WHERE table_id = $1`, tableID)
		if err != nil {
			return err
		}
		rowIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		cells := make([][]any, len(rowIDs))
		for i, rowID := range rowIDs {
			cells[i] = []any{uuid.NewString(), rowID, col.ID, col.Name, string(col.Type), ""}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"grid_cells"},
			[]string{"id", "row_id", "column_id", "column_name", "type", "value"},
			pgx.CopyFromRows(cells))
		return err
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (p *Postgres) CreateRow(ctx context.Context, tableID string, values map[string]string) (*models.Row, error) {
	row := &models.Row{ID: uuid.NewString(), TableID: tableID}

	err := p.withTx(ctx, "create row", func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE grid_tables SET row_seq = row_seq + 1, updated_at = NOW() WHERE id = $1 RETURNING row_seq`,
			tableID,
		).Scan(&row.OrigOrder)
		if errors.Is(err, pgx.ErrNoRows) {
			return tableNotFound(tableID)
		}
		if err != nil {
			return err
		}
		row.Order = row.OrigOrder

		columns, err := pgListColumns(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := checkValues(columns, values); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO grid_rows (id, table_id, sort_order, orig_order) VALUES ($1, $2, $3, $4)`,
			row.ID, tableID, row.Order, row.OrigOrder)

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
			batch.Queue(`INSERT INTO grid_cells (id, row_id, column_id, column_name, type, value) VALUES ($1, $2, $3, $4, $5, $6)`,
				cell.ID, cell.RowID, cell.ColumnID, cell.ColumnName, string(cell.Type), cell.Value)
			row.Cells = append(row.Cells, cell)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (p *Postgres) UpdateCellValue(ctx context.Context, cellID, value string) (*models.Cell, error) {
	var c models.Cell
	err := p.pool.GetPool().QueryRow(ctx,
		`UPDATE grid_cells SET value = $1 WHERE id = $2
		 RETURNING id, row_id, column_id, column_name, type, value`,
		value, cellID,
	).Scan(&c.ID, &c.RowID, &c.ColumnID, &c.ColumnName, &c.Type, &c.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cellNotFound(cellID)
	}
	if err != nil {
		return nil, wrap("update cell", err)
	}
	return &c, nil
}

func pgLoadRows(ctx context.Context, q pgQuerier, query string, args ...any) ([]models.Row, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	b := newRowBuilder()
	for rows.Next() {
		var r models.Row
		var cellID, columnID, columnName, cellType, value *string
		if err := rows.Scan(&r.ID, &r.TableID, &r.Order, &r.OrigOrder,
			&cellID, &columnID, &columnName, &cellType, &value); err != nil {
			return nil, err
		}

		var cell *models.Cell
		if cellID != nil {
			cell = &models.Cell{
				ID:         *cellID,
				RowID:      r.ID,
				ColumnID:   *columnID,
				ColumnName: *columnName,
				Type:       models.ColumnType(*cellType),
				Value:      *value,
			}
		}
		b.add(r, cell)
	}
	return b.result(), rows.Err()
}

func (p *Postgres) LoadRows(ctx context.Context, tableID string) ([]models.Row, error) {
	rows, err := pgLoadRows(ctx, p.pool.GetPool(), rowSelect+`WHERE r.table_id = $1`+rowOrder, tableID)
	return rows, wrap("load rows", err)
}

// LoadMatchingRows nests the filter query; the outer statement binds nothing
// so the filter's placeholder numbering stands.
func (p *Postgres) LoadMatchingRows(ctx context.Context, q filter.Query) ([]models.Row, error) {
	rows, err := pgLoadRows(ctx, p.pool.GetPool(), rowSelect+`WHERE r.id IN (`+q.SQL+`)`+rowOrder, q.Args...)
	return rows, wrap("load rows", err)
}

func (p *Postgres) SelectRowIDs(ctx context.Context, q filter.Query) ([]string, error) {
	rows, err := p.pool.GetPool().Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, wrap("select rows", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, wrap("select rows", err)
}

func (p *Postgres) SetFiltering(ctx context.Context, tableID, filtering string) error {
	return p.withTx(ctx, "set filter", func(tx pgx.Tx) error {
		if err := lockTable(ctx, tx, tableID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE grid_tables SET filtering = $1 WHERE id = $2`, filtering, tableID)
		return err
	})
}

func (p *Postgres) Reorder(ctx context.Context, tableID string, state ViewState, rank RankFunc) error {
	return p.withTx(ctx, "reorder rows", func(tx pgx.Tx) error {
		if err := lockTable(ctx, tx, tableID); err != nil {
			return err
		}

		rows, err := pgLoadRows(ctx, tx, rowSelect+`WHERE r.table_id = $1`+rowOrder, tableID)
		if err != nil {
			return err
		}
		ranks := rank(rows)
		if err := checkRank(rows, ranks); err != nil {
			return err
		}

		ids := make([]string, len(ranks))
		orders := make([]int64, len(ranks))
		for i, r := range ranks {
			ids[i] = r.RowID
			orders[i] = int64(r.Order)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE grid_rows AS r SET sort_order = v.ord
			FROM unnest($1::text[], $2::bigint[]) AS v(id, ord)
			WHERE r.id = v.id`, ids, orders); err != nil {
			return err
		}

		if state.Filtering != nil {
			if _, err := tx.Exec(ctx, `UPDATE grid_tables SET filtering = $1 WHERE id = $2`, *state.Filtering, tableID); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `UPDATE grid_tables SET sorting = $1 WHERE id = $2`, state.Sorting, tableID)
		return err
	})
}

// Snapshot reads under a read-only repeatable read transaction so the table,
// columns and rows all come from one snapshot
func (p *Postgres) Snapshot(ctx context.Context, tableID string, sel SelectFunc) (*models.TableView, error) {
	var view *models.TableView
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, p.pool.GetPool(), opts, func(tx pgx.Tx) error {
		t, err := scanTable(tx.QueryRow(ctx,
			`SELECT `+tableColumns+` FROM grid_tables WHERE id = $1`, tableID))
		if errors.Is(err, pgx.ErrNoRows) {
			return tableNotFound(tableID)
		}
		if err != nil {
			return err
		}
		columns, err := pgListColumns(ctx, tx, tableID)
		if err != nil {
			return err
		}

		q, err := sel(t, columns)
		if err != nil {
			return err
		}
		var rows []models.Row
		if q == nil {
			rows, err = pgLoadRows(ctx, tx, rowSelect+`WHERE r.table_id = $1`+rowOrder, tableID)
		} else {
			rows, err = pgLoadRows(ctx, tx, rowSelect+`WHERE r.id IN (`+q.SQL+`)`+rowOrder, q.Args...)
		}
		if err != nil {
			return err
		}

		view = &models.TableView{Table: t, Columns: columns, Rows: rows}
		return nil
	})
	if err != nil {
		return nil, wrap("load view", err)
	}
	return view, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
