// Package ordering computes the persisted physical order of a table's rows.
package ordering

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/rebeliceyang/lazygrid/internal/models"
)

// sortValue is one precomputed component of a row's composite key
type sortValue struct {
	text    string
	number  float64
	numeric bool
}

type keyedRow struct {
	id        string
	origOrder int
	values    []sortValue
}

// Engine ranks rows and reports rows missing a sort key's cell
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a sort engine
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Rank ranks like the package level Rank and logs at WARN, once per key, how
// many rows lacked the key's cell
func (e *Engine) Rank(rows []models.Row, keys []models.SortKey) []models.RowRank {
	ranks, missing := rank(rows, keys)
	for k, n := range missing {
		if n == 0 {
			continue
		}
		var tableID string
		if len(rows) > 0 {
			tableID = rows[0].TableID
		}
		e.logger.Warn("rows are missing a sort key cell", "table_id", tableID, "column", keys[k].ColumnName, "rows", n)
	}
	return ranks
}

// Rank orders rows by keys and assigns ranks 1..N. Each key compares the
// named cell's value as its ColumnType, TEXT case-insensitively and NUMBER
// numerically with non-numeric values below every number. Rows equal on every
// key keep their OrigOrder. A missing cell sorts as the empty string.
func Rank(rows []models.Row, keys []models.SortKey) []models.RowRank {
	ranks, _ := rank(rows, keys)
	return ranks
}

// rank also returns, per key, how many rows lacked the key's cell
func rank(rows []models.Row, keys []models.SortKey) ([]models.RowRank, []int) {
	missing := make([]int, len(keys))
	keyed := make([]keyedRow, len(rows))
	for i := range rows {
		keyed[i] = keyedRow{
			id:        rows[i].ID,
			origOrder: rows[i].OrigOrder,
			values:    make([]sortValue, len(keys)),
		}
		for k, key := range keys {
			v, ok := valueFor(&rows[i], key)
			if !ok {
				missing[k]++
			}
			keyed[i].values[k] = v
		}
	}

	sort.SliceStable(keyed, func(a, b int) bool {
		for k, key := range keys {
			c := compare(keyed[a].values[k], keyed[b].values[k], key.ColumnType)
			if c == 0 {
				continue
			}
			if key.Order == models.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return keyed[a].origOrder < keyed[b].origOrder
	})

	ranks := make([]models.RowRank, len(keyed))
	for i, r := range keyed {
		ranks[i] = models.RowRank{RowID: r.id, Order: i + 1}
	}
	return ranks, missing
}

// Reset returns the ranks that restore creation order
func Reset(rows []models.Row) []models.RowRank {
	ranks := make([]models.RowRank, len(rows))
	for i, r := range rows {
		ranks[i] = models.RowRank{RowID: r.ID, Order: r.OrigOrder}
	}
	return ranks
}

func valueFor(row *models.Row, key models.SortKey) (sortValue, bool) {
	cell, found := row.Cell(key.ColumnName)
	if key.ColumnType == models.ColumnNumber {
		n, ok := models.ParseNumber(cell.Value)
		return sortValue{number: n, numeric: ok}, found
	}
	return sortValue{text: strings.ToLower(cell.Value)}, found
}

func compare(a, b sortValue, typ models.ColumnType) int {
	if typ == models.ColumnNumber {
		switch {
		case a.numeric != b.numeric:
			if a.numeric {
				return 1
			}
			return -1
		case !a.numeric:
			return 0
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		}
		return 0
	}
	return strings.Compare(a.text, b.text)
}
