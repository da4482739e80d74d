// Package view keeps a table's persisted filter and sort state in step with
// its rows and replays the filter on every load.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rebeliceyang/lazygrid/internal/apperrors"
	"github.com/rebeliceyang/lazygrid/internal/filter"
	"github.com/rebeliceyang/lazygrid/internal/history"
	"github.com/rebeliceyang/lazygrid/internal/models"
	"github.com/rebeliceyang/lazygrid/internal/ordering"
	"github.com/rebeliceyang/lazygrid/internal/presets"
	"github.com/rebeliceyang/lazygrid/internal/store"
)

// Strategy selects where a persisted filter is evaluated
type Strategy string

const (
	// StrategyQuery selects matching rows with one bulk SQL query
	StrategyQuery Strategy = "query"
	// StrategyMemory loads every row and applies the compiled predicate
	StrategyMemory Strategy = "memory"
)

// ParseStrategy validates a configured strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyQuery:
		return StrategyQuery, nil
	case StrategyMemory:
		return StrategyMemory, nil
	default:
		return "", fmt.Errorf("unknown filter strategy %q", s)
	}
}

// HistoryLog records view mutations
type HistoryLog interface {
	Add(ctx context.Context, entry history.Entry) error
	Recent(ctx context.Context, tableID string, limit int) ([]history.Entry, error)
}

// Options configures a Manager
type Options struct {
	Strategy  Strategy
	CacheSize int
	CacheTTL  time.Duration
	// History is optional
	History HistoryLog
}

// Manager is the single entry point for view state changes and view loads
type Manager struct {
	store    store.Store
	compiler *filter.Compiler
	ranker   *ordering.Engine
	strategy Strategy
	history  HistoryLog
	logger   *slog.Logger
}

// NewManager creates a view manager over st
func NewManager(st store.Store, opts Options, logger *slog.Logger) *Manager {
	if opts.Strategy == "" {
		opts.Strategy = StrategyQuery
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	return &Manager{
		store:    st,
		compiler: filter.NewCompiler(st.Dialect(), logger, opts.CacheSize, opts.CacheTTL),
		ranker:   ordering.NewEngine(logger),
		strategy: opts.Strategy,
		history:  opts.History,
		logger:   logger,
	}
}

// CreateTable creates an empty table
func (m *Manager) CreateTable(ctx context.Context, name string) (*models.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validationf("table name cannot be empty")
	}
	return m.store.CreateTable(ctx, name)
}

// ListTables returns every table
func (m *Manager) ListTables(ctx context.Context) ([]models.Table, error) {
	return m.store.ListTables(ctx)
}

// CreateColumn adds a column to a table. The cached filter of the table is
// dropped since it was compiled against the old column set.
func (m *Manager) CreateColumn(ctx context.Context, tableID, name, typ string) (*models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validationf("column name cannot be empty")
	}
	colType, err := models.ParseColumnType(typ)
	if err != nil {
		return nil, apperrors.Validation(err)
	}

	col, err := m.store.CreateColumn(ctx, tableID, name, colType)
	if err != nil {
		return nil, err
	}
	m.compiler.Invalidate(tableID)
	return col, nil
}

// CreateRow appends a row. values is keyed by column name.
func (m *Manager) CreateRow(ctx context.Context, tableID string, values map[string]string) (*models.Row, error) {
	return m.store.CreateRow(ctx, tableID, values)
}

// UpdateCell changes a cell's value
func (m *Manager) UpdateCell(ctx context.Context, cellID, value string) (*models.Cell, error) {
	return m.store.UpdateCellValue(ctx, cellID, value)
}

// SetFilter validates and persists a table's filter tree. Row order is not
// touched.
func (m *Manager) SetFilter(ctx context.Context, tableID string, group models.FilterGroup) error {
	start := time.Now()
	payload, err := group.Encode()
	if err != nil {
		err = apperrors.Validation(err)
	} else {
		err = m.setFilter(ctx, tableID, group, payload)
	}
	m.record(ctx, tableID, history.KindFilter, payload, start, err)
	return err
}

// SetFilterJSON parses a serialized filter tree and applies it
func (m *Manager) SetFilterJSON(ctx context.Context, tableID, text string) error {
	group, err := models.ParseFilter(text)
	if err != nil {
		m.record(ctx, tableID, history.KindFilter, text, time.Now(), apperrors.Validation(err))
		return apperrors.Validation(err)
	}
	return m.SetFilter(ctx, tableID, group)
}

// setFilter persists text, the encoded form of group
func (m *Manager) setFilter(ctx context.Context, tableID string, group models.FilterGroup, text string) error {
	columns, err := m.store.ListColumns(ctx, tableID)
	if err != nil {
		return err
	}
	if err := group.Validate(models.NewSchema(columns)); err != nil {
		return apperrors.Validation(err)
	}

	if err := m.store.SetFiltering(ctx, tableID, text); err != nil {
		return err
	}
	m.compiler.Invalidate(tableID)

	m.logger.Info("filter updated", "table_id", tableID, "active", text != "")
	return nil
}

// SetSort reorders the table's rows by keys and persists the keys. An empty
// key list restores insertion order.
func (m *Manager) SetSort(ctx context.Context, tableID string, keys []models.SortKey) error {
	if len(keys) == 0 {
		return m.ResetOrder(ctx, tableID)
	}

	start := time.Now()
	payload, err := models.EncodeSorting(keys)
	if err != nil {
		err = apperrors.Validation(err)
	} else {
		err = m.setSort(ctx, tableID, keys)
	}
	m.record(ctx, tableID, history.KindSort, payload, start, err)
	return err
}

func (m *Manager) setSort(ctx context.Context, tableID string, keys []models.SortKey) error {
	columns, err := m.store.ListColumns(ctx, tableID)
	if err != nil {
		return err
	}
	state, rank, err := m.sortPlan(keys, models.NewSchema(columns))
	if err != nil {
		return err
	}

	if err := m.store.Reorder(ctx, tableID, state, rank); err != nil {
		return err
	}

	m.logger.Info("rows sorted", "table_id", tableID, "keys", len(keys))
	return nil
}

// sortPlan validates keys and returns the sorting to persist with the rank
// function that realizes it. No keys means insertion order.
func (m *Manager) sortPlan(keys []models.SortKey, schema models.Schema) (store.ViewState, store.RankFunc, error) {
	if len(keys) == 0 {
		return store.ViewState{}, ordering.Reset, nil
	}
	normalized, err := models.NormalizeSortKeys(keys, schema)
	if err != nil {
		return store.ViewState{}, nil, apperrors.Validation(err)
	}
	sorting, err := models.EncodeSorting(normalized)
	if err != nil {
		return store.ViewState{}, nil, apperrors.Validation(err)
	}
	return store.ViewState{Sorting: sorting}, func(rows []models.Row) []models.RowRank {
		return m.ranker.Rank(rows, normalized)
	}, nil
}

// ResetOrder restores insertion order and clears the persisted sort
func (m *Manager) ResetOrder(ctx context.Context, tableID string) error {
	start := time.Now()
	err := m.store.Reorder(ctx, tableID, store.ViewState{}, ordering.Reset)
	m.record(ctx, tableID, history.KindReset, "", start, err)
	if err == nil {
		m.logger.Info("row order reset", "table_id", tableID)
	}
	return err
}

// ApplyPreset sets a preset's filter and sort on a table. Both are validated
// against the table first and then persisted in one transaction.
func (m *Manager) ApplyPreset(ctx context.Context, tableID string, preset *presets.Preset) error {
	start := time.Now()
	err := m.applyPreset(ctx, tableID, preset)
	m.record(ctx, tableID, history.KindPreset, preset.Name, start, err)
	return err
}

func (m *Manager) applyPreset(ctx context.Context, tableID string, preset *presets.Preset) error {
	group, err := models.ParseFilter(preset.Filtering)
	if err != nil {
		return apperrors.Validation(err)
	}
	keys, err := models.ParseSorting(preset.Sorting)
	if err != nil {
		return apperrors.Validation(err)
	}

	columns, err := m.store.ListColumns(ctx, tableID)
	if err != nil {
		return err
	}
	schema := models.NewSchema(columns)
	if err := group.Validate(schema); err != nil {
		return apperrors.Validation(err)
	}
	filtering, err := group.Encode()
	if err != nil {
		return apperrors.Validation(err)
	}
	state, rank, err := m.sortPlan(keys, schema)
	if err != nil {
		return err
	}
	state.Filtering = &filtering

	if err := m.store.Reorder(ctx, tableID, state, rank); err != nil {
		return err
	}
	m.compiler.Invalidate(tableID)

	m.logger.Info("preset applied", "table_id", tableID, "preset", preset.Name)
	return nil
}

// LoadView returns the table with its persisted filter applied and rows in
// their current order. A non-empty search keeps only rows with a cell
// containing it, ignoring case. The table, its columns and its rows are read
// in one transaction.
func (m *Manager) LoadView(ctx context.Context, tableID, search string) (*models.TableView, error) {
	var compiled *filter.Compiled
	view, err := m.store.Snapshot(ctx, tableID, func(table models.Table, columns []models.Column) (*filter.Query, error) {
		var err error
		compiled, err = m.compiler.Compile(table, columns)
		if err != nil {
			// a persisted filter naming a column the table no longer has
			return nil, apperrors.New(apperrors.KindValidation, "persisted filter is invalid", err)
		}
		if !compiled.Active || m.strategy == StrategyMemory {
			return nil, nil
		}
		return &compiled.Query, nil
	})
	if err != nil {
		return nil, err
	}

	if compiled.Active && m.strategy == StrategyMemory {
		view.Rows = keep(view.Rows, compiled.Match)
	}
	if search != "" {
		view.Rows = keep(view.Rows, func(r *models.Row) bool { return filter.MatchesSearch(r, search) })
	}
	return view, nil
}

// Ping checks that the store is reachable
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return apperrors.Persistence("ping store", err)
	}
	return nil
}

// History returns the most recent view mutations of a table
func (m *Manager) History(ctx context.Context, tableID string, limit int) ([]history.Entry, error) {
	if m.history == nil {
		return []history.Entry{}, nil
	}
	entries, err := m.history.Recent(ctx, tableID, limit)
	if err != nil {
		return nil, apperrors.Persistence("read history", err)
	}
	return entries, nil
}

func keep(rows []models.Row, pred filter.Predicate) []models.Row {
	out := rows[:0]
	for i := range rows {
		if pred(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}

// record appends a history entry; a failure to record never fails the mutation
func (m *Manager) record(ctx context.Context, tableID string, kind history.Kind, payload string, start time.Time, err error) {
	if m.history == nil {
		return
	}
	entry := history.Entry{
		TableID:   tableID,
		Kind:      kind,
		Payload:   payload,
		AppliedAt: start.UTC(),
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if herr := m.history.Add(ctx, entry); herr != nil {
		m.logger.Warn("failed to record view history", "table_id", tableID, "kind", kind, "error", herr)
	}
}
