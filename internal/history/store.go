package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Kind is the type of view mutation recorded
type Kind string

const (
	KindFilter Kind = "filter"
	KindSort   Kind = "sort"
	KindReset  Kind = "reset"
	KindPreset Kind = "preset"
)

// Entry represents a single applied or rejected view mutation
type Entry struct {
	ID           int64         `json:"id"`
	TableID      string        `json:"tableId"`
	Kind         Kind          `json:"kind"`
	Payload      string        `json:"payload"`
	AppliedAt    time.Time     `json:"appliedAt"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// Store manages view history persistence
type Store struct {
	db         *sql.DB
	maxEntries int
}

// NewStore creates a new history store. maxEntries <= 0 keeps everything.
func NewStore(path string, maxEntries int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create schema
	_, err = db.Exec(schemaSQL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Add records a view mutation and prunes the oldest entries beyond the limit
func (s *Store) Add(ctx context.Context, entry Entry) error {
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO view_history
		(table_id, kind, payload, applied_at, duration_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.TableID,
		string(entry.Kind),
		entry.Payload,
		entry.AppliedAt,
		entry.Duration.Milliseconds(),
		entry.Success,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM view_history
			WHERE id NOT IN (SELECT id FROM view_history ORDER BY id DESC LIMIT ?)`, s.maxEntries)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
	}
	return nil
}

// Recent retrieves the most recent entries of a table, newest first. An empty
// tableID returns entries of every table.
func (s *Store) Recent(ctx context.Context, tableID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, kind, payload, applied_at,
		       duration_ms, success, error_message
		FROM view_history
		WHERE ? = '' OR table_id = ?
		ORDER BY id DESC
		LIMIT ?`, tableID, tableID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var durationMs int64

		err := rows.Scan(
			&e.ID,
			&e.TableID,
			&e.Kind,
			&e.Payload,
			&e.AppliedAt,
			&durationMs,
			&e.Success,
			&e.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
