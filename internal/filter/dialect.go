package filter

import (
	"fmt"

	"github.com/rebeliceyang/lazygrid/internal/models"
)

// Dialect isolates the SQL fragments that differ between backends
type Dialect interface {
	// Placeholder returns the bind marker for the n-th (1-based) argument
	Placeholder(n int) string
	// Number converts a text expression into a number, or NULL when the text
	// does not match models.NumericPattern
	Number(expr string) string
	// Fold lower-cases a text expression
	Fold(expr string) string
	// Contains is a boolean expression testing needle as a substring of haystack
	Contains(haystack, needle string) string
	// Bool renders a boolean literal
	Bool(b bool) string
}

// Postgres is the PostgreSQL dialect
type Postgres struct{}

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) Number(expr string) string {
	return fmt.Sprintf("(CASE WHEN btrim(%s) ~ '%s' THEN btrim(%s)::numeric END)", expr, models.NumericPattern, expr)
}

func (Postgres) Fold(expr string) string { return "lower(" + expr + ")" }

func (Postgres) Contains(haystack, needle string) string {
	return fmt.Sprintf("strpos(%s, %s) > 0", haystack, needle)
}

func (Postgres) Bool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// SQLite function names registered by the sqlite store on every connection
const (
	SQLiteNumberFunc = "lazygrid_number"
	SQLiteFoldFunc   = "lazygrid_fold"
)

// SQLite is the SQLite dialect. Numeric parsing and case folding run as Go
// functions registered on the connection so both evaluation paths share them.
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Number(expr string) string { return SQLiteNumberFunc + "(" + expr + ")" }

func (SQLite) Fold(expr string) string { return SQLiteFoldFunc + "(" + expr + ")" }

func (SQLite) Contains(haystack, needle string) string {
	return fmt.Sprintf("instr(%s, %s) > 0", haystack, needle)
}

func (SQLite) Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
