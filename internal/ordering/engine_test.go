package ordering

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rebeliceyang/lazygrid/internal/logger"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

func row(id string, orig int, name, age string) models.Row {
	return models.Row{
		ID:        id,
		OrigOrder: orig,
		Order:     orig,
		Cells: []models.Cell{
			{RowID: id, ColumnName: "Name", Type: models.ColumnText, Value: name},
			{RowID: id, ColumnName: "Age", Type: models.ColumnNumber, Value: age},
		},
	}
}

func ids(ranks []models.RowRank) []string {
	out := make([]string, len(ranks))
	for i, r := range ranks {
		if r.Order != i+1 {
			panic("ranks must be 1..N in slice order")
		}
		out[i] = r.RowID
	}
	return out
}

func assertOrder(t *testing.T, got []models.RowRank, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func TestRank_TextCaseInsensitive(t *testing.T) {
	rows := []models.Row{row("bob", 1, "Bob", "30"), row("amy", 2, "amy", "5")}
	got := Rank(rows, []models.SortKey{{ColumnName: "Name", ColumnType: models.ColumnText, Order: models.SortAsc}})
	assertOrder(t, got, "amy", "bob")
}

func TestRank_NumberDescending(t *testing.T) {
	rows := []models.Row{row("bob", 1, "Bob", "30"), row("amy", 2, "amy", "5")}
	got := Rank(rows, []models.SortKey{{ColumnName: "Age", ColumnType: models.ColumnNumber, Order: models.SortDesc}})
	assertOrder(t, got, "bob", "amy")
}

func TestRank_NumberIsNumericNotLexical(t *testing.T) {
	rows := []models.Row{row("a", 1, "", "10"), row("b", 2, "", "9"), row("c", 3, "", "-2.5"), row("d", 4, "", "1e2")}
	got := Rank(rows, []models.SortKey{{ColumnName: "Age", ColumnType: models.ColumnNumber, Order: models.SortAsc}})
	assertOrder(t, got, "c", "b", "a", "d")
}

func TestRank_NonNumericIsMostNegative(t *testing.T) {
	rows := []models.Row{
		row("num", 1, "", "-1e300"),
		row("text", 2, "", "abc"),
		row("empty", 3, "", ""),
		row("huge", 4, "", "-1e999"),
	}
	asc := Rank(rows, []models.SortKey{{ColumnName: "Age", ColumnType: models.ColumnNumber, Order: models.SortAsc}})
	assertOrder(t, asc, "text", "empty", "huge", "num")

	desc := Rank(rows, []models.SortKey{{ColumnName: "Age", ColumnType: models.ColumnNumber, Order: models.SortDesc}})
	assertOrder(t, desc, "num", "huge", "text", "empty")
}

func TestRank_TiesFallBackToOrigOrder(t *testing.T) {
	rows := []models.Row{row("third", 3, "x", "1"), row("first", 1, "X", "1"), row("second", 2, "x", "1")}
	for _, order := range []models.SortOrder{models.SortAsc, models.SortDesc} {
		got := Rank(rows, []models.SortKey{{ColumnName: "Name", ColumnType: models.ColumnText, Order: order}})
		assertOrder(t, got, "first", "second", "third")
	}
}

func TestRank_MultiKeyPrecedence(t *testing.T) {
	rows := []models.Row{
		row("a", 1, "b", "1"),
		row("b", 2, "a", "2"),
		row("c", 3, "a", "1"),
		row("d", 4, "b", "2"),
	}
	got := Rank(rows, []models.SortKey{
		{ColumnName: "Name", ColumnType: models.ColumnText, Order: models.SortAsc},
		{ColumnName: "Age", ColumnType: models.ColumnNumber, Order: models.SortDesc},
	})
	assertOrder(t, got, "b", "c", "d", "a")
}

func TestRank_TypeOverride(t *testing.T) {
	rows := []models.Row{row("ten", 1, "", "10"), row("nine", 2, "", "9")}
	got := Rank(rows, []models.SortKey{{ColumnName: "Age", ColumnType: models.ColumnText, Order: models.SortAsc}})
	assertOrder(t, got, "ten", "nine")
}

func TestRank_Deterministic(t *testing.T) {
	rows := []models.Row{row("a", 1, "z", "3"), row("b", 2, "y", "x"), row("c", 3, "z", "3"), row("d", 4, "", "")}
	keys := []models.SortKey{{ColumnName: "Name", ColumnType: models.ColumnText, Order: models.SortDesc}}

	first := ids(Rank(rows, keys))
	reversed := []models.Row{rows[3], rows[2], rows[1], rows[0]}
	second := ids(Rank(reversed, keys))
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("input order changed result: %v vs %v", first, second)
		}
	}
}

func TestRank_MissingCellSortsAsEmpty(t *testing.T) {
	bare := models.Row{ID: "bare", OrigOrder: 1}
	rows := []models.Row{row("amy", 2, "amy", "5"), bare}
	got := Rank(rows, []models.SortKey{{ColumnName: "Name", ColumnType: models.ColumnText, Order: models.SortAsc}})
	assertOrder(t, got, "bare", "amy")
}

func TestReset(t *testing.T) {
	rows := []models.Row{row("b", 2, "", ""), row("a", 1, "", "")}
	ranks := Reset(rows)
	if ranks[0].RowID != "b" || ranks[0].Order != 2 || ranks[1].Order != 1 {
		t.Errorf("unexpected reset ranks %+v", ranks)
	}
}

func TestEngine_LogsMissingCells(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine(logger.New(logger.Config{Level: "WARN"}, &buf))

	rows := []models.Row{
		row("a", 1, "amy", "5"),
		{ID: "b", TableID: "t1", OrigOrder: 2, Order: 2},
	}
	got := ids(e.Rank(rows, []models.SortKey{{ColumnName: "Name", ColumnType: models.ColumnText, Order: models.SortAsc}}))
	if got[0] != "b" || got[1] != "a" {
		t.Errorf("missing cell should sort as empty, got %v", got)
	}

	out := buf.String()
	if !strings.Contains(out, "missing a sort key cell") || !strings.Contains(out, "column=Name") || !strings.Contains(out, "rows=1") {
		t.Errorf("expected a warning for the missing cell, got %q", out)
	}

	buf.Reset()
	e.Rank([]models.Row{row("a", 1, "amy", "5")}, []models.SortKey{{ColumnName: "Name", ColumnType: models.ColumnText}})
	if buf.Len() != 0 {
		t.Errorf("no warning expected when every cell is present, got %q", buf.String())
	}
}
