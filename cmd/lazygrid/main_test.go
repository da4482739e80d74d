package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rebeliceyang/lazygrid/internal/models"
)

func TestParseSortKeys(t *testing.T) {
	keys, err := parseSortKeys([]string{"Name", "Age:desc:number", "City:ASC"})
	if err != nil {
		t.Fatalf("parseSortKeys failed: %v", err)
	}
	want := []models.SortKey{
		{ColumnName: "Name"},
		{ColumnName: "Age", Order: models.SortDesc, ColumnType: models.ColumnNumber},
		{ColumnName: "City", Order: models.SortAsc},
	}
	if len(keys) != len(want) {
		t.Fatalf("got %+v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %+v, want %+v", i, keys[i], want[i])
		}
	}

	for _, bad := range []string{":asc", "a:b:c:d"} {
		if _, err := parseSortKeys([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"Name=amy", "Note=a=b", "Empty="})
	if err != nil {
		t.Fatalf("parseAssignments failed: %v", err)
	}
	if values["Name"] != "amy" || values["Note"] != "a=b" || values["Empty"] != "" {
		t.Errorf("unexpected values %v", values)
	}
	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}
}

func TestPrintView(t *testing.T) {
	v := &models.TableView{
		Columns: []models.Column{{Name: "Name"}, {Name: "Age"}},
		Rows: []models.Row{
			{ID: "r1", Cells: []models.Cell{{ColumnName: "Name", Value: "amy"}, {ColumnName: "Age", Value: "5"}}},
			{ID: "r2", Cells: []models.Cell{{ColumnName: "Name", Value: "Bob"}}},
		},
	}

	var buf bytes.Buffer
	if err := printView(&buf, v, true); err != nil {
		t.Fatalf("printView failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, 2 rows and a count, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "ROW") || !strings.Contains(lines[1], "amy") || lines[3] != "(2 rows)" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
