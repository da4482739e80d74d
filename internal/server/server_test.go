package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rebeliceyang/lazygrid/internal/history"
	"github.com/rebeliceyang/lazygrid/internal/logger"
	"github.com/rebeliceyang/lazygrid/internal/models"
	"github.com/rebeliceyang/lazygrid/internal/store"
	"github.com/rebeliceyang/lazygrid/internal/view"
)

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLite(filepath.Join(dir, "grid.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hist, err := history.NewStore(filepath.Join(dir, "history.db"), 100)
	if err != nil {
		t.Fatalf("history.NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	views := view.NewManager(st, view.Options{CacheTTL: time.Minute, History: hist}, logger.Discard())
	return New(views, gin.TestMode, logger.Discard()).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/tables", CreateTableRequest{Name: "people"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create table: %d %s", rec.Code, rec.Body.String())
	}
	tableID := decode[models.Table](t, rec).ID

	for _, col := range []CreateColumnRequest{{Name: "Name", Type: "TEXT"}, {Name: "Age", Type: "NUMBER"}} {
		if rec := do(t, h, http.MethodPost, "/api/tables/"+tableID+"/columns", col); rec.Code != http.StatusCreated {
			t.Fatalf("create column: %d %s", rec.Code, rec.Body.String())
		}
	}
	for _, v := range []map[string]string{{"Name": "Bob", "Age": "30"}, {"Name": "amy", "Age": "5"}} {
		if rec := do(t, h, http.MethodPost, "/api/tables/"+tableID+"/rows", CreateRowRequest{Values: v}); rec.Code != http.StatusCreated {
			t.Fatalf("create row: %d %s", rec.Code, rec.Body.String())
		}
	}
	return tableID
}

func names(v models.TableView) []string {
	out := make([]string, len(v.Rows))
	for i := range v.Rows {
		c, _ := v.Rows[i].Cell("Name")
		out[i] = c.Value
	}
	return out
}

func TestHealth(t *testing.T) {
	h := setupServer(t)
	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSortAndReset(t *testing.T) {
	h := setupServer(t)
	tableID := seed(t, h)

	rec := do(t, h, http.MethodPost, "/api/tables/"+tableID+"/sort", SortRequest{Keys: []models.SortKey{
		{ColumnName: "Name", ColumnType: models.ColumnText, Order: models.SortAsc},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("sort: %d %s", rec.Code, rec.Body.String())
	}
	if got := names(decode[models.TableView](t, rec)); got[0] != "amy" || got[1] != "Bob" {
		t.Errorf("unexpected order %v", got)
	}

	rec = do(t, h, http.MethodPost, "/api/tables/"+tableID+"/reset-order", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body.String())
	}
	v := decode[models.TableView](t, rec)
	if got := names(v); got[0] != "Bob" || v.Table.Sorting != "" {
		t.Errorf("reset did not restore insertion order: %v %q", got, v.Table.Sorting)
	}
}

func TestUpdateFilter(t *testing.T) {
	h := setupServer(t)
	tableID := seed(t, h)

	body := `{"combineWith":"OR","conditions":[{"columnName":"Age","operator":"gt","value":"10"},{"columnName":"Name","operator":"is","value":"nobody"}]}`
	rec := do(t, h, http.MethodPut, "/api/tables/"+tableID+"/filter", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("filter: %d %s", rec.Code, rec.Body.String())
	}
	if got := names(decode[models.TableView](t, rec)); len(got) != 1 || got[0] != "Bob" {
		t.Errorf("unexpected filtered rows %v", got)
	}

	rec = do(t, h, http.MethodGet, "/api/tables/"+tableID, nil)
	if got := names(decode[models.TableView](t, rec)); len(got) != 1 {
		t.Errorf("filter should persist across loads, got %v", got)
	}
}

func TestErrorStatuses(t *testing.T) {
	h := setupServer(t)
	tableID := seed(t, h)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown table", http.MethodGet, "/api/tables/missing", nil, http.StatusNotFound},
		{"unknown filter column", http.MethodPut, "/api/tables/" + tableID + "/filter",
			`{"combineWith":"AND","conditions":[{"columnName":"Salary","operator":"is","value":"1"}]}`, http.StatusBadRequest},
		{"malformed filter", http.MethodPut, "/api/tables/" + tableID + "/filter", `{`, http.StatusBadRequest},
		{"unknown sort column", http.MethodPost, "/api/tables/" + tableID + "/sort",
			SortRequest{Keys: []models.SortKey{{ColumnName: "Salary"}}}, http.StatusBadRequest},
		{"bad column type", http.MethodPost, "/api/tables/" + tableID + "/columns",
			CreateColumnRequest{Name: "When", Type: "DATE"}, http.StatusBadRequest},
		{"duplicate column", http.MethodPost, "/api/tables/" + tableID + "/columns",
			CreateColumnRequest{Name: "Name", Type: "TEXT"}, http.StatusBadRequest},
		{"unknown cell", http.MethodPatch, "/api/cells/missing", UpdateCellRequest{Value: new(string)}, http.StatusNotFound},
		{"missing cell value", http.MethodPatch, "/api/cells/missing", `{}`, http.StatusBadRequest},
		{"bad history limit", http.MethodGet, "/api/tables/" + tableID + "/history?limit=x", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if msg := decode[map[string]string](t, rec)["error"]; msg == "" {
				t.Error("expected an error message")
			}
			if rec.Header().Get("Retry-After") != "" {
				t.Error("client errors must not ask for a retry")
			}
		})
	}
}

func TestUpdateCellAndSearch(t *testing.T) {
	h := setupServer(t)
	tableID := seed(t, h)

	v := decode[models.TableView](t, do(t, h, http.MethodGet, "/api/tables/"+tableID, nil))
	cell, _ := v.Rows[1].Cell("Name")

	value := "Zed"
	rec := do(t, h, http.MethodPatch, "/api/cells/"+cell.ID, UpdateCellRequest{Value: &value})
	if rec.Code != http.StatusOK {
		t.Fatalf("update cell: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/tables/"+tableID+"?search=zE", nil)
	if got := names(decode[models.TableView](t, rec)); len(got) != 1 || got[0] != "Zed" {
		t.Errorf("unexpected search result %v", got)
	}
}

func TestHistory(t *testing.T) {
	h := setupServer(t)
	tableID := seed(t, h)

	do(t, h, http.MethodPost, "/api/tables/"+tableID+"/sort", SortRequest{Keys: []models.SortKey{{ColumnName: "Age"}}})
	do(t, h, http.MethodPost, "/api/tables/"+tableID+"/sort", SortRequest{})

	rec := do(t, h, http.MethodGet, "/api/tables/"+tableID+"/history?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	entries := decode[[]history.Entry](t, rec)
	if len(entries) != 1 || entries[0].Kind != history.KindReset {
		t.Errorf("unexpected history %+v", entries)
	}
}

func TestClosedStore(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "grid.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	views := view.NewManager(st, view.Options{CacheTTL: time.Minute}, logger.Discard())
	h := New(views, gin.TestMode, logger.Discard()).Handler()
	_ = st.Close()

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["status"] != "unavailable" {
		t.Errorf("unexpected body %v", body)
	}

	rec = do(t, h, http.MethodGet, "/api/tables", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After on a persistence failure, got %q", rec.Header().Get("Retry-After"))
	}
}
