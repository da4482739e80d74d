package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rebeliceyang/lazygrid/internal/apperrors"
)

func TestManager_AddPersists(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	p, err := m.Add(" adults ", "age over 18", `{"combineWith":"AND","conditions":[]}`, `[{"columnName":"Age","columnType":"NUMBER","order":"DESC"}]`)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if p.Name != "adults" || p.ID == "" {
		t.Errorf("unexpected preset %+v", p)
	}

	if _, err := os.Stat(filepath.Join(dir, "presets.yaml")); err != nil {
		t.Fatalf("presets file not written: %v", err)
	}

	reloaded, err := NewManager(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got, err := reloaded.Get("ADULTS")
	if err != nil {
		t.Fatalf("Get by name failed: %v", err)
	}
	if got.ID != p.ID || got.Sorting != p.Sorting || got.Description != "age over 18" {
		t.Errorf("preset did not round trip: %+v", got)
	}
}

func TestManager_RejectsDuplicateAndEmptyNames(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	if _, err := m.Add("Recent", "", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add("recent", "", "", ""); !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("expected duplicate name rejection, got %v", err)
	}
	if _, err := m.Add("   ", "", "", ""); !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("expected empty name rejection, got %v", err)
	}
}

func TestManager_DeleteAndMarkUsed(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	a, _ := m.Add("b-preset", "", "", "")
	b, _ := m.Add("A-preset", "", "", "")

	if err := m.MarkUsed(a.ID); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}
	got, _ := m.Get(a.ID)
	if got.UsageCount != 1 || got.LastUsed.IsZero() {
		t.Errorf("usage not recorded: %+v", got)
	}

	list := m.List()
	if len(list) != 2 || list[0].ID != b.ID {
		t.Errorf("expected name order, got %+v", list)
	}

	if err := m.Delete(b.Name); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get(b.ID); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := m.Delete("missing"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
