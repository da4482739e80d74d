package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.View.FilterStrategy != "query" {
		t.Errorf("expected query strategy, got %q", cfg.View.FilterStrategy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: postgres
  host: db.internal
  port: 6543
view:
  filter_strategy: memory
  cache_ttl: 90s
history:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" || cfg.Database.Port != 6543 {
		t.Errorf("database section not applied: %+v", cfg.Database)
	}
	if cfg.View.FilterStrategy != "memory" {
		t.Errorf("expected memory strategy, got %q", cfg.View.FilterStrategy)
	}
	if cfg.View.CacheTTL != 90*time.Second {
		t.Errorf("expected 90s ttl, got %v", cfg.View.CacheTTL)
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled")
	}
	// untouched keys keep their defaults
	if cfg.Database.MaxConns != 10 {
		t.Errorf("expected default max conns, got %d", cfg.Database.MaxConns)
	}
}

func TestLoadFile_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("LAZYGRID_SERVER_ADDR", ":9100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("expected env override, got %q", cfg.Server.Addr)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("view:\n  filter_strategy: magic\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected validation error")
	}
}
