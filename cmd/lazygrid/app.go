package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rebeliceyang/lazygrid/internal/config"
	"github.com/rebeliceyang/lazygrid/internal/history"
	"github.com/rebeliceyang/lazygrid/internal/logger"
	"github.com/rebeliceyang/lazygrid/internal/presets"
	"github.com/rebeliceyang/lazygrid/internal/store"
	"github.com/rebeliceyang/lazygrid/internal/view"
)

// app bundles everything a command needs
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	history *history.Store
	views   *view.Manager
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.Init(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, store: st}

	opts := view.Options{CacheSize: cfg.View.CacheSize, CacheTTL: cfg.View.CacheTTL}
	if opts.Strategy, err = view.ParseStrategy(cfg.View.FilterStrategy); err != nil {
		a.close()
		return nil, err
	}

	if cfg.History.Enabled {
		if err := ensureDir(cfg.History.Path); err != nil {
			a.close()
			return nil, err
		}
		h, err := history.NewStore(cfg.History.Path, cfg.History.MaxEntries)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.history = h
		opts.History = h
	}

	a.views = view.NewManager(st, opts, log)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		log.Debug("opened postgres store", "host", cfg.Database.Host, "database", cfg.Database.Name)
		return st, nil
	default:
		if err := ensureDir(cfg.Database.SQLitePath); err != nil {
			return nil, err
		}
		st, err := store.NewSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug("opened sqlite store", "path", cfg.Database.SQLitePath)
		return st, nil
	}
}

func (a *app) presets() (*presets.Manager, error) {
	if err := os.MkdirAll(a.cfg.Presets.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create presets directory: %w", err)
	}
	return presets.NewManager(a.cfg.Presets.Dir)
}

func (a *app) close() {
	if a.history != nil {
		_ = a.history.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return nil
}

// withApp runs fn with an opened app and closes it afterwards
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
