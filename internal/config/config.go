package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	View     ViewConfig     `mapstructure:"view"`
	History  HistoryConfig  `mapstructure:"history"`
	Presets  PresetsConfig  `mapstructure:"presets"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

type ViewConfig struct {
	FilterStrategy string        `mapstructure:"filter_strategy"` // query or memory
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

type PresetsConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Name:            "lazygrid",
			SSLMode:         "prefer",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
			SQLitePath:      filepath.Join(dataDir, "lazygrid.db"),
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		View: ViewConfig{
			FilterStrategy: "query",
			CacheSize:      256,
			CacheTTL:       5 * time.Minute,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       filepath.Join(dataDir, "history.db"),
			MaxEntries: 1000,
		},
		Presets: PresetsConfig{
			Dir: dataDir,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Load loads configuration from files and LAZYGRID_* environment variables
func Load() (*Config, error) {
	return load("")
}

// LoadFile loads configuration from an explicit file
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		// Set config name and type
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Add config paths in priority order
		// 1. User config directory
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "lazygrid"))
		}

		// 2. Current directory
		v.AddConfigPath(".")

		// 3. Default config directory
		v.AddConfigPath("./config")
	}

	// LAZYGRID_DATABASE_HOST -> database.host
	v.SetEnvPrefix("lazygrid")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := GetDefaults()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.name", d.Database.Name)
	v.SetDefault("database.ssl_mode", d.Database.SSLMode)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.min_conns", d.Database.MinConns)
	v.SetDefault("database.max_conn_lifetime", d.Database.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", d.Database.MaxConnIdleTime)
	v.SetDefault("database.sqlite_path", d.Database.SQLitePath)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("view.filter_strategy", d.View.FilterStrategy)
	v.SetDefault("view.cache_size", d.View.CacheSize)
	v.SetDefault("view.cache_ttl", d.View.CacheTTL)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.max_entries", d.History.MaxEntries)
	v.SetDefault("presets.dir", d.Presets.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.add_source", d.Log.AddSource)

	// Read config (it's okay if file doesn't exist, we have defaults)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	switch c.View.FilterStrategy {
	case "query", "memory":
	default:
		return fmt.Errorf("view.filter_strategy must be query or memory, got %q", c.View.FilterStrategy)
	}
	if c.View.CacheSize <= 0 {
		return fmt.Errorf("view.cache_size must be positive")
	}
	return nil
}

// GetConfigPath returns the user config directory path
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazygrid"), nil
}

func defaultDataDir() string {
	if dir, err := GetConfigPath(); err == nil {
		return dir
	}
	return "."
}
