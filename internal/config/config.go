// Package config loads the application configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// file, and RANGEPLAN_* environment variables (RANGEPLAN_STORE_BACKEND,
// RANGEPLAN_EXECUTE_TIME_LIMIT, ...).
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/planner"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

type Config struct {
	AppName  string `mapstructure:"app_name" yaml:"app_name" json:"app_name"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`

	Store struct {
		Backend   string `mapstructure:"backend" yaml:"backend" json:"backend"`
		Path      string `mapstructure:"path" yaml:"path" json:"path"`
		Isolation string `mapstructure:"isolation" yaml:"isolation" json:"isolation"`
	} `mapstructure:"store" yaml:"store" json:"store"`

	Execute struct {
		ReturnedRowLimit  int           `mapstructure:"returned_row_limit" yaml:"returned_row_limit" json:"returned_row_limit"`
		ScannedBytesLimit int64         `mapstructure:"scanned_bytes_limit" yaml:"scanned_bytes_limit" json:"scanned_bytes_limit"`
		TimeLimit         time.Duration `mapstructure:"time_limit" yaml:"time_limit" json:"time_limit"`
	} `mapstructure:"execute" yaml:"execute" json:"execute"`

	Planner struct {
		IndexScanPreference     string `mapstructure:"index_scan_preference" yaml:"index_scan_preference" json:"index_scan_preference"`
		AttemptFailedInJoinAsOr bool   `mapstructure:"attempt_failed_in_join_as_or" yaml:"attempt_failed_in_join_as_or" json:"attempt_failed_in_join_as_or"`
	} `mapstructure:"planner" yaml:"planner" json:"planner"`

	PlanCache struct {
		MaxEntries int64 `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	} `mapstructure:"plan_cache" yaml:"plan_cache" json:"plan_cache"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "rangeplan")
	v.SetDefault("log_level", "info")
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", "./rangeplan.db")
	v.SetDefault("store.isolation", kv.Serializable.String())
	v.SetDefault("execute.returned_row_limit", 0)
	v.SetDefault("execute.scanned_bytes_limit", 0)
	v.SetDefault("execute.time_limit", "0s")
	v.SetDefault("planner.index_scan_preference", planner.PreferScan.String())
	v.SetDefault("planner.attempt_failed_in_join_as_or", false)
	v.SetDefault("plan_cache.max_entries", 1024)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RANGEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in defaults, with environment overrides applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every enum and limit.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger, BackendBolt:
	default:
		return fmt.Errorf("store.backend: unknown backend %q (want sqlite, badger or bolt)", c.Store.Backend)
	}
	if c.Store.Path == "" && c.Store.Backend != BackendBadger {
		return fmt.Errorf("store.path: required for backend %s", c.Store.Backend)
	}
	if _, err := c.LogLevelValue(); err != nil {
		return err
	}
	if _, err := c.ExecuteProperties(); err != nil {
		return err
	}
	if _, err := c.PlannerConfiguration(); err != nil {
		return err
	}
	if c.PlanCache.MaxEntries < 0 {
		return fmt.Errorf("plan_cache.max_entries: must not be negative")
	}
	return nil
}

// LogLevelValue parses log_level as a slog level (debug, info, warn, error).
func (c *Config) LogLevelValue() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// ExecuteProperties converts the execute and store sections into scan limits.
func (c *Config) ExecuteProperties() (kv.ExecuteProperties, error) {
	e := c.Execute
	if e.ReturnedRowLimit < 0 || e.ScannedBytesLimit < 0 || e.TimeLimit < 0 {
		return kv.ExecuteProperties{}, fmt.Errorf("execute: limits must not be negative")
	}
	isolation, err := kv.ParseIsolationLevel(strings.ToUpper(c.Store.Isolation))
	if err != nil {
		return kv.ExecuteProperties{}, fmt.Errorf("store.isolation: %w", err)
	}
	return kv.ExecuteProperties{
		ReturnedRowLimit:  e.ReturnedRowLimit,
		ScannedBytesLimit: e.ScannedBytesLimit,
		TimeLimit:         e.TimeLimit,
		Isolation:         isolation,
	}, nil
}

// PlannerConfiguration builds the planner section.
func (c *Config) PlannerConfiguration() (planner.Configuration, error) {
	pref, err := planner.ParseIndexScanPreference(c.Planner.IndexScanPreference)
	if err != nil {
		return planner.Configuration{}, fmt.Errorf("planner.index_scan_preference: %w", err)
	}
	return planner.NewBuilder().
		SetIndexScanPreference(pref).
		SetAttemptFailedInJoinAsOr(c.Planner.AttemptFailedInJoinAsOr).
		Build(), nil
}
