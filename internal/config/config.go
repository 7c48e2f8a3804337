package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "teamcal/internal/log"
)

// NOTE: Load creates a default config on first run and Save always writes
// with 0600 permissions. Environment overrides are applied after the file is
// read and are never written back.

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the SQLite database file. Ignored by the memory driver.
	Path string `yaml:"path" json:"path"`
	// Seed, if set, is a YAML fixture loaded into the store at startup.
	Seed string `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// BasicAuthConfig holds optional HTTP basic auth credentials for the
// status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone whose calendar days the dashboard uses
	// (e.g. "Asia/Seoul"). "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	Store StoreConfig `yaml:"store" json:"store"`

	// RefreshCron is the 5-field cron schedule on which `watch` rebuilds the
	// view and runs the recurring-task rollover.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// UpcomingDays is the deadline horizon of the stats header.
	UpcomingDays int `yaml:"upcoming_days" json:"upcoming_days"`
	// UpcomingLimit caps the upcoming list in the sidebar.
	UpcomingLimit int `yaml:"upcoming_limit" json:"upcoming_limit"`

	MaxOccurrencesPerTask int `yaml:"max_occurrences_per_task" json:"max_occurrences_per_task"`
	ExpansionCacheSize    int `yaml:"expansion_cache_size" json:"expansion_cache_size"`

	// HighlightRed is a list of keywords that cause items to be rendered in red.
	HighlightRed []string `yaml:"highlight_red" json:"highlight_red"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// ManagerID, if set, limits task occurrences to that manager's projects.
	ManagerID string `yaml:"manager_id,omitempty" json:"manager_id,omitempty"`

	// Listen is the address of the status server started by `watch`
	// (e.g. "127.0.0.1:8086"). Empty disables it.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// BasicAuth, if set with both fields non-empty, protects every status
	// endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Local",
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "./var/teamcal.db",
		},
		RefreshCron:           "0 * * * *",
		UpcomingDays:          7,
		UpcomingLimit:         5,
		MaxOccurrencesPerTask: 5000,
		ExpansionCacheSize:    512,
		HighlightRed:          []string{"urgent", "deadline", "holiday"},
		LogLevel:              "INFO",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.Store.Driver) {
	case DriverMemory, DriverSQLite:
		c.Store.Driver = strings.ToLower(c.Store.Driver)
	default:
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.UpcomingDays <= 0 {
		c.UpcomingDays = def.UpcomingDays
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = def.UpcomingLimit
	}
	if c.MaxOccurrencesPerTask <= 0 {
		c.MaxOccurrencesPerTask = def.MaxOccurrencesPerTask
	}
	// Negative disables the expansion cache, so only zero is defaulted.
	if c.ExpansionCacheSize == 0 {
		c.ExpansionCacheSize = def.ExpansionCacheSize
	}
	if c.HighlightRed == nil {
		c.HighlightRed = def.HighlightRed
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := ParseSchedule(c.RefreshCron); err != nil {
		return fmt.Errorf("refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// ParseSchedule parses a standard 5-field cron spec (descriptors such as
// @hourly are accepted too).
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// UpcomingWindow is UpcomingDays as a duration.
func (c *Config) UpcomingWindow() time.Duration {
	return time.Duration(c.UpcomingDays) * 24 * time.Hour
}

// Environment variables that override the file.
const (
	EnvTimezone    = "TEAMCAL_TIMEZONE"
	EnvStoreDriver = "TEAMCAL_STORE_DRIVER"
	EnvStorePath   = "TEAMCAL_STORE_PATH"
	EnvSeed        = "TEAMCAL_SEED"
	EnvLogLevel    = "TEAMCAL_LOG_LEVEL"
	EnvManagerID   = "TEAMCAL_MANAGER_ID"
	EnvListen      = "TEAMCAL_LISTEN"
)

// ApplyEnv loads .env (if present) and applies TEAMCAL_* overrides.
func (c *Config) ApplyEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("config: ignoring unreadable .env", "reason", err.Error())
	}

	overrides := []struct {
		key string
		dst *string
	}{
		{EnvTimezone, &c.Timezone},
		{EnvStoreDriver, &c.Store.Driver},
		{EnvStorePath, &c.Store.Path},
		{EnvSeed, &c.Store.Seed},
		{EnvLogLevel, &c.LogLevel},
		{EnvManagerID, &c.ManagerID},
		{EnvListen, &c.Listen},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(v) != "" {
			*o.dst = strings.TrimSpace(v)
		}
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("config: wrote defaults", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".teamcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
