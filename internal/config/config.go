package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"eventcal/internal/slots"
	"eventcal/internal/timeofday"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StorageConfig selects where the event list is persisted.
type StorageConfig struct {
	// Backend is one of "memory", "file" (default), "sqlite" or "postgres".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the directory for "file" and the database file for "sqlite".
	Path string `yaml:"path" json:"path"`
	// DSN is the connection string for "postgres".
	DSN string `yaml:"dsn,omitempty" json:"-"`
	// Key is the storage key the list is written under.
	Key string `yaml:"key" json:"key"`
}

// SlotsConfig tunes reschedule suggestions.
type SlotsConfig struct {
	// Windows are "HH:MM-HH:MM" working-hour ranges searched in order.
	Windows     []string `yaml:"windows" json:"windows"`
	StepMinutes int      `yaml:"step_minutes" json:"step_minutes"`
	MaxResults  int      `yaml:"max_results" json:"max_results"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that zoned iCalendar times are converted
	// to on import (e.g. "Asia/Seoul"). Stored events carry no zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// HorizonMonths bounds recurrence expansion to today plus this many months.
	HorizonMonths int `yaml:"horizon_months" json:"horizon_months"`

	// MaxOccurrencesPerEvent caps the expansion of a single recurring event.
	MaxOccurrencesPerEvent int `yaml:"max_occurrences_per_event" json:"max_occurrences_per_event"`

	// ConflictScan is a cron-style schedule (e.g. "*/15 * * * *") for the
	// background conflict scan. "off" disables it.
	ConflictScan string `yaml:"conflict_scan" json:"conflict_scan"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Slots   SlotsConfig   `yaml:"slots" json:"slots"`
	Log     LogConfig     `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// ScanDisabled is the ConflictScan value that turns the scheduler off.
const ScanDisabled = "off"

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 "127.0.0.1:8080",
		Timezone:               "Local",
		WeekStart:              "monday",
		HorizonMonths:          12,
		MaxOccurrencesPerEvent: 5000,
		ConflictScan:           "*/15 * * * *",
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    "./var/eventcal",
			Key:     "calendar_events",
		},
		Slots: SlotsConfig{
			Windows:     []string{"08:00-12:00", "13:00-18:00"},
			StepMinutes: slots.DefaultStepMinutes,
			MaxResults:  slots.DefaultMaxResults,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	// WeekStart default & validation.
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.HorizonMonths <= 0 {
		c.HorizonMonths = def.HorizonMonths
	}
	if c.MaxOccurrencesPerEvent <= 0 {
		c.MaxOccurrencesPerEvent = def.MaxOccurrencesPerEvent
	}
	if c.ConflictScan == "" {
		c.ConflictScan = def.ConflictScan
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Path == "" && c.Storage.Backend != BackendSQLite {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(def.Storage.Path, "eventcal.db")
	}
	if c.Storage.Key == "" {
		c.Storage.Key = def.Storage.Key
	}

	if c.Slots.Windows == nil {
		c.Slots.Windows = def.Slots.Windows
	}
	if c.Slots.StepMinutes <= 0 {
		c.Slots.StepMinutes = def.Slots.StepMinutes
	}
	if c.Slots.MaxResults <= 0 {
		c.Slots.MaxResults = def.Slots.MaxResults
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}
}

// Validate rejects settings Normalize cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if c.ConflictScan != ScanDisabled {
		if _, err := cron.ParseStandard(c.ConflictScan); err != nil {
			problems = append(problems, fmt.Sprintf("conflict_scan %q: %v", c.ConflictScan, err))
		}
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("timezone %q: %v", c.Timezone, err))
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.Storage.DSN == "" {
			problems = append(problems, "storage.dsn is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.backend %q", c.Storage.Backend))
	}
	if _, err := c.SlotOptions(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SlotOptions converts the slot settings into search options.
func (c *Config) SlotOptions() (slots.Options, error) {
	opts := slots.Options{
		StepMinutes: c.Slots.StepMinutes,
		MaxResults:  c.Slots.MaxResults,
	}
	for _, w := range c.Slots.Windows {
		win, err := parseWindow(w)
		if err != nil {
			return slots.Options{}, fmt.Errorf("slots.windows %q: %w", w, err)
		}
		opts.Windows = append(opts.Windows, win)
	}
	return opts, nil
}

func parseWindow(s string) (slots.Window, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return slots.Window{}, errors.New("want HH:MM-HH:MM")
	}
	start, err := timeofday.Parse(strings.TrimSpace(from))
	if err != nil {
		return slots.Window{}, err
	}
	end, err := timeofday.Parse(strings.TrimSpace(to))
	if err != nil {
		return slots.Window{}, err
	}
	if end <= start || end > timeofday.MinutesPerDay {
		return slots.Window{}, errors.New("window must end after it starts and within the day")
	}
	return slots.Window{Start: start, End: end}, nil
}

// Load loads configuration from the given YAML path on the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func LoadFs(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := SaveFs(fsys, path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to path on the OS filesystem.
func Save(path string, cfg *Config) error {
	return SaveFs(afero.NewOsFs(), path, cfg)
}

// SaveFs writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func SaveFs(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := afero.TempFile(fsys, dir, ".eventcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer fsys.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := fsys.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return fsys.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
