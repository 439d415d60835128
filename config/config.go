// Package config holds the qsolog configuration and its layered loader.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"qsolog/qso"
)

// Config represents the complete application configuration.
type Config struct {
	CTY     CTYConfig     `koanf:"cty" yaml:"cty"`
	Region  RegionConfig  `koanf:"region" yaml:"region"`
	Ingest  IngestConfig  `koanf:"ingest" yaml:"ingest"`
	Owner   OwnerConfig   `koanf:"owner" yaml:"owner"`
	Store   StoreConfig   `koanf:"store" yaml:"store"`
	Logging LoggingConfig `koanf:"logging" yaml:"logging"`
	// LoadedFrom is the directory the YAML layer was read from.
	LoadedFrom string `koanf:"-" yaml:"-"`
}

// CTYConfig locates the two prefix databases and where to refresh them from.
type CTYConfig struct {
	DatPath                string `koanf:"dat_path" yaml:"dat_path"`
	PlistPath              string `koanf:"plist_path" yaml:"plist_path"`
	DatURL                 string `koanf:"dat_url" yaml:"dat_url"`
	PlistURL               string `koanf:"plist_url" yaml:"plist_url"`
	CacheSize              int    `koanf:"cache_size" yaml:"cache_size"`
	DownloadTimeoutSeconds int    `koanf:"download_timeout_seconds" yaml:"download_timeout_seconds"`
}

// DownloadTimeout returns the configured download timeout.
func (c CTYConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// RegionConfig controls the oblast override resolver.
type RegionConfig struct {
	ExceptionsPath string   `koanf:"exceptions_path" yaml:"exceptions_path"`
	Prefixes       []string `koanf:"prefixes" yaml:"prefixes"`
}

// IngestConfig tunes the ingest engine.
type IngestConfig struct {
	BatchSize int `koanf:"batch_size" yaml:"batch_size"`
	Workers   int `koanf:"workers" yaml:"workers"`
}

// OwnerConfig describes the account contacts are imported for.
type OwnerConfig struct {
	ID         int64             `koanf:"id" yaml:"id"`
	Callsign   string            `koanf:"callsign" yaml:"callsign"`
	Locator    string            `koanf:"locator" yaml:"locator"`
	Alternates []AlternateConfig `koanf:"alternates" yaml:"alternates,omitempty"`
}

// AlternateConfig is one alternate callsign with an optional YYYY-MM-DD window.
type AlternateConfig struct {
	Call  string `koanf:"call" yaml:"call"`
	Since string `koanf:"since" yaml:"since,omitempty"`
	Until string `koanf:"until" yaml:"until,omitempty"`
}

// Build converts the owner block into a validated qso.Owner.
func (o OwnerConfig) Build() (qso.Owner, error) {
	owner := qso.Owner{ID: o.ID, Callsign: qso.NormalizeCallsign(o.Callsign), Locator: o.Locator}
	for _, alt := range o.Alternates {
		since, err := parseDay(alt.Since)
		if err != nil {
			return qso.Owner{}, fmt.Errorf("%w: owner.alternates %s since: %v", ErrInvalidConfig, alt.Call, err)
		}
		until, err := parseDay(alt.Until)
		if err != nil {
			return qso.Owner{}, fmt.Errorf("%w: owner.alternates %s until: %v", ErrInvalidConfig, alt.Call, err)
		}
		if err := owner.Alternates.Add(qso.AlternateCall{Call: alt.Call, Since: since, Until: until}); err != nil {
			return qso.Owner{}, fmt.Errorf("%w: owner.alternates: %v", ErrInvalidConfig, err)
		}
	}
	return owner, nil
}

func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(qso.DateLayout, value, time.UTC)
}

// StoreConfig selects and tunes the record sink.
type StoreConfig struct {
	Driver             string `koanf:"driver" yaml:"driver"`
	Path               string `koanf:"path" yaml:"path"`
	BusyTimeoutMS      int    `koanf:"busy_timeout_ms" yaml:"busy_timeout_ms"`
	PreflightTimeoutMS int    `koanf:"preflight_timeout_ms" yaml:"preflight_timeout_ms"`
	CacheSizeMB        int64  `koanf:"cache_size_mb" yaml:"cache_size_mb"`
}

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
)

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level         string `koanf:"level" yaml:"level"`
	Format        string `koanf:"format" yaml:"format"`
	Dir           string `koanf:"dir" yaml:"dir"`
	RetentionDays int    `koanf:"retention_days" yaml:"retention_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CTY: CTYConfig{
			DatPath:                "data/cty/cty.dat",
			PlistPath:              "data/cty/cty.plist",
			DatURL:                 "https://www.country-files.com/cty/cty.dat",
			PlistURL:               "https://www.country-files.com/cty/cty.plist",
			CacheSize:              50000,
			DownloadTimeoutSeconds: 60,
		},
		Region: RegionConfig{
			ExceptionsPath: "data/region/exceptions.txt",
			Prefixes:       []string{"UA", "UA2", "UA9"},
		},
		Ingest: IngestConfig{
			BatchSize: 500,
			Workers:   1,
		},
		Store: StoreConfig{
			Driver:             DriverSQLite,
			Path:               "data/qsolog.db",
			BusyTimeoutMS:      5000,
			PreflightTimeoutMS: 10000,
			CacheSizeMB:        16,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "console",
			RetentionDays: 7,
		},
	}
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("%w: ingest.batch_size must be positive, got %d", ErrInvalidConfig, c.Ingest.BatchSize)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("%w: ingest.workers must be positive, got %d", ErrInvalidConfig, c.Ingest.Workers)
	}
	if c.CTY.CacheSize < 0 {
		return fmt.Errorf("%w: cty.cache_size must not be negative", ErrInvalidConfig)
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPebble:
	default:
		return fmt.Errorf("%w: store.driver %q (want %s or %s)", ErrInvalidConfig, c.Store.Driver, DriverSQLite, DriverPebble)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("%w: store.path must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q (want console or json)", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Owner.Callsign != "" && !qso.IsValidCallsign(c.Owner.Callsign) {
		return fmt.Errorf("%w: owner.callsign %q", ErrInvalidConfig, c.Owner.Callsign)
	}
	if _, err := c.Owner.Build(); err != nil {
		return err
	}
	return nil
}

// Dump writes the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return enc.Close()
}
