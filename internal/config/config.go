package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SameFile is the long_lat_data value meaning coordinates are inline in the primary file.
const SameFile = "same"

// Global configuration structure.
type Global struct {
	// Analysis options
	Species     string `mapstructure:"species" yaml:"species"`
	XData       string `mapstructure:"x_data" yaml:"x_data"`
	Categories  string `mapstructure:"categories" yaml:"categories"`
	State       string `mapstructure:"state" yaml:"state"`
	LongLatData string `mapstructure:"long_lat_data" yaml:"long_lat_data"`

	// Role strings used to find columns
	DateRole     string `mapstructure:"date_role" yaml:"date_role"`
	AgeRole      string `mapstructure:"age_role" yaml:"age_role"`
	SpeciesRole  string `mapstructure:"species_role" yaml:"species_role"`
	LocationRole string `mapstructure:"location_role" yaml:"location_role"`

	// Ingestion
	DateLayouts []string `mapstructure:"date_layouts" yaml:"date_layouts"`
	DefaultYear int      `mapstructure:"default_year" yaml:"default_year"`
	SheetName   string   `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex  int      `mapstructure:"sheet_index" yaml:"sheet_index"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Mapbox geocoding fallback
	MapboxToken      string `mapstructure:"mapbox_token" yaml:"mapbox_token"`
	MapboxEnabled    bool   `mapstructure:"mapbox_enabled" yaml:"mapbox_enabled"`
	MapboxTimeoutSec int    `mapstructure:"mapbox_timeout_sec" yaml:"mapbox_timeout_sec"`
	MapboxCacheSize  int    `mapstructure:"mapbox_cache_size" yaml:"mapbox_cache_size"`

	HTTPAddr        string `mapstructure:"http_addr" yaml:"http_addr"`
	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile"`
}

// InlineCoordinates reports whether coordinates come from the primary file.
func (c *Global) InlineCoordinates() bool {
	return strings.EqualFold(strings.TrimSpace(c.LongLatData), SameFile)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Global) Validate() error {
	switch strings.ToLower(c.Species) {
	case "", "cat", "dog", "multi":
	default:
		return fmt.Errorf("invalid species: %s (use cat, dog or multi)", c.Species)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (use text or json)", c.LogFormat)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("mapbox_enabled is true but mapbox_token is not set")
	}
	if c.MapboxTimeoutSec < 0 || c.MapboxCacheSize < 0 {
		return errors.New("mapbox_timeout_sec and mapbox_cache_size must not be negative")
	}
	return nil
}

// Set assigns one key from its string form, as typed on the command line.
func (c *Global) Set(key, val string) error {
	switch key {
	case "species":
		s := strings.ToLower(strings.TrimSpace(val))
		switch s {
		case "cat", "dog", "multi":
			c.Species = s
		default:
			return fmt.Errorf("invalid species: %s (use cat, dog or multi)", val)
		}
	case "x_data":
		c.XData = val
	case "categories":
		c.Categories = val
	case "state":
		c.State = val
	case "long_lat_data":
		c.LongLatData = val
	case "date_role":
		c.DateRole = val
	case "age_role":
		c.AgeRole = val
	case "species_role":
		c.SpeciesRole = val
	case "location_role":
		c.LocationRole = val
	case "date_layouts":
		var layouts []string
		for _, l := range strings.Split(val, ",") {
			if l = strings.TrimSpace(l); l != "" {
				layouts = append(layouts, l)
			}
		}
		c.DateLayouts = layouts
	case "default_year", "sheet_index", "mapbox_timeout_sec", "mapbox_cache_size":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "default_year":
			c.DefaultYear = i
		case "sheet_index":
			c.SheetIndex = i
		case "mapbox_timeout_sec":
			c.MapboxTimeoutSec = i
		case "mapbox_cache_size":
			c.MapboxCacheSize = i
		}
	case "sheet_name":
		c.SheetName = val
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	case "mapbox_token":
		c.MapboxToken = val
	case "mapbox_enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for mapbox_enabled: %w", err)
		}
		c.MapboxEnabled = b
	case "http_addr":
		c.HTTPAddr = val
	case "metrics_textfile":
		c.MetricsTextfile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return c.Validate()
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".vetviz"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.vetviz/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold a Mapbox token.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; cobra flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("VETVIZ")
	v.AutomaticEnv()

	v.SetDefault("species", "multi")
	v.SetDefault("x_data", "reason")
	v.SetDefault("categories", "species")
	v.SetDefault("state", "")
	v.SetDefault("long_lat_data", "")
	v.SetDefault("date_role", "date")
	v.SetDefault("age_role", "age")
	v.SetDefault("species_role", "species")
	v.SetDefault("location_role", "location")
	v.SetDefault("date_layouts", []string{})
	v.SetDefault("default_year", 0)
	v.SetDefault("sheet_name", "")
	v.SetDefault("sheet_index", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	// Mapbox defaults
	v.SetDefault("mapbox_token", "")
	v.SetDefault("mapbox_enabled", false)
	v.SetDefault("mapbox_timeout_sec", 5)
	v.SetDefault("mapbox_cache_size", 1000)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_textfile", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
