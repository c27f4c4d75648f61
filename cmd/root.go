package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/vetviz-cli/internal/config"
	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	flagLogLevel  string
	flagLogFormat string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = observability.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "vetviz",
	Short: "VetViz CLI: normalize veterinary visit records into chart-ready views",
	Long: `VetViz reads veterinary visit spreadsheets (CSV, TSV or XLSX), buckets raw ages into
species life stages, joins clinic locations to coordinates and produces the
frequency, cross-tab, timeline and map data behind a visit dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vetviz/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = nil
	}
	cfg = c

	level, format := "info", "text"
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") && flagLogLevel != "" {
		level = flagLogLevel
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		format = flagLogFormat
	}
	logger = observability.NewLogger(os.Stderr, level, format)
	slog.SetDefault(logger)
}

// effectiveConfig returns the loaded config, or a fresh copy of the defaults.
func effectiveConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
