package cmd

import (
	"fmt"
	"io"
	"strings"

	cfgpkg "github.com/KaramelBytes/vetviz-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set VetViz configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		showConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func showConfig(w io.Writer, c *cfgpkg.Global) {
	fmt.Fprintf(w, "species: %s\n", c.Species)
	fmt.Fprintf(w, "x_data: %s\n", c.XData)
	fmt.Fprintf(w, "categories: %s\n", c.Categories)
	if c.State != "" {
		fmt.Fprintf(w, "state: %s\n", c.State)
	}
	if c.LongLatData != "" {
		fmt.Fprintf(w, "long_lat_data: %s\n", c.LongLatData)
	}
	fmt.Fprintf(w, "date_role: %s\n", c.DateRole)
	fmt.Fprintf(w, "age_role: %s\n", c.AgeRole)
	fmt.Fprintf(w, "species_role: %s\n", c.SpeciesRole)
	fmt.Fprintf(w, "location_role: %s\n", c.LocationRole)
	if len(c.DateLayouts) > 0 {
		fmt.Fprintf(w, "date_layouts: %s\n", strings.Join(c.DateLayouts, ", "))
	}
	if c.DefaultYear > 0 {
		fmt.Fprintf(w, "default_year: %d\n", c.DefaultYear)
	}
	if c.SheetName != "" {
		fmt.Fprintf(w, "sheet_name: %s\n", c.SheetName)
	}
	if c.SheetIndex > 0 {
		fmt.Fprintf(w, "sheet_index: %d\n", c.SheetIndex)
	}
	fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
	fmt.Fprintf(w, "log_format: %s\n", c.LogFormat)
	fmt.Fprintf(w, "mapbox_enabled: %t\n", c.MapboxEnabled)
	fmt.Fprintf(w, "mapbox_token: %s\n", mask(c.MapboxToken))
	fmt.Fprintf(w, "mapbox_timeout_sec: %d\n", c.MapboxTimeoutSec)
	fmt.Fprintf(w, "mapbox_cache_size: %d\n", c.MapboxCacheSize)
	fmt.Fprintf(w, "http_addr: %s\n", c.HTTPAddr)
	if c.MetricsTextfile != "" {
		fmt.Fprintf(w, "metrics_textfile: %s\n", c.MetricsTextfile)
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
