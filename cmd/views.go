package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cfgpkg "github.com/KaramelBytes/vetviz-cli/internal/config"
	"github.com/KaramelBytes/vetviz-cli/internal/geo"
	"github.com/KaramelBytes/vetviz-cli/internal/lifestage"
	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/KaramelBytes/vetviz-cli/internal/utils"
	"github.com/KaramelBytes/vetviz-cli/internal/views"
	"github.com/spf13/cobra"
)

var (
	vwSpecies    string
	vwXData      string
	vwCategories string
	vwState      string
	vwLookup     string
	vwInline     bool
	vwFormat     string
	vwOutput     string
	vwTableOut   string
	vwDelimiter  string
	vwMaxRows    int
	vwSheetName  string
	vwSheetIndex int
	vwQuiet      bool
)

var viewsCmd = &cobra.Command{
	Use:   "views <files...>",
	Short: "Build life-stage, bar, heatmap, pie, timeline and GIS views from visit records",
	Long: `Build every dashboard view from one or more CSV/TSV/XLSX visit files.

Coordinates come from a lookup file (--lookup or long_lat_data in config) keyed
by the location column, or from Longitude/Latitude columns of the records
themselves (--inline, or long_lat_data: same). Views whose columns cannot be
found are reported and skipped; the others are still built.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		base, err := effectiveConfig()
		if err != nil {
			return err
		}
		// Flag overrides apply to this run only.
		cc := *base
		c := &cc
		f := cmd.Flags()
		if f.Changed("species") {
			if _, err := lifestage.ParseTarget(vwSpecies); err != nil {
				return err
			}
			c.Species = vwSpecies
		}
		if f.Changed("x-data") {
			c.XData = vwXData
		}
		if f.Changed("categories") {
			c.Categories = vwCategories
		}
		if f.Changed("state") {
			c.State = vwState
		}
		if f.Changed("lookup") {
			c.LongLatData = vwLookup
		}
		if vwInline {
			c.LongLatData = cfgpkg.SameFile
		}
		if f.Changed("sheet-name") {
			c.SheetName = vwSheetName
		}
		if f.Changed("sheet-index") {
			c.SheetIndex = vwSheetIndex
		}

		format, err := views.ParseFormat(vwFormat)
		if err != nil {
			return err
		}
		vopt, err := viewOptions(c)
		if err != nil {
			return err
		}
		topt := tableOptions(c)
		topt.MaxRows = vwMaxRows
		if topt.Delimiter, err = parseDelimiter(vwDelimiter); err != nil {
			return err
		}
		if len(files) > 1 && vwTableOut != "" {
			return fmt.Errorf("--table-out accepts a single input file")
		}

		metrics := observability.NewMetrics()
		in := views.Inputs{
			Options:  vopt,
			Geocoder: newGeocoder(c, metrics),
			Dates:    topt,
			Logger:   logger,
			Metrics:  metrics,
		}
		if !vopt.InlineCoordinates && c.LongLatData != "" {
			lt, err := table.LoadFile(c.LongLatData, tableOptions(c))
			if err != nil {
				return fmt.Errorf("load lookup: %w", err)
			}
			if in.Lookup, err = geo.LookupFromTable(lt, vopt.LocationRole); err != nil {
				return fmt.Errorf("lookup %s: %w", filepath.Base(c.LongLatData), err)
			}
			logger.Debug("lookup loaded", "path", c.LongLatData, "names", in.Lookup.Len(), "duplicates", len(in.Lookup.Duplicates))
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !vwQuiet && total > 1 {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			if err := runViews(ctx, out, path, topt, in, format, total); err != nil {
				return err
			}
		}
		if c.MetricsTextfile != "" {
			if err := metrics.WriteTextfile(c.MetricsTextfile); err != nil {
				return err
			}
		}
		return nil
	},
}

func runViews(ctx context.Context, out io.Writer, path string, topt table.Options, in views.Inputs, format views.Format, total int) error {
	t, err := table.LoadFile(path, topt)
	if err != nil {
		return err
	}
	v, err := views.Build(ctx, t, in)
	if err != nil {
		return err
	}
	for _, e := range v.Errors {
		logger.Warn("view skipped", "source", v.Source, "view", e.View, "role", e.Role, "reason", e.Message)
	}

	var buf bytes.Buffer
	if err := v.Write(&buf, format); err != nil {
		return err
	}
	if vwOutput == "" {
		if !vwQuiet {
			if _, err := out.Write(buf.Bytes()); err != nil {
				return err
			}
		}
	} else {
		dest := vwOutput
		if total > 1 {
			if err := os.MkdirAll(vwOutput, 0o755); err != nil {
				return err
			}
			dest = outputPath(vwOutput, path, format)
		}
		if err := utils.SafeWriteFile(dest, buf.Bytes()); err != nil {
			return fmt.Errorf("write views: %w", err)
		}
		if !vwQuiet {
			fmt.Fprintf(out, "✓ Wrote views to %s\n", dest)
		}
	}

	if vwTableOut != "" {
		var tb bytes.Buffer
		if err := table.WriteCSV(&tb, v.Table); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(vwTableOut, tb.Bytes()); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
		if !vwQuiet {
			fmt.Fprintf(out, "✓ Wrote enriched table to %s\n", vwTableOut)
		}
	}
	return nil
}

// expandInputs resolves globs and literal paths, dropping duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// outputPath names the per-file output in dir, adding a numeric suffix
// rather than overwriting an earlier input with the same base name.
func outputPath(dir, input string, format views.Format) string {
	ext := map[views.Format]string{
		views.FormatMarkdown: ".md",
		views.FormatJSON:     ".json",
		views.FormatYAML:     ".yaml",
	}[format]
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	cand := filepath.Join(dir, stem+".views"+ext)
	for idx := 2; ; idx++ {
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
		cand = filepath.Join(dir, fmt.Sprintf("%s__%d.views%s", stem, idx, ext))
	}
}

func init() {
	rootCmd.AddCommand(viewsCmd)
	viewsCmd.Flags().StringVar(&vwSpecies, "species", "", "age catalog: cat | dog | multi (overrides config)")
	viewsCmd.Flags().StringVar(&vwXData, "x-data", "", "role of the bar chart column (overrides config)")
	viewsCmd.Flags().StringVar(&vwCategories, "categories", "", "role of the pie chart column (overrides config)")
	viewsCmd.Flags().StringVar(&vwState, "state", "", "state used to scope geocoding queries")
	viewsCmd.Flags().StringVar(&vwLookup, "lookup", "", "location lookup file with longitude/latitude columns")
	viewsCmd.Flags().BoolVar(&vwInline, "inline", false, "read coordinates from the records' own Longitude/Latitude columns")
	viewsCmd.Flags().StringVarP(&vwFormat, "format", "f", "markdown", "output format: markdown | json | yaml")
	viewsCmd.Flags().StringVarP(&vwOutput, "output", "o", "", "write views to a file (a directory when several inputs are given)")
	viewsCmd.Flags().StringVar(&vwTableOut, "table-out", "", "write the enriched working table as CSV")
	viewsCmd.Flags().StringVar(&vwDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	viewsCmd.Flags().IntVar(&vwMaxRows, "max-rows", 0, "maximum rows to read per file (0 = unlimited)")
	viewsCmd.Flags().StringVar(&vwSheetName, "sheet-name", "", "XLSX: sheet name to read")
	viewsCmd.Flags().IntVar(&vwSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	viewsCmd.Flags().BoolVar(&vwQuiet, "quiet", false, "suppress progress and non-essential output")
}
