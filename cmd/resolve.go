package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/vetviz-cli/internal/geo"
	"github.com/KaramelBytes/vetviz-cli/internal/resolve"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/spf13/cobra"
)

var (
	rsSheetName  string
	rsSheetIndex int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <file> [roles...]",
	Short: "Show which column each role resolves to",
	Long: `Resolve role strings against the header of a data file.

A role matches the first column whose name contains it, ignoring case. Prefix a
role with '=' to require the exact column name. Without explicit roles the
configured date, age, species, location, x_data and categories roles are used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		opt := tableOptions(c)
		if cmd.Flags().Changed("sheet-name") {
			opt.SheetName = rsSheetName
		}
		if cmd.Flags().Changed("sheet-index") {
			opt.SheetIndex = rsSheetIndex
		}
		opt.MaxRows = 1
		t, err := table.LoadFile(args[0], opt)
		if err != nil {
			return err
		}

		roles := args[1:]
		if len(roles) == 0 {
			roles = []string{c.DateRole, c.AgeRole, c.SpeciesRole, c.LocationRole, c.XData, c.Categories}
			if c.InlineCoordinates() {
				roles = append(roles, geo.RoleLongitude, geo.RoleLatitude)
			}
		}

		res := resolve.New(t.Columns())
		out := cmd.OutOrStdout()
		var missing []string
		for _, role := range roles {
			i, err := res.Resolve(role)
			if err != nil {
				if !errors.Is(err, resolve.ErrColumnNotFound) {
					return err
				}
				missing = append(missing, role)
				fmt.Fprintf(out, "✗ %s: no matching column\n", role)
				continue
			}
			fmt.Fprintf(out, "✓ %s → %s (column %d)\n", role, res.Name(i), i+1)
		}
		if len(missing) > 0 {
			return fmt.Errorf("%d role(s) unresolved: %s (columns: %s)",
				len(missing), strings.Join(missing, ", "), strings.Join(t.Columns(), ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&rsSheetName, "sheet-name", "", "XLSX: sheet name to read")
	resolveCmd.Flags().IntVar(&rsSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
