package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/database"
	"github.com/applet-tools/cardmeter/internal/report"
)

// NewCompareCmd creates the compare command.
// This command inspects measurement history stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [app]",
		Short: "Compare an app's storage footprint across versions",
		Long: `Compare displays how an app's storage footprint changed from version to
version, using the measurements stored in the database. No card is
needed; the command only reads past results.

Examples:
  # Show version-to-version deltas for an app
  cardmeter compare fido

  # List every measured app
  cardmeter compare --list-apps

  # Output the comparison as JSON or Markdown
  cardmeter compare --json fido
  cardmeter compare --markdown fido`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list-apps", "L", false,
		"List all measured apps in the database")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listApps, err := cmd.Flags().GetBool("list-apps")
	if err != nil {
		return err
	}
	if !listApps && len(args) == 0 {
		return errors.New("app name is required (use --list-apps to see measured apps)")
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listApps {
		return printApps(ctx, cmd, db)
	}
	return printHistory(ctx, cmd, db, args[0])
}

// printApps lists every app with at least one measurement.
func printApps(ctx context.Context, cmd *cobra.Command, db *database.MeasureDB) error {
	apps, err := db.ListApps(ctx)
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	if len(apps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No measurements in the database yet.")
		return nil
	}
	for _, app := range apps {
		fmt.Fprintln(cmd.OutOrStdout(), app)
	}
	return nil
}

// printHistory renders the version history of one app.
func printHistory(ctx context.Context, cmd *cobra.Command, db *database.MeasureDB, name string) error {
	history, err := db.History(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) == 0 {
		return fmt.Errorf("no measurements for %q (run 'cardmeter store' or 'cardmeter releases' first)", name)
	}

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	if jsonOut {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(history)
	}
	if markdownOut {
		return report.WriteHistory(cmd.OutOrStdout(), name, history)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Storage history for %s (%d versions)\n\n", name, len(history))
	fmt.Fprintf(cmd.OutOrStdout(), "%-16s %12s %10s %12s %10s\n",
		"VERSION", "PERSISTENT", "Δ", "TRANSIENT", "Δ")

	var prev *database.VersionMeasurement
	for i := range history {
		h := history[i]
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %12d %10s %12d %10s\n",
			h.Version,
			h.Measurement.PersistentBytes,
			delta(prev, func(v database.VersionMeasurement) uint64 { return v.Measurement.PersistentBytes }, h.Measurement.PersistentBytes),
			h.Measurement.TransientBytes,
			delta(prev, func(v database.VersionMeasurement) uint64 { return v.Measurement.TransientBytes }, h.Measurement.TransientBytes),
		)
		prev = &history[i]
	}
	return nil
}

// delta formats the signed change from the previous version.
func delta(prev *database.VersionMeasurement, field func(database.VersionMeasurement) uint64, cur uint64) string {
	if prev == nil {
		return "-"
	}
	old := field(*prev)
	if cur >= old {
		return fmt.Sprintf("+%d", cur-old)
	}
	return fmt.Sprintf("-%d", old-cur)
}
