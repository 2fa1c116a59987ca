package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/applet-tools/cardmeter/internal/catalog"
	"github.com/applet-tools/cardmeter/internal/config"
)

// NewStoreCmd creates the store command.
func NewStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Measure every app published in the package store",
		Long: `Store measures the storage footprint of every (app, version) pair the
package store publishes. Store apps install via named recipes, so apps
whose recipes are not listed in the configuration file are skipped by
the installer.

Results are grouped by app in applet_storage_by_app.json.

Examples:
  # Measure every store app
  cardmeter store

  # Measure a single app on a specific reader
  cardmeter store --app fido --reader ACR1252

  # Write documents to a custom directory
  cardmeter store -o results/`,
		Args: cobra.NoArgs,
		RunE: runStoreCmd,
	}

	addMeasureFlags(cmd)
	return cmd
}

// runStoreCmd executes the store command.
func runStoreCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// The store catalog has no release grouping.
	cfg.Mode = config.ModeApp

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel, logger := setupRun(cmd)
	defer cancel()

	var opts []catalog.StoreOption
	if cfg.App != "" {
		opts = append(opts, catalog.WithStoreAppFilter(cfg.App))
	}
	source := catalog.NewStoreSource(cfg.StoreBaseURL, cfg.CatalogTimeout, opts...)

	return runMeasure(ctx, cfg, source, logger)
}
