package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/applet-tools/cardmeter/internal/catalog"
	"github.com/applet-tools/cardmeter/internal/config"
)

// NewReleasesCmd creates the releases command.
func NewReleasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "Measure CAP files attached to repository releases",
		Long: `Releases measures the storage footprint of every CAP file attached to
the releases of the configured repositories. Each release tag becomes a
version; results can be grouped by app, by release, or both.

Repositories come from the configuration file's repos list, or from
--owner and --repo, which must be given together and override the list.

Examples:
  # Measure releases of the configured repositories, both groupings
  cardmeter releases

  # Measure one repository, grouped by release only
  cardmeter releases --owner example --repo applets --mode release

  # Measure a single app across releases
  cardmeter releases --app fido`,
		Args: cobra.NoArgs,
		RunE: runReleasesCmd,
	}

	addMeasureFlags(cmd)
	cmd.Flags().StringP("mode", "m", string(config.ModeBoth),
		"Document grouping: app, release, or both")
	cmd.Flags().String("owner", "", "Repository owner (requires --repo)")
	cmd.Flags().String("repo", "", "Repository name (requires --owner)")

	return cmd
}

// runReleasesCmd executes the releases command.
func runReleasesCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	mode, err := cmd.Flags().GetString("mode")
	if err != nil {
		return err
	}
	cfg.Mode = config.Mode(mode)

	cfg.Owner, err = cmd.Flags().GetString("owner")
	if err != nil {
		return err
	}
	cfg.Repo, err = cmd.Flags().GetString("repo")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	repos := cfg.File.Repos
	if cfg.Owner != "" {
		repos = []config.RepoRef{{Owner: cfg.Owner, Repo: cfg.Repo}}
	}
	if len(repos) == 0 {
		return errors.New("no repositories configured (add a repos list to .cardmeter or pass --owner and --repo)")
	}

	ctx, cancel, logger := setupRun(cmd)
	defer cancel()

	opts := []catalog.ReleaseOption{catalog.WithReleaseLogger(logger)}
	if cfg.App != "" {
		opts = append(opts, catalog.WithReleaseAppFilter(cfg.App))
	}
	source := catalog.NewReleaseSource(cfg.ReleasesBaseURL, repos, cfg.CatalogTimeout, opts...)

	return runMeasure(ctx, cfg, source, logger)
}
