package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/applet-tools/cardmeter/internal/card"
	"github.com/applet-tools/cardmeter/internal/catalog"
	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/database"
	"github.com/applet-tools/cardmeter/internal/installer"
	"github.com/applet-tools/cardmeter/internal/log"
	"github.com/applet-tools/cardmeter/internal/orchestrator"
	"github.com/applet-tools/cardmeter/internal/report"
)

// addMeasureFlags registers the flags shared by the store and releases
// commands.
func addMeasureFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("reader", "r", "",
		"Reader name substring (default: first reader with a card present)")
	cmd.Flags().StringP("app", "a", "",
		"Measure only the named app")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .cardmeter in current or home directory)")
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory receiving the aggregate JSON documents")
	cmd.Flags().String("installer-jar", "",
		"Path to the installer jar (overrides configuration file)")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ReaderSelector, err = cmd.Flags().GetString("reader")
	if err != nil {
		return nil, err
	}

	cfg.App, err = cmd.Flags().GetString("app")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}

	jar, err := cmd.Flags().GetString("installer-jar")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not
	// found. Otherwise silently run with an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	// Flag overrides win over the configuration file.
	if jar != "" {
		cfg.InstallerJar = jar
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// setupRun prepares logging and a signal-cancelled context shared by
// the measurement commands.
func setupRun(cmd *cobra.Command) (context.Context, context.CancelFunc, *slog.Logger) {
	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel, logger
}

// runMeasure executes a measurement run against the given catalog source.
func runMeasure(ctx context.Context, cfg *config.Config, source catalog.Source, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	store, err := report.NewStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	transport, err := card.NewSCardTransport()
	if err != nil {
		return fmt.Errorf("failed to connect to the PC/SC service: %w", err)
	}
	defer transport.Close()

	reader, uid, err := card.FindReader(transport, cfg.ReaderSelector)
	if err != nil {
		return err
	}
	fmt.Printf("Using reader %s (card %s)\n\n", reader, uid)

	exec := installer.NewExecutor(cfg, reader,
		installer.WithVerboseTracing(cfg.Verbose),
		installer.WithExecutorLogger(logger),
	)

	opener := func() (orchestrator.Session, error) {
		return card.Open(transport, exec, reader, card.WithLogger(logger))
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithProgress(orchestrator.NewPrinter(os.Stdout)),
	}
	// Leftover cleanup needs to know which recipe to spare, so it runs
	// only when the free-memory applet recipe is configured.
	if exec.MemoryAppletRecipe() != "" {
		opts = append(opts, orchestrator.WithCleaner(exec))
	}

	o := orchestrator.New(cfg, source, opener, db, store, opts...)
	_, err = o.Run(ctx)
	return err
}
