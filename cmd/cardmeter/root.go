// Package main provides the entry point for the cardmeter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for cardmeter.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardmeter",
		Short: "Measure the storage footprint of smart-card applets",
		Long: `Cardmeter measures how much persistent and transient card memory each
applet consumes. It cycles every applet in a catalog through install,
probe, and uninstall on a real card, and writes the aggregated results
as JSON documents.

A measurement needs a PC/SC reader with a card present and the external
installer jar on the path. Results are cached, so interrupted runs
resume where they stopped.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (includes APDU traces)")

	// Add subcommands
	cmd.AddCommand(NewStoreCmd())
	cmd.AddCommand(NewReleasesCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
