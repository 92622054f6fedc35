package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/canvas-session/internal"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "canvas-session",
	Short: "Inspect and export recorded canvas session logs",
	Long: `A CLI tool to check, inspect and export canvas-session project files.

Project files are transactional, replayable logs of everything that
happened in a collaborative drawing session: every message, in order,
partitioned into sessions with periodic snapshots.

Quick Start:
  canvas-session check project.cvs       # Validate the file header
  canvas-session inspect project.cvs     # Dump pragmas, migrations, sessions
  canvas-session list project.cvs        # List recorded sessions
  canvas-session export project.cvs      # Export a session's message log`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
