package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/canvas-session/internal"
	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <project-file>",
	Short: "Dump project pragmas, migrations and sessions",
	Long: `Print a human-diffable dump of a project file.

The dump covers the header pragmas, the list of applied migrations and a
summary of every recorded session (id, source, protocol, open/closed).
Message bodies are not included; use export for those.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prj, err := internal.OpenProject(args[0], internal.OpenExisting)
		if err != nil {
			return fmt.Errorf("failed to open project: %w", err)
		}
		defer func() {
			if err := prj.Close(); err != nil {
				internal.LogWarn("Close project: %v", err)
			}
		}()

		return prj.Dump(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
