package cmd

import (
	"fmt"

	"github.com/iksnae/canvas-session/internal"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <project-file>",
	Short: "List recorded sessions",
	Long: `List every session recorded in a project file with its source,
protocol version, open/closed status and message count.`,
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

		sessions, err := prj.Sessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessions) == 0 {
			internal.PrintInfo("No sessions recorded")
			return nil
		}

		fmt.Printf("%-4s %-12s %-12s %-8s %-10s %s\n",
			"ID", "SOURCE", "PROTOCOL", "STATUS", "MESSAGES", "ORIGIN")
		for _, info := range sessions {
			status := "closed"
			if info.Open {
				status = "open"
			}
			fmt.Printf("%-4d %-12s %-12s %-8s %-10d %s\n",
				info.SessionID, info.SourceType, info.Protocol, status,
				info.MessageCount, info.SourceParam)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
