package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/iksnae/canvas-session/internal"
	"github.com/iksnae/canvas-session/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportSession int64
	exportOutput  string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <project-file>",
	Short: "Export a session's recorded message log",
	Long: `Export the ordered message log of one recorded session.

Formats: json (single document), jsonl (one message per line), yaml,
md (summary table). The session defaults to the first one recorded.

Examples:
  canvas-session export project.cvs
  canvas-session export project.cvs --session 2 --format jsonl
  canvas-session export project.cvs --format md --output session.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

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
			return fmt.Errorf("no sessions recorded in %s", args[0])
		}

		var info *internal.SessionInfo
		if exportSession == 0 {
			info = &sessions[0]
		} else {
			for i := range sessions {
				if sessions[i].SessionID == exportSession {
					info = &sessions[i]
					break
				}
			}
			if info == nil {
				return fmt.Errorf("no session %d in %s", exportSession, args[0])
			}
		}
		if info.Open {
			internal.PrintWarning(fmt.Sprintf("Session %d is still open; the exported log may be incomplete", info.SessionID))
		}

		var log *internal.SessionLog
		err = internal.ShowProgress(context.Background(),
			fmt.Sprintf("Reading session %d", info.SessionID), func() error {
				msgs, err := prj.SessionMessages(info.SessionID)
				if err != nil {
					return err
				}
				log = &internal.SessionLog{Info: *info, Messages: msgs}
				return nil
			})
		if err != nil {
			return fmt.Errorf("failed to read session: %w", err)
		}

		w := os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}

		if err := exporter.Export(log, w); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		if exportOutput != "" {
			internal.PrintSuccess(fmt.Sprintf("Exported session %d to %s", info.SessionID, exportOutput))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format (json, jsonl, yaml, md)")
	exportCmd.Flags().Int64Var(&exportSession, "session", 0, "Session id to export (default: first)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file (default: stdout)")
}
