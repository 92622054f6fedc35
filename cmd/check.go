package cmd

import (
	"errors"
	"fmt"

	"github.com/iksnae/canvas-session/internal"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <project-file>",
	Short: "Validate a project file header",
	Long: `Validate the header of a project file without opening it.

The check reads only the fixed-size file header: the SQLite magic, the
application id and the schema version. It never takes a lock on the file
and never modifies it, so it is safe to run against a file another
process is recording to.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		version, err := internal.CheckProject(path)
		if err != nil {
			var checkErr *internal.CheckError
			if errors.As(err, &checkErr) {
				return fmt.Errorf("%s: %s check failed", path, checkErr.Code)
			}
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("%s: valid project file, schema version %d", path, version))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
