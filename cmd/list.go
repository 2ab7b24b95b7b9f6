package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"hydra.dev/pkg/hydra/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List modules and their analyzable functions",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newWorkflow(cmd, nil).List(context.Background(), domain.ListArgs{
				Paths: parsePaths(args),
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
