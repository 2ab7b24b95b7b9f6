package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hydra.dev/pkg/hydra/internal/domain"
	m "hydra.dev/pkg/hydra/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [run-id]",
		Short: "View a previously saved certification report",
		Long: `View a saved certification report from the reports directory.
Without a run ID the most recent report is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewArgs := domain.ViewArgs{Reports: m.Path(viper.GetString(outputFlagName))}
			if len(args) == 1 {
				viewArgs.RunID = args[0]
			}

			_, err := newWorkflow(cmd, nil).View(context.Background(), viewArgs)

			return err
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
