package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a hydra.yaml with the default certification policy",
		Long: `Write hydra.yaml to the current directory with every setting at its
current value: the failure policy (strict_mode, max_violations,
min_confidence), the decompiler and its cost budget under mad, the
verifier verdicts file and logging. Values from HYDRA_* environment
variables are written as well. An existing hydra.yaml is never replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			if err := viper.SafeWriteConfigAs(targetPath); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			cmd.Printf("Wrote %s (config version %d)\n", targetPath, viper.GetInt(configVersionKey))

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
