package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hydra build and config schema versions",
		Long: `Print the hydra module version, the Go toolchain it was built with and
the hydra.yaml schema version this binary reads and writes.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				cmd.Println("hydra version\t", info.Main.Version)
				cmd.Println("go version\t", info.GoVersion)
			} else {
				cmd.Println("hydra version\t unknown")
			}

			cmd.Println("config version\t", currentConfigVersion)
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
