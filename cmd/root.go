// Package cmd provides the root command and CLI setup for hydra.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hydra.dev/pkg/hydra/internal/adapter"
	"hydra.dev/pkg/hydra/internal/controller"
	"hydra.dev/pkg/hydra/internal/decompile"
	"hydra.dev/pkg/hydra/internal/domain"
	m "hydra.dev/pkg/hydra/internal/model"
)

var fsAdapter adapter.SourceFSAdapter

// workflow overrides the per-run workflow when set; tests inject a mock here.
var workflow domain.Workflow

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

var verboseFlag bool
var logFileFlag string

func init() {
	configureRootFlags(rootCmd)

	fsAdapter = adapter.NewLocalSourceFSAdapter()
}

const pathPatternsHelp = `Accepts batch manifests, directories and patterns:
  - ./...              recursively collect manifests under the current directory
  - ./contracts/...    recursively collect manifests under contracts
  - coin.yaml vault.yaml  certify the listed manifests together`

const rootLongDescription = `Hydra certifies smart-contract modules for robust safety: no public entry
point may hand an untrusted caller a reference that lets it break the
module's own invariants. Modules without source are analyzed from bytecode
and, when enabled, decompiled under a cost budget.

` + pathPatternsHelp

const certifyLongDescription = `Certify the modules described by the given manifests (default: current directory).

` + pathPatternsHelp

const listLongDescription = `List the modules found in the given manifests and how much of each is analyzable.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hydra",
		Short: "Robust-safety certification for smart-contract modules",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for certification reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, viper.GetString(logFilenameKey), "path of the rotating log file")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(logFileFlagName), logFilenameKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// exitError carries a non-zero process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("certification failed (exit code %d)", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}

	os.Exit(1)
}

func parsePaths(args []string) []m.Path {
	if len(args) == 0 {
		return []m.Path{"./..."}
	}

	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// newWorkflow assembles the workflow for one command invocation. A nil
// registry leaves decompilation disabled.
func newWorkflow(cmd *cobra.Command, reg prometheus.Registerer) domain.Workflow {
	if workflow != nil {
		return workflow
	}

	var guard decompile.Guard
	if reg != nil && viper.GetBool(madEnabledKey) {
		guard = newGuard(cmd, reg)
	}

	return domain.NewWorkflow(
		adapter.NewManifestLoader(fsAdapter),
		adapter.NewFileOracle(fsAdapter, m.Path(viper.GetString(oracleVerdictsKey))),
		adapter.NewReportStore(fsAdapter),
		controller.NewUI(cmd, controller.IsTTY(os.Stdout)),
		domain.NewSourceSelector(),
		guard,
	)
}
