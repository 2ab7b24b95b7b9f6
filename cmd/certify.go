package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hydra.dev/pkg/hydra/internal/adapter"
	"hydra.dev/pkg/hydra/internal/decompile"
	"hydra.dev/pkg/hydra/internal/domain"
	m "hydra.dev/pkg/hydra/internal/model"
)

var (
	certifyParallelFlag      int
	certifyStrictFlag        bool
	certifyMaxViolationsFlag int
	certifyMinConfidenceFlag float64
	certifyStructuralFlag    bool
	certifyMadFlag           bool
	certifySelectiveFlag     bool
	certifyDecompilerFlag    string
	certifyVerdictsFlag      string
	certifyDiagnosticsFlag   bool
	certifyMetricsFlag       string
)

// certifyCmd represents the certify command.
var certifyCmd = newCertifyCmd()

func newCertifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certify [paths...]",
		Short: "Certify modules for robust safety",
		Long:  certifyLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()

			result, err := newWorkflow(cmd, reg).Certify(context.Background(), domain.CertifyArgs{
				Paths:              parsePaths(args),
				Reports:            m.Path(viper.GetString(outputFlagName)),
				Parallel:           viper.GetInt(runParallelConfigKey),
				MinConfidence:      viper.GetFloat64(minConfidenceKey),
				StructuralExposure: viper.GetBool(structuralExposureKey),
				Decompile:          viper.GetBool(madEnabledKey),
				Selective:          viper.GetBool(madSelectiveKey),
				Diagnostics:        certifyDiagnosticsFlag,
			})
			if err != nil {
				return err
			}

			writeMetrics(reg, viper.GetString(metricsTextfileKey))

			code := domain.ExitCode(result, domain.ExitPolicy{
				StrictMode:    viper.GetBool(strictModeKey),
				MaxViolations: viper.GetInt(maxViolationsKey),
			})
			if code != domain.ExitOK {
				cmd.SilenceUsage = true
				return &exitError{code: code}
			}

			return nil
		},
	}

	configureCertifyFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(certifyCmd)
}

func configureCertifyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.IntVarP(&certifyParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of modules processed concurrently")
	bindFlagToConfig(flags.Lookup(runParallelFlagName), runParallelConfigKey)

	flags.BoolVar(&certifyStrictFlag, strictFlagName, viper.GetBool(strictModeKey), "fail on any violation or indeterminate module")
	bindFlagToConfig(flags.Lookup(strictFlagName), strictModeKey)

	flags.IntVar(&certifyMaxViolationsFlag, maxViolationsFlagName, viper.GetInt(maxViolationsKey), "exit with code 2 above this many violations (0 = unlimited)")
	bindFlagToConfig(flags.Lookup(maxViolationsFlagName), maxViolationsKey)

	flags.Float64Var(&certifyMinConfidenceFlag, minConfidenceFlagName, viper.GetFloat64(minConfidenceKey), "HYDRA003 findings below this confidence are reported but do not fail a module; HYDRA001 always does")
	bindFlagToConfig(flags.Lookup(minConfidenceFlagName), minConfidenceKey)

	flags.BoolVar(&certifyStructuralFlag, structuralExposureFlagName, viper.GetBool(structuralExposureKey), "report references to internal types that cannot be mutated (HYDRA003)")
	bindFlagToConfig(flags.Lookup(structuralExposureFlagName), structuralExposureKey)

	flags.BoolVar(&certifyMadFlag, madFlagName, viper.GetBool(madEnabledKey), "decompile bytecode-only modules when their result is uncertain")
	bindFlagToConfig(flags.Lookup(madFlagName), madEnabledKey)

	flags.BoolVar(&certifySelectiveFlag, selectiveFlagName, viper.GetBool(madSelectiveKey), "decompile only modules reachable from uncertain functions")
	bindFlagToConfig(flags.Lookup(selectiveFlagName), madSelectiveKey)

	flags.StringVar(&certifyDecompilerFlag, decompilerFlagName, viper.GetString(madCommandKey), "decompiler command line; bytecode on stdin, YAML on stdout")
	bindFlagToConfig(flags.Lookup(decompilerFlagName), madCommandKey)

	flags.StringVar(&certifyVerdictsFlag, verdictsFlagName, viper.GetString(oracleVerdictsKey), "YAML file with invariant-verifier verdicts")
	bindFlagToConfig(flags.Lookup(verdictsFlagName), oracleVerdictsKey)

	flags.StringVar(&certifyMetricsFlag, metricsFlagName, viper.GetString(metricsTextfileKey), "write Prometheus metrics to this file after the run")
	bindFlagToConfig(flags.Lookup(metricsFlagName), metricsTextfileKey)

	flags.BoolVar(&certifyDiagnosticsFlag, diagnosticsFlagName, false, "print analysis diagnostics per module")
}

// newGuard builds the decompilation cache, cost ledger and guard for one run.
func newGuard(cmd *cobra.Command, reg prometheus.Registerer) decompile.Guard {
	metrics := decompile.NewMetrics(reg)

	var decompiler adapter.Decompiler = adapter.NewUnavailableDecompiler()
	if command := strings.Fields(viper.GetString(madCommandKey)); len(command) > 0 {
		decompiler = adapter.NewCommandDecompiler(command[0], command[1:]...)
	}

	cache := decompile.NewCache(viper.GetInt(madCacheSizeKey), decompile.DefaultTTL, nil, metrics)

	ledger := decompile.NewLedger(decompile.LedgerOptions{
		DailyBudgetUSD:    viper.GetFloat64(madDailyBudgetKey),
		AlertThresholdUSD: viper.GetFloat64(madAlertKey),
		Metrics:           metrics,
		OnAlert: func(alert decompile.Alert) {
			cmd.PrintErrf("warning: decompiler spend $%.2f crossed the $%.2f alert threshold\n",
				alert.SpentUSD, alert.ThresholdUSD)
		},
	})

	return decompile.NewGuard(decompiler, cache, ledger, metrics, decompile.GuardOptions{
		CostPerCallUSD: viper.GetFloat64(madCostPerCallKey),
		Timeout:        time.Duration(viper.GetInt64(madTimeoutKey)) * time.Second,
		RatePerMinute:  viper.GetInt(madRatePerMinuteKey),
	})
}

func writeMetrics(reg *prometheus.Registry, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		slog.Warn("Failed to write metrics", "path", path, "error", err)
	}
}
