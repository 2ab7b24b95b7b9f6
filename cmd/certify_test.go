package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hydra.dev/pkg/hydra/internal/domain"
	domainmocks "hydra.dev/pkg/hydra/internal/domain/mocks"
	m "hydra.dev/pkg/hydra/internal/model"
)

// newTestRootCmd builds a root command with sub attached. Flags bound to
// viper keys are rebound to fresh, unchanged flags when the test ends so
// values set on the command line do not leak into later tests.
func newTestRootCmd(t *testing.T, sub *cobra.Command) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	t.Cleanup(func() {
		newRootCmd()
		newCertifyCmd()
	})

	out := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.AddCommand(sub)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	return cmd, out
}

func useWorkflow(t *testing.T, wf domain.Workflow) {
	t.Helper()

	original := workflow
	workflow = wf

	t.Cleanup(func() { workflow = original })
}

func TestCertifyCmd_Defaults(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)
	useWorkflow(t, mockWorkflow)

	cmd, _ := newTestRootCmd(t, newCertifyCmd())

	mockWorkflow.On("Certify", mock.Anything, mock.MatchedBy(func(args domain.CertifyArgs) bool {
		return len(args.Paths) == 1 &&
			args.Paths[0] == m.Path("./...") &&
			args.Reports == m.Path(".hydra-reports") &&
			args.Parallel == 4 &&
			args.MinConfidence == 0.7 &&
			!args.StructuralExposure &&
			!args.Decompile &&
			args.Selective &&
			!args.Diagnostics
	})).Return(m.BatchResult{}, nil)

	cmd.SetArgs([]string{"certify"})
	require.NoError(t, cmd.Execute())
}

func TestCertifyCmd_FlagsArePassedThrough(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)
	useWorkflow(t, mockWorkflow)

	cmd, _ := newTestRootCmd(t, newCertifyCmd())

	mockWorkflow.On("Certify", mock.Anything, mock.MatchedBy(func(args domain.CertifyArgs) bool {
		return len(args.Paths) == 2 &&
			args.Paths[0] == m.Path("./coin") &&
			args.Paths[1] == m.Path("vault.yaml") &&
			args.Reports == m.Path("./out") &&
			args.Parallel == 2 &&
			args.MinConfidence == 0.5 &&
			args.StructuralExposure &&
			args.Decompile &&
			!args.Selective &&
			args.Diagnostics
	})).Return(m.BatchResult{}, nil)

	cmd.SetArgs([]string{
		"certify", "-p", "2", "--min-confidence", "0.5", "--structural-exposure",
		"--mad", "--selective=false", "--diagnostics", "-o", "./out", "./coin", "vault.yaml",
	})
	require.NoError(t, cmd.Execute())
}

func TestCertifyCmd_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		summary  m.Summary
		wantCode int
	}{
		{
			name:     "warnings pass outside strict mode",
			summary:  m.Summary{TotalViolations: 2},
			wantCode: domain.ExitOK,
		},
		{
			name:     "critical violation fails",
			summary:  m.Summary{TotalViolations: 1, CriticalViolations: 1},
			wantCode: domain.ExitViolations,
		},
		{
			name:     "strict mode fails on warnings",
			args:     []string{"--strict"},
			summary:  m.Summary{TotalViolations: 1},
			wantCode: domain.ExitViolations,
		},
		{
			name:     "too many violations",
			args:     []string{"--max-violations", "1"},
			summary:  m.Summary{TotalViolations: 2},
			wantCode: domain.ExitTooManyViolations,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockWorkflow := domainmocks.NewMockWorkflow(t)
			useWorkflow(t, mockWorkflow)

			cmd, _ := newTestRootCmd(t, newCertifyCmd())

			mockWorkflow.On("Certify", mock.Anything, mock.Anything).
				Return(m.BatchResult{Summary: tt.summary}, nil)

			cmd.SetArgs(append([]string{"certify"}, tt.args...))
			err := cmd.Execute()

			if tt.wantCode == domain.ExitOK {
				require.NoError(t, err)
				return
			}

			var exit *exitError
			require.ErrorAs(t, err, &exit)
			assert.Equal(t, tt.wantCode, exit.code)
		})
	}
}

func TestCertifyCmd_WorkflowError(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)
	useWorkflow(t, mockWorkflow)

	cmd, _ := newTestRootCmd(t, newCertifyCmd())

	loadErr := errors.New("load modules: boom")
	mockWorkflow.On("Certify", mock.Anything, mock.Anything).Return(m.BatchResult{}, loadErr)

	cmd.SetArgs([]string{"certify"})
	err := cmd.Execute()
	require.ErrorIs(t, err, loadErr)

	var exit *exitError
	assert.False(t, errors.As(err, &exit))
}

func TestNewCertifyCmd(t *testing.T) {
	cmd := newCertifyCmd()

	assert.Equal(t, "certify [paths...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, certifyLongDescription, cmd.Long)

	for _, name := range []string{
		runParallelFlagName, strictFlagName, maxViolationsFlagName, minConfidenceFlagName,
		structuralExposureFlagName, madFlagName, selectiveFlagName, decompilerFlagName,
		verdictsFlagName, diagnosticsFlagName, metricsFlagName,
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	usage := cmd.Flags().Lookup(minConfidenceFlagName).Usage
	assert.Contains(t, usage, "HYDRA003")
	assert.Contains(t, usage, "HYDRA001 always does")
}

func TestCertifyCmd_Examples(t *testing.T) {
	examples, err := filepath.Abs(filepath.Join("..", "examples"))
	require.NoError(t, err)

	verdicts := filepath.Join(examples, "hydra-verdicts.yaml")

	t.Run("mutable leak fails the run", func(t *testing.T) {
		reports := t.TempDir()
		cmd, out := newTestRootCmd(t, newCertifyCmd())

		cmd.SetArgs([]string{"certify", "--verdicts", verdicts, "-o", reports, filepath.Join(examples, "coin")})
		err := cmd.Execute()

		var exit *exitError
		require.ErrorAs(t, err, &exit)
		assert.Equal(t, domain.ExitViolations, exit.code)
		assert.Contains(t, out.String(), "HYDRA001 0x1::coin::value_mut")

		saved, err := filepath.Glob(filepath.Join(reports, "*.yaml"))
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})

	t.Run("immutable getter is certified", func(t *testing.T) {
		cmd, out := newTestRootCmd(t, newCertifyCmd())

		cmd.SetArgs([]string{"certify", "--verdicts", verdicts, "-o", t.TempDir(), filepath.Join(examples, "getter")})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "Certified 1/1 module(s)")
	})

	t.Run("bytecode without decompilation fails conservatively", func(t *testing.T) {
		cmd, out := newTestRootCmd(t, newCertifyCmd())

		cmd.SetArgs([]string{"certify", "--verdicts", verdicts, "-o", t.TempDir(), filepath.Join(examples, "bytecode")})
		err := cmd.Execute()

		var exit *exitError
		require.ErrorAs(t, err, &exit)
		assert.Contains(t, out.String(), "HYDRA001 0x2::vault::borrow")
	})

	t.Run("shared bytecode is decompiled once", func(t *testing.T) {
		metrics := filepath.Join(t.TempDir(), "hydra.prom")
		cmd, out := newTestRootCmd(t, newCertifyCmd())

		cmd.SetArgs([]string{
			"certify", "--verdicts", verdicts, "-o", t.TempDir(), "--metrics", metrics,
			"--mad", "--decompiler", "cat " + filepath.Join(examples, "decompiled", "vault.yaml"),
			filepath.Join(examples, "shared"),
		})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "Certified 2/2 module(s)")
		assert.Contains(t, out.String(), "Decompiler: 1 call(s), $0.10 spent")

		data, err := os.ReadFile(metrics)
		require.NoError(t, err)
		assert.Contains(t, string(data), `hydra_decompile_calls_total`)
	})
}
