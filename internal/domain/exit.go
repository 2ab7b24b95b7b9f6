package domain

import m "hydra.dev/pkg/hydra/internal/model"

// Exit codes returned by the CLI.
const (
	ExitOK                = 0
	ExitViolations        = 1
	ExitTooManyViolations = 2
)

// ExitPolicy decides how findings map to a process exit code.
type ExitPolicy struct {
	StrictMode bool
	// MaxViolations fails the run once exceeded; zero means unlimited.
	MaxViolations int
}

// ExitCode maps a batch result to a process exit code. Critical findings
// always fail; in strict mode any finding or indeterminate module fails too.
func ExitCode(result m.BatchResult, policy ExitPolicy) int {
	summary := result.Summary

	switch {
	case policy.MaxViolations > 0 && summary.TotalViolations > policy.MaxViolations:
		return ExitTooManyViolations
	case summary.CriticalViolations > 0:
		return ExitViolations
	case policy.StrictMode && (summary.TotalViolations > 0 || summary.IndeterminateModules > 0):
		return ExitViolations
	}

	return ExitOK
}
