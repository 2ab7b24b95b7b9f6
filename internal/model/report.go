package model

import (
	"fmt"
	"time"
)

// ViolationKind is the rule that produced a violation.
type ViolationKind string

const (
	// HYDRA001 is a direct mutable-state leak: an externally visible function
	// hands out a reference able to mutate internal state.
	HYDRA001 ViolationKind = "HYDRA001"
	// HYDRA002 is a local invariant violation reported by the program verifier.
	HYDRA002 ViolationKind = "HYDRA002"
	// HYDRA003 is structural exposure: a reference to internal representation
	// escapes even though it cannot be used for mutation.
	HYDRA003 ViolationKind = "HYDRA003"
)

// Severity orders violations; higher is worse.
type Severity int

const (
	// SeverityWarning findings still block certification.
	SeverityWarning Severity = iota + 1
	// SeverityCritical findings also fail the CLI run.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	}

	return "unknown"
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name written by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Warning":
		*s = SeverityWarning
	case "Critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", text)
	}

	return nil
}

// Violation is an immutable finding attached to a module result.
type Violation struct {
	Kind       ViolationKind
	Function   FunctionID
	Location   Location
	Severity   Severity
	Confidence float64
	Message    string
}

// DiagnosticKind classifies a recorded degradation.
type DiagnosticKind string

const (
	// DiagMalformedType is an unresolvable type signature degraded to InvRef.
	DiagMalformedType DiagnosticKind = "malformed-type"
	// DiagMalformedBody is an ill-formed abstract body degraded to InvRef.
	DiagMalformedBody DiagnosticKind = "malformed-body"
	// DiagUnresolvedCallee is a call to a function outside the batch.
	DiagUnresolvedCallee DiagnosticKind = "unresolved-callee"
	// DiagMissingBody is a bytecode function analyzed with the conservative default.
	DiagMissingBody DiagnosticKind = "missing-body"
	// DiagDecompileUnavailable means no decompiler could serve the module.
	DiagDecompileUnavailable DiagnosticKind = "decompile-unavailable"
	// DiagDecompileTimeout means the decompiler did not answer in time.
	DiagDecompileTimeout DiagnosticKind = "decompile-timeout"
	// DiagDecompileBudgetExhausted means the daily budget refused the call.
	DiagDecompileBudgetExhausted DiagnosticKind = "decompile-budget-exhausted"
	// DiagOracleUnreachable means the invariant verifier's verdict is missing.
	DiagOracleUnreachable DiagnosticKind = "oracle-unreachable"
)

// Diagnostic records a degradation so it is reported rather than hidden.
type Diagnostic struct {
	Kind     DiagnosticKind
	Module   ModuleID
	Function string
	Message  string
}

// AnalysisPath is the representation a module was analyzed from.
type AnalysisPath string

const (
	// PathDirectSource analyzes submitted source bodies.
	PathDirectSource AnalysisPath = "direct-source"
	// PathDirectBytecode analyzes bytecode-derived signatures only.
	PathDirectBytecode AnalysisPath = "direct-bytecode"
	// PathDecompiled analyzes bodies produced by the decompiler.
	PathDecompiled AnalysisPath = "decompile-then-analyze"
)

// ModuleResult is the finalized verdict for one module.
type ModuleResult struct {
	ModuleID      ModuleID
	Certification CertificationState
	Violations    []Violation
	Confidence    float64
	Path          AnalysisPath
	Diagnostics   []Diagnostic
}

// Summary aggregates a batch. Every field is derived from the module results.
type Summary struct {
	TotalModules            int
	CertifiedModules        int
	ViolatedModules         int
	IndeterminateModules    int
	CertificationRate       float64
	TotalViolations         int
	CriticalViolations      int
	LowConfidenceViolations int
	DecompilerCalls         int
	SpentUSD                float64
}

// BatchResult is the sole contract handed to report rendering.
type BatchResult struct {
	RunID      string
	FinishedAt time.Time
	Modules    []ModuleResult
	Summary    Summary
}
