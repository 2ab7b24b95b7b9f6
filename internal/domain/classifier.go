package domain

import (
	"fmt"
	"log/slog"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ClassifierOptions is the certification policy.
type ClassifierOptions struct {
	// StructuralExposure enables HYDRA003.
	StructuralExposure bool
	// MinConfidence excludes less trustworthy HYDRA001/HYDRA003 findings from
	// the certification decision. They are still reported.
	MinConfidence float64
}

// Classifier turns a resolved module into violations and a certification state.
type Classifier interface {
	Classify(mod *m.Module, res *Resolution, verdict *m.Verdict) m.ModuleResult
}

type classifier struct {
	opts ClassifierOptions
}

// NewClassifier constructs a Classifier for the given policy.
func NewClassifier(opts ClassifierOptions) Classifier {
	return &classifier{opts: opts}
}

// Classify evaluates every public and friend function of mod. A nil verdict
// means the invariant oracle could not be reached and makes the module
// Indeterminate; the escape findings are still reported.
func (c *classifier) Classify(mod *m.Module, res *Resolution, verdict *m.Verdict) m.ModuleResult {
	confidences := res.Confidences()
	result := m.ModuleResult{
		ModuleID:   mod.ID,
		Confidence: 1.0,
	}

	exposesInvRef := false
	counted := 0

	for _, name := range mod.FunctionNames() {
		fn := mod.Functions[name]
		if !fn.ExternallyVisible() {
			continue
		}

		idx, ok := res.Program.Lookup(fn.ID())
		if !ok {
			continue
		}

		value := res.Values[idx]
		confidence := confidences[idx]
		result.Confidence = minFloat(result.Confidence, confidence)

		if value == m.InvRef {
			exposesInvRef = true
		}

		for _, violation := range c.functionViolations(mod, fn, value, confidence, res.Program.Structs()) {
			if violation.Severity >= m.SeverityWarning && violation.Confidence >= c.opts.MinConfidence {
				counted++
			}

			result.Violations = append(result.Violations, violation)
		}
	}

	switch {
	case verdict == nil:
		result.Certification = m.Indeterminate
		result.Diagnostics = append(result.Diagnostics, m.Diagnostic{
			Kind:    m.DiagOracleUnreachable,
			Module:  mod.ID,
			Message: "invariant verifier verdict missing",
		})
	case !verdict.Passed:
		result.Violations = append(result.Violations, oracleViolations(mod.ID, verdict)...)
		result.Certification = m.Violated
	case exposesInvRef || counted > 0:
		result.Certification = m.Violated
	default:
		result.Certification = m.Certified
	}

	slog.Debug("Classified module",
		"module", mod.ID,
		"state", result.Certification,
		"violations", len(result.Violations),
		"confidence", result.Confidence,
	)

	return result
}

func (c *classifier) functionViolations(mod *m.Module, fn *m.Function, value m.AbstractValue, confidence float64, structs StructIndex) []m.Violation {
	var out []m.Violation

	if value == m.InvRef && mayExposeReference(fn, structs) {
		message := fmt.Sprintf("%s returns %s, a reference able to mutate internal state", fn.Name, fn.DeclaredReturn)
		if !fn.HasBody() {
			message = fmt.Sprintf("%s has no analyzable body; assumed to leak a mutable reference", fn.Name)
		}

		out = append(out, m.Violation{
			Kind:       m.HYDRA001,
			Function:   fn.ID(),
			Location:   fn.Location,
			Severity:   m.SeverityCritical,
			Confidence: confidence,
			Message:    message,
		})
	}

	if c.opts.StructuralExposure && value != m.NonRef && fn.DeclaredReturn.IsReference() {
		internal, err := ExposesInternal(fn.DeclaredReturn, mod.ID, structs)
		if err == nil && internal {
			out = append(out, m.Violation{
				Kind:       m.HYDRA003,
				Function:   fn.ID(),
				Location:   fn.Location,
				Severity:   m.SeverityWarning,
				Confidence: confidence,
				Message:    fmt.Sprintf("%s exposes internal representation through %s", fn.Name, fn.DeclaredReturn),
			})
		}
	}

	return out
}

// mayExposeReference is false only for a function with a body whose declared
// return is a well-formed non-reference.
func mayExposeReference(fn *m.Function, structs StructIndex) bool {
	if !fn.HasBody() {
		return true
	}

	return !isWellFormedNonReference(fn.DeclaredReturn, structs)
}

func oracleViolations(module m.ModuleID, verdict *m.Verdict) []m.Violation {
	out := make([]m.Violation, 0, len(verdict.Findings))

	for _, finding := range verdict.Findings {
		out = append(out, m.Violation{
			Kind:       m.HYDRA002,
			Function:   m.FunctionID{Module: module, Name: finding.Function},
			Location:   finding.Location,
			Severity:   m.SeverityCritical,
			Confidence: 1.0,
			Message:    finding.Message,
		})
	}

	return out
}

// Summarize derives the batch summary from finalized module results.
func Summarize(results []m.ModuleResult, minConfidence float64) m.Summary {
	summary := m.Summary{TotalModules: len(results)}

	for _, result := range results {
		switch result.Certification {
		case m.Certified:
			summary.CertifiedModules++
		case m.Violated:
			summary.ViolatedModules++
		case m.Indeterminate:
			summary.IndeterminateModules++
		case m.Pending:
		}

		for _, violation := range result.Violations {
			summary.TotalViolations++

			if violation.Severity >= m.SeverityCritical {
				summary.CriticalViolations++
			}

			if violation.Confidence < minConfidence {
				summary.LowConfidenceViolations++
			}
		}
	}

	if summary.TotalModules > 0 {
		summary.CertificationRate = float64(summary.CertifiedModules) / float64(summary.TotalModules)
	}

	return summary
}
