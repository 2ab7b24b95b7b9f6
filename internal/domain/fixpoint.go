package domain

import (
	"log/slog"
	"sort"
	"sync"

	m "hydra.dev/pkg/hydra/internal/model"
)

// FixpointOptions tunes one interprocedural resolution.
type FixpointOptions struct {
	// MissingBody is the value contributed by a function without a body.
	// InvRef is the sound default; NonRef gives the optimistic bound used to
	// detect uncertainty.
	MissingBody m.AbstractValue
	// Observe, when set, is called after every round with a copy of the values.
	Observe func(round int, values []m.AbstractValue)
}

// ConservativeFixpoint treats every missing body as InvRef.
func ConservativeFixpoint() FixpointOptions {
	return FixpointOptions{MissingBody: m.InvRef}
}

// OptimisticFixpoint treats every missing body as NonRef.
func OptimisticFixpoint() FixpointOptions {
	return FixpointOptions{MissingBody: m.NonRef}
}

// Resolution holds the converged abstract value of every function.
type Resolution struct {
	Program *Program
	Values  []m.AbstractValue
	// Rounds counts worklist rounds, including the final one that changed nothing.
	Rounds int
	// Iterations counts rounds that raised at least one value.
	Iterations  int
	Converged   bool
	Diagnostics []m.Diagnostic

	confidenceOnce sync.Once
	confidences    []float64
}

// Confidences returns the effective confidence of every function. It is
// computed once and safe for concurrent use.
func (r *Resolution) Confidences() []float64 {
	r.confidenceOnce.Do(func() {
		r.confidences = r.Program.EffectiveConfidence()
	})

	return r.confidences
}

// Value returns the resolved value of a function.
func (r *Resolution) Value(id m.FunctionID) (m.AbstractValue, bool) {
	idx, ok := r.Program.Lookup(id)
	if !ok {
		return m.InvRef, false
	}

	return r.Values[idx], true
}

// Resolve runs Kleene iteration over the program's call graph. Every value
// starts at NonRef and is only ever joined upward, so each function rises at
// most twice and the loop stops once a round changes nothing. A round
// re-evaluates only functions whose callees changed, walking them callees
// first.
func Resolve(prog *Program, opts FixpointOptions) *Resolution {
	n := prog.Len()
	values := make([]m.AbstractValue, n)
	diags := newDiagnosticSet()

	order := prog.Order()
	position := make([]int, n)

	for pos, idx := range order {
		position[idx] = pos
	}

	dirty := make([]bool, n)
	for idx := range dirty {
		dirty[idx] = true
	}

	res := &Resolution{Program: prog, Values: values}
	maxRounds := 2*n + 1

	for round := 1; round <= maxRounds; round++ {
		worklist := make([]int, 0, n)

		for idx, isDirty := range dirty {
			if isDirty {
				worklist = append(worklist, idx)
				dirty[idx] = false
			}
		}

		if len(worklist) == 0 {
			res.Converged = true
			break
		}

		sort.Slice(worklist, func(i, j int) bool { return position[worklist[i]] < position[worklist[j]] })

		res.Rounds = round
		changed := false

		for _, idx := range worklist {
			next := values[idx].Join(evaluateFunction(prog, idx, values, opts.MissingBody, diags.add))
			if next == values[idx] {
				continue
			}

			values[idx] = next
			changed = true

			for _, caller := range prog.callers[idx] {
				dirty[caller] = true
			}
		}

		if opts.Observe != nil {
			opts.Observe(round, append([]m.AbstractValue(nil), values...))
		}

		if changed {
			res.Iterations++
		}
	}

	if !res.Converged {
		res.Converged = !anyDirty(dirty)
	}

	if !res.Converged {
		slog.Error("Fixpoint did not converge", "functions", n, "rounds", res.Rounds)
	}

	res.Diagnostics = diags.list()

	slog.Debug("Fixpoint resolved",
		"functions", n,
		"rounds", res.Rounds,
		"iterations", res.Iterations,
		"missingBody", opts.MissingBody.String(),
	)

	return res
}

func anyDirty(dirty []bool) bool {
	for _, d := range dirty {
		if d {
			return true
		}
	}

	return false
}

// diagnosticSet de-duplicates diagnostics raised while re-evaluating the
// same body across rounds.
type diagnosticSet struct {
	seen  map[m.Diagnostic]bool
	items []m.Diagnostic
}

func newDiagnosticSet() *diagnosticSet {
	return &diagnosticSet{seen: map[m.Diagnostic]bool{}}
}

func (s *diagnosticSet) add(d m.Diagnostic) {
	if s.seen[d] {
		return
	}

	s.seen[d] = true
	s.items = append(s.items, d)
}

func (s *diagnosticSet) list() []m.Diagnostic {
	return s.items
}
