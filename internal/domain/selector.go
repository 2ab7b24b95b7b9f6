package domain

import (
	"sort"

	m "hydra.dev/pkg/hydra/internal/model"
)

// SourceSelector decides, per module, which representation is analyzed and
// which modules are worth decompiling.
type SourceSelector interface {
	// Prepare clones mod for analysis, setting each function's own
	// confidence, and returns the path the module starts on.
	Prepare(mod *m.Module) (*m.Module, m.AnalysisPath)
	// Uncertain lists the public and friend functions that are InvRef only
	// because some body was unavailable.
	Uncertain(conservative, optimistic *Resolution) []m.FunctionID
	// DecompileTargets lists the bytecode-only modules to decompile.
	DecompileTargets(conservative *Resolution, uncertain []m.FunctionID, selective bool) []m.ModuleID
	// Install returns a clone of mod with decompiled bodies filled in for
	// every function that lacked one.
	Install(mod *m.Module, decompilation m.Decompilation) *m.Module
}

type sourceSelector struct{}

// NewSourceSelector constructs the default SourceSelector.
func NewSourceSelector() SourceSelector {
	return &sourceSelector{}
}

func (s *sourceSelector) Prepare(mod *m.Module) (*m.Module, m.AnalysisPath) {
	clone := mod.Clone()
	path := m.PathDirectSource

	if clone.Origin == m.BytecodeOnly {
		path = m.PathDirectBytecode
	}

	for _, fn := range clone.Functions {
		fn.ResolvedValue = m.NonRef

		switch {
		case clone.Origin == m.SourceAvailable:
			fn.Confidence = 1.0
		case fn.HasBody():
			// Bodies shipped alongside bytecode keep the confidence they were
			// submitted with; an unset confidence means fully trusted.
			if fn.Confidence <= 0 {
				fn.Confidence = 1.0
			}
		default:
			fn.Confidence = 0.0
		}
	}

	return clone, path
}

func (s *sourceSelector) Uncertain(conservative, optimistic *Resolution) []m.FunctionID {
	var out []m.FunctionID

	for idx := range conservative.Values {
		fn := conservative.Program.Function(idx)
		if !fn.ExternallyVisible() {
			continue
		}

		if conservative.Values[idx] == m.InvRef && optimistic.Values[idx] != m.InvRef {
			out = append(out, fn.ID())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out
}

func (s *sourceSelector) DecompileTargets(conservative *Resolution, uncertain []m.FunctionID, selective bool) []m.ModuleID {
	prog := conservative.Program
	targets := map[m.ModuleID]bool{}

	if !selective {
		for idx := 0; idx < prog.Len(); idx++ {
			fn := prog.Function(idx)
			if !fn.HasBody() && isBytecodeModule(prog, fn.Module) {
				targets[fn.Module] = true
			}
		}

		return sortedModuleIDs(targets)
	}

	for _, id := range uncertain {
		idx, ok := prog.Lookup(id)
		if !ok {
			continue
		}

		for _, reached := range prog.Reachable(idx) {
			fn := prog.Function(reached)
			if !fn.HasBody() && isBytecodeModule(prog, fn.Module) {
				targets[fn.Module] = true
			}
		}
	}

	return sortedModuleIDs(targets)
}

func (s *sourceSelector) Install(mod *m.Module, decompilation m.Decompilation) *m.Module {
	clone := mod.Clone()

	for name, fn := range clone.Functions {
		if fn.HasBody() {
			continue
		}

		body, ok := decompilation.Functions[name]
		if !ok {
			continue
		}

		fn.Body = &m.Body{Instructions: rebind(body.Instructions, clone.ID)}
		fn.Confidence = decompilation.Confidence
	}

	return clone
}

// rebind resolves module-relative references in a decompiled body. The
// decompiler only sees bytecode, so a callee or struct without a module is
// one of the installing module's own.
func rebind(instrs []m.Instruction, self m.ModuleID) []m.Instruction {
	out := make([]m.Instruction, len(instrs))

	for i, instr := range instrs {
		if instr.Op == m.OpCall && instr.Callee.Module == "" {
			instr.Callee.Module = self
		}

		if instr.Op == m.OpLoadField && instr.Struct.Module == "" {
			instr.Struct.Module = self
		}

		if len(instr.Arms) > 0 {
			arms := make([][]m.Instruction, len(instr.Arms))
			for j, arm := range instr.Arms {
				arms[j] = rebind(arm, self)
			}

			instr.Arms = arms
		}

		out[i] = instr
	}

	return out
}

func isBytecodeModule(prog *Program, id m.ModuleID) bool {
	mod, ok := prog.Module(id)
	return ok && mod.Origin == m.BytecodeOnly
}

func sortedModuleIDs(set map[m.ModuleID]bool) []m.ModuleID {
	out := make([]m.ModuleID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
