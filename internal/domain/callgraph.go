package domain

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	m "hydra.dev/pkg/hydra/internal/model"
)

// Program is an arena-indexed snapshot of every function in a batch. It is
// built once all bodies (source or decompiled) are installed and is never
// mutated by the fixpoint.
type Program struct {
	modules map[m.ModuleID]*m.Module
	structs StructTable
	funcs   []*m.Function
	index   map[m.FunctionID]int
	callees [][]int
	callers [][]int
	sccs    [][]int // callees first
}

// NewProgram indexes the modules' functions and builds the call graph.
func NewProgram(modules []*m.Module) *Program {
	prog := &Program{
		modules: make(map[m.ModuleID]*m.Module, len(modules)),
		structs: StructTable{},
		index:   map[m.FunctionID]int{},
	}

	sorted := append([]*m.Module(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, mod := range sorted {
		prog.modules[mod.ID] = mod

		for _, def := range mod.Structs {
			prog.structs[def.Ref()] = def
		}

		for _, name := range mod.FunctionNames() {
			fn := mod.Functions[name]
			prog.index[fn.ID()] = len(prog.funcs)
			prog.funcs = append(prog.funcs, fn)
		}
	}

	prog.callees = make([][]int, len(prog.funcs))
	prog.callers = make([][]int, len(prog.funcs))

	for i, fn := range prog.funcs {
		if !fn.HasBody() {
			continue
		}

		seen := map[int]bool{}
		visitCalls(fn.Body.Instructions, func(callee m.FunctionID) {
			j, ok := prog.index[callee]
			if !ok || seen[j] {
				return
			}

			seen[j] = true
			prog.callees[i] = append(prog.callees[i], j)
			prog.callers[j] = append(prog.callers[j], i)
		})
	}

	prog.buildSCCs()

	return prog
}

func visitCalls(instrs []m.Instruction, fn func(m.FunctionID)) {
	for _, instr := range instrs {
		switch instr.Op {
		case m.OpCall:
			fn(instr.Callee)
		case m.OpBranch:
			for _, arm := range instr.Arms {
				visitCalls(arm, fn)
			}
		case m.OpLoadLocal, m.OpLoadField, m.OpReturn:
		}
	}
}

// buildSCCs orders the call graph's strongly connected components so that
// callees come before their callers. Tarjan emits components in reverse
// topological order of the caller->callee graph, which is exactly that.
func (p *Program) buildSCCs() {
	g := simple.NewDirectedGraph()
	for i := range p.funcs {
		g.AddNode(simple.Node(int64(i)))
	}

	for i, callees := range p.callees {
		for _, j := range callees {
			if i == j {
				continue
			}

			g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
		}
	}

	for _, component := range topo.TarjanSCC(g) {
		ids := make([]int, 0, len(component))
		for _, node := range component {
			ids = append(ids, int(node.ID()))
		}

		sort.Ints(ids)
		p.sccs = append(p.sccs, ids)
	}
}

// Len is the number of functions in the arena.
func (p *Program) Len() int {
	return len(p.funcs)
}

// Function returns the function stored at idx.
func (p *Program) Function(idx int) *m.Function {
	return p.funcs[idx]
}

// Lookup returns the arena index of a function.
func (p *Program) Lookup(id m.FunctionID) (int, bool) {
	idx, ok := p.index[id]
	return idx, ok
}

// Module returns a module of the snapshot.
func (p *Program) Module(id m.ModuleID) (*m.Module, bool) {
	mod, ok := p.modules[id]
	return mod, ok
}

// Structs exposes the batch-wide struct index.
func (p *Program) Structs() StructIndex {
	return p.structs
}

// Order returns every arena index, callees first.
func (p *Program) Order() []int {
	order := make([]int, 0, len(p.funcs))
	for _, component := range p.sccs {
		order = append(order, component...)
	}

	return order
}

// Reachable returns the arena indexes reachable from idx through calls,
// including idx itself.
func (p *Program) Reachable(idx int) []int {
	seen := map[int]bool{idx: true}
	stack := []int{idx}
	out := []int{}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)

		for _, next := range p.callees[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}

	sort.Ints(out)

	return out
}

// EffectiveConfidence returns, per arena index, the minimum of a function's
// own confidence and the confidence of every function it transitively calls.
func (p *Program) EffectiveConfidence() []float64 {
	out := make([]float64, len(p.funcs))

	for idx := range p.funcs {
		lowest := 1.0
		for _, reached := range p.Reachable(idx) {
			lowest = minFloat(lowest, p.funcs[reached].Confidence)
		}

		out[idx] = lowest
	}

	return out
}

func minFloat(a, b float64) float64 {
	if b < a {
		return b
	}

	return a
}
