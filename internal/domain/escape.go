package domain

import (
	"errors"
	"fmt"

	m "hydra.dev/pkg/hydra/internal/model"
)

// env maps local bindings to their current abstract value.
type env map[string]m.AbstractValue

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}

	return out
}

// joinInto merges other into e pointwise.
func (e env) joinInto(other env) {
	for k, v := range other {
		e[k] = e[k].Join(v)
	}
}

// frame evaluates one function body against the current values of its
// callees. It never writes to the arena; the fixpoint owns all updates.
type frame struct {
	prog   *Program
	fn     *m.Function
	values []m.AbstractValue
	report func(m.Diagnostic)

	returned m.AbstractValue
	hasRet   bool
	// produced is set once any instruction yields a value.
	produced bool
}

// evaluateFunction computes the most dangerous value fn can hand to its
// caller given the callee values in values.
func evaluateFunction(prog *Program, idx int, values []m.AbstractValue, missingBody m.AbstractValue, report func(m.Diagnostic)) m.AbstractValue {
	fn := prog.Function(idx)
	if !fn.HasBody() {
		return missingBody
	}

	f := &frame{
		prog:   prog,
		fn:     fn,
		values: values,
		report: report,
	}

	locals := env{}

	for _, param := range fn.Parameters {
		value, err := Absty(param.Type, fn.Module, prog.Structs())
		if err != nil {
			f.diagnose(m.DiagMalformedType, fmt.Sprintf("parameter %s: %v", param.Binding, err))
		}

		locals[param.Binding] = value
	}

	last := f.run(fn.Body.Instructions, locals)

	result := last
	if f.hasRet {
		result = f.returned
	}

	if isWellFormedNonReference(fn.DeclaredReturn, prog.Structs()) {
		return m.NonRef
	}

	if _, err := Absty(fn.DeclaredReturn, fn.Module, prog.Structs()); errors.Is(err, ErrMalformedType) {
		f.diagnose(m.DiagMalformedType, fmt.Sprintf("declared return: %v", err))
		return m.InvRef
	}

	if !f.produced && fn.DeclaredReturn.IsReference() {
		f.diagnose(m.DiagMalformedBody, fmt.Sprintf("body yields no value for declared return %s", fn.DeclaredReturn))
		return m.InvRef
	}

	return result
}

// run evaluates a straight-line sequence and returns the last value produced.
func (f *frame) run(instrs []m.Instruction, locals env) m.AbstractValue {
	last := m.NonRef

	for _, instr := range instrs {
		switch instr.Op {
		case m.OpLoadLocal:
			last = f.loadLocal(instr.Local, locals)
		case m.OpLoadField:
			last = f.loadField(instr)
		case m.OpCall:
			last = f.call(instr, locals)
		case m.OpBranch:
			last = f.branch(instr, locals)
		case m.OpReturn:
			value := last
			if instr.Local != "" {
				value = f.loadLocal(instr.Local, locals)
				f.produced = true
			}

			f.returned = f.returned.Join(value)
			f.hasRet = true

			continue
		default:
			f.diagnose(m.DiagMalformedBody, fmt.Sprintf("unrecognized operation %q", instr.Op))
			last = m.InvRef
		}

		if instr.Op != m.OpBranch {
			f.produced = true
		}

		if instr.Dest != "" {
			locals[instr.Dest] = last
		}
	}

	return last
}

func (f *frame) loadLocal(binding string, locals env) m.AbstractValue {
	value, ok := locals[binding]
	if !ok {
		f.diagnose(m.DiagMalformedBody, fmt.Sprintf("read of unbound local %q", binding))
		return m.InvRef
	}

	return value
}

// loadField yields absty of the field as accessed: a copy, `&s.f` or
// `&mut s.f`. A mutable borrow into an internal struct of the analyzed
// module is always InvRef.
func (f *frame) loadField(instr m.Instruction) m.AbstractValue {
	def, ok := f.prog.Structs().LookupStruct(instr.Struct)
	if !ok {
		f.diagnose(m.DiagMalformedType, fmt.Sprintf("field access on unknown struct %s", instr.Struct))
		return m.InvRef
	}

	field, ok := def.Field(instr.Field)
	if !ok {
		f.diagnose(m.DiagMalformedType, fmt.Sprintf("unknown field %s.%s", instr.Struct, instr.Field))
		return m.InvRef
	}

	accessed := field.Type

	switch instr.Borrow {
	case m.BorrowNone:
	case m.BorrowImmutable:
		accessed = m.Reference(field.Type)
	case m.BorrowMutable:
		accessed = m.MutableReference(field.Type)
	default:
		f.diagnose(m.DiagMalformedBody, fmt.Sprintf("unrecognized borrow %q", instr.Borrow))
		return m.InvRef
	}

	value, err := Absty(accessed, f.fn.Module, f.prog.Structs())
	if err != nil {
		f.diagnose(m.DiagMalformedType, fmt.Sprintf("field %s.%s: %v", instr.Struct, instr.Field, err))
	}

	if instr.Borrow == m.BorrowMutable && def.Internal && def.Module == f.fn.Module {
		value = m.InvRef
	}

	return value
}

// call yields the callee's resolved value, escalated to InvRef when an
// InvRef argument flows into a callee that returns a reference.
func (f *frame) call(instr m.Instruction, locals env) m.AbstractValue {
	argMax := m.NonRef
	for _, arg := range instr.Args {
		argMax = argMax.Join(f.loadLocal(arg, locals))
	}

	idx, ok := f.prog.Lookup(instr.Callee)
	if !ok {
		f.diagnose(m.DiagUnresolvedCallee, fmt.Sprintf("call to %s outside the batch", instr.Callee))
		return m.InvRef
	}

	callee := f.prog.Function(idx)
	result := f.values[idx]

	if argMax == m.InvRef && !isWellFormedNonReference(callee.DeclaredReturn, f.prog.Structs()) {
		result = m.InvRef
	}

	return result
}

// branch evaluates every arm on its own copy of the locals and joins both
// the produced values and the resulting environments.
func (f *frame) branch(instr m.Instruction, locals env) m.AbstractValue {
	if len(instr.Arms) == 0 {
		return m.NonRef
	}

	merged := env{}
	result := m.NonRef

	for _, arm := range instr.Arms {
		armLocals := locals.clone()
		result = result.Join(f.run(arm, armLocals))
		merged.joinInto(armLocals)
	}

	for k, v := range merged {
		locals[k] = v
	}

	return result
}

func (f *frame) diagnose(kind m.DiagnosticKind, message string) {
	if f.report == nil {
		return
	}

	f.report(m.Diagnostic{
		Kind:     kind,
		Module:   f.fn.Module,
		Function: f.fn.Name,
		Message:  message,
	})
}
