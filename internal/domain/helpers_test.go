package domain

import (
	m "hydra.dev/pkg/hydra/internal/model"
)

const coinID m.ModuleID = "0x1::coin"

var (
	u64     = m.Primitive("u64")
	coinTy  = m.Struct(coinID, "Coin", true)
	coinRef = m.StructRef{Module: coinID, Name: "Coin"}
)

func coinStruct() *m.StructDef {
	return &m.StructDef{
		Name:     "Coin",
		Internal: true,
		Fields:   []m.Field{{Name: "value", Type: u64}},
	}
}

func newModule(id m.ModuleID, origin m.Origin, structs []*m.StructDef, fns ...*m.Function) *m.Module {
	mod := &m.Module{
		ID:        id,
		Origin:    origin,
		Functions: map[string]*m.Function{},
		Structs:   map[string]*m.StructDef{},
	}

	for _, def := range structs {
		def.Module = id
		mod.Structs[def.Name] = def
	}

	for _, fn := range fns {
		fn.Module = id
		mod.Functions[fn.Name] = fn
	}

	return mod
}

// fn builds a function with a body; passing no instructions yields a
// bodyless function.
func fn(name string, vis m.Visibility, params []m.Parameter, ret m.TypeSignature, body ...m.Instruction) *m.Function {
	f := &m.Function{
		Name:           name,
		Visibility:     vis,
		Parameters:     params,
		DeclaredReturn: ret,
		Confidence:     1,
		Location:       m.Location{File: "coin.yaml", Line: 1},
	}

	if body != nil {
		f.Body = &m.Body{Instructions: body}
	}

	return f
}

func self(t m.TypeSignature) []m.Parameter {
	return []m.Parameter{{Binding: "self", Type: t}}
}

func borrowValue(borrow m.Borrow) m.Instruction {
	return m.Instruction{Op: m.OpLoadField, Local: "self", Struct: coinRef, Field: "value", Borrow: borrow, Dest: "r"}
}

func ret(local string) m.Instruction {
	return m.Instruction{Op: m.OpReturn, Local: local}
}

func call(callee m.FunctionID, args ...string) m.Instruction {
	return m.Instruction{Op: m.OpCall, Callee: callee, Args: args, Dest: "r"}
}

// valueMut is `public fun value_mut(&mut self): &mut u64`.
func valueMut() *m.Function {
	return fn("value_mut", m.VisibilityPublic, self(m.MutableReference(coinTy)), m.MutableReference(u64),
		borrowValue(m.BorrowMutable), ret("r"))
}

// value is `public fun value(&self): &u64`.
func value() *m.Function {
	return fn("value", m.VisibilityPublic, self(m.Reference(coinTy)), m.Reference(u64),
		borrowValue(m.BorrowImmutable), ret("r"))
}

func passed(id m.ModuleID) *m.Verdict {
	return &m.Verdict{Module: id, Passed: true}
}

func resolve(mods ...*m.Module) *Resolution {
	return Resolve(NewProgram(mods), ConservativeFixpoint())
}

func kinds(violations []m.Violation) []m.ViolationKind {
	out := make([]m.ViolationKind, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Kind)
	}

	return out
}
