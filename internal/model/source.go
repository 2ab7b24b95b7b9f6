package model

import (
	"fmt"
	"sort"
)

// ModuleID identifies a module, e.g. "0x1::coin".
type ModuleID string

// Path is a filesystem path supplied on the command line or in config.
type Path string

// Visibility is the declared visibility of a function.
type Visibility string

const (
	// VisibilityPublic functions are callable by any module.
	VisibilityPublic Visibility = "public"
	// VisibilityFriend functions are callable by declared friend modules.
	VisibilityFriend Visibility = "friend"
	// VisibilityPrivate functions stay inside the trust boundary.
	VisibilityPrivate Visibility = "private"
)

// Origin describes what representation of a module was submitted.
type Origin string

const (
	// SourceAvailable modules carry full function bodies.
	SourceAvailable Origin = "source"
	// BytecodeOnly modules carry signatures recovered from bytecode and
	// possibly no bodies.
	BytecodeOnly Origin = "bytecode"
)

// CertificationState is the per-module verdict.
type CertificationState string

const (
	// Pending is the state before classification.
	Pending CertificationState = "pending"
	// Certified modules are robustly safe.
	Certified CertificationState = "certified"
	// Violated modules carry at least one disqualifying finding.
	Violated CertificationState = "violated"
	// Indeterminate modules lack the invariant oracle's verdict.
	Indeterminate CertificationState = "indeterminate"
)

// FunctionID is the (module, name) identity of a function.
type FunctionID struct {
	Module ModuleID
	Name   string
}

func (id FunctionID) String() string {
	return fmt.Sprintf("%s::%s", id.Module, id.Name)
}

// StructRef is the (module, name) identity of a struct declaration.
type StructRef struct {
	Module ModuleID
	Name   string
}

func (r StructRef) String() string {
	return fmt.Sprintf("%s::%s", r.Module, r.Name)
}

// Location is a best-effort position: a source span or a bytecode offset.
type Location struct {
	File   string
	Line   int
	Offset int
}

func (l Location) String() string {
	switch {
	case l.File != "" && l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	case l.Line > 0:
		return fmt.Sprintf("line %d", l.Line)
	case l.Offset > 0:
		return fmt.Sprintf("offset %d", l.Offset)
	}

	return "unknown"
}

// Parameter is a named, typed function parameter.
type Parameter struct {
	Binding string
	Type    TypeSignature
}

// Field is a struct field.
type Field struct {
	Name string
	Type TypeSignature
}

// StructDef is a struct declaration.
type StructDef struct {
	Module   ModuleID
	Name     string
	Internal bool
	Fields   []Field
}

// Ref returns the identity of the declaration.
func (s *StructDef) Ref() StructRef {
	return StructRef{Module: s.Module, Name: s.Name}
}

// Field looks up a field by name.
func (s *StructDef) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}

	return Field{}, false
}

// Body is the abstracted body of a function.
type Body struct {
	Instructions []Instruction
}

// Function is owned by its Module. ResolvedValue and Confidence are written
// by the analysis.
type Function struct {
	Module         ModuleID
	Name           string
	Visibility     Visibility
	Parameters     []Parameter
	Body           *Body // nil when unavailable
	DeclaredReturn TypeSignature
	Location       Location

	ResolvedValue AbstractValue
	Confidence    float64
}

// ID returns the function identity.
func (f *Function) ID() FunctionID {
	return FunctionID{Module: f.Module, Name: f.Name}
}

// HasBody reports whether a body (source or decompiled) is available.
func (f *Function) HasBody() bool {
	return f.Body != nil
}

// ExternallyVisible reports whether code outside the module can call f.
func (f *Function) ExternallyVisible() bool {
	return f.Visibility == VisibilityPublic || f.Visibility == VisibilityFriend
}

// Module is a unit of certification.
type Module struct {
	ID           ModuleID
	Functions    map[string]*Function
	Structs      map[string]*StructDef
	Dependencies []ModuleID
	Origin       Origin
	Bytecode     []byte

	Certification CertificationState
}

// FunctionNames returns the function names in sorted order.
func (mod *Module) FunctionNames() []string {
	names := make([]string, 0, len(mod.Functions))
	for name := range mod.Functions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Clone deep-copies the module so an analysis pass can install bodies and
// write results without touching the caller's copy. Instruction slices are
// shared: they are never mutated after loading.
func (mod *Module) Clone() *Module {
	clone := &Module{
		ID:            mod.ID,
		Functions:     make(map[string]*Function, len(mod.Functions)),
		Structs:       make(map[string]*StructDef, len(mod.Structs)),
		Dependencies:  append([]ModuleID(nil), mod.Dependencies...),
		Origin:        mod.Origin,
		Bytecode:      mod.Bytecode,
		Certification: mod.Certification,
	}

	for name, fn := range mod.Functions {
		copied := *fn
		copied.Parameters = append([]Parameter(nil), fn.Parameters...)
		clone.Functions[name] = &copied
	}

	for name, def := range mod.Structs {
		copied := *def
		copied.Fields = append([]Field(nil), def.Fields...)
		clone.Structs[name] = &copied
	}

	return clone
}
