// Package model defines the data structures for robust-safety certification.
package model

import "strings"

// TypeKind tags the variant held by a TypeSignature. The zero value is not a
// valid kind so an unset signature is always recognized as malformed.
type TypeKind int

const (
	// KindInvalid marks an unset or unrecognized signature.
	KindInvalid TypeKind = iota
	// KindPrimitive is a builtin value type (u64, bool, address, ...).
	KindPrimitive
	// KindStruct is a struct held by value.
	KindStruct
	// KindReference is an immutable reference `&T`.
	KindReference
	// KindMutableReference is a mutable reference `&mut T`.
	KindMutableReference
	// KindVector is a `vector<T>` held by value; Inner is the element type.
	KindVector
)

// UnitName is the primitive name used for functions that return nothing.
const UnitName = "()"

// TypeSignature is a tagged variant describing a parameter, field or return type.
type TypeSignature struct {
	Kind TypeKind
	// Name is the primitive name or the struct name.
	Name string
	// Module is the defining module of a struct.
	Module ModuleID
	// Internal marks a struct as module-private representation.
	Internal bool
	// Inner is the referent of a reference or the element of a vector.
	Inner *TypeSignature
}

// Primitive builds a primitive signature.
func Primitive(name string) TypeSignature {
	return TypeSignature{Kind: KindPrimitive, Name: name}
}

// Unit is the signature of an empty return.
func Unit() TypeSignature {
	return Primitive(UnitName)
}

// Struct builds a by-value struct signature.
func Struct(module ModuleID, name string, internal bool) TypeSignature {
	return TypeSignature{Kind: KindStruct, Module: module, Name: name, Internal: internal}
}

// Reference builds `&inner`.
func Reference(inner TypeSignature) TypeSignature {
	return TypeSignature{Kind: KindReference, Inner: &inner}
}

// MutableReference builds `&mut inner`.
func MutableReference(inner TypeSignature) TypeSignature {
	return TypeSignature{Kind: KindMutableReference, Inner: &inner}
}

// Vector builds `vector<elem>`.
func Vector(elem TypeSignature) TypeSignature {
	return TypeSignature{Kind: KindVector, Inner: &elem}
}

// IsReference reports whether the signature is `&T` or `&mut T`.
func (t TypeSignature) IsReference() bool {
	return t.Kind == KindReference || t.Kind == KindMutableReference
}

// StructRef returns the struct identity for a KindStruct signature.
func (t TypeSignature) StructRef() StructRef {
	return StructRef{Module: t.Module, Name: t.Name}
}

// Underlying strips references and returns the referenced signature.
func (t TypeSignature) Underlying() TypeSignature {
	for t.IsReference() && t.Inner != nil {
		t = *t.Inner
	}

	return t
}

func (t TypeSignature) String() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Name
	case KindStruct:
		if t.Module == "" {
			return t.Name
		}

		return string(t.Module) + "::" + t.Name
	case KindReference, KindMutableReference:
		var b strings.Builder

		b.WriteString("&")

		if t.Kind == KindMutableReference {
			b.WriteString("mut ")
		}

		if t.Inner == nil {
			b.WriteString("<nil>")
		} else {
			b.WriteString(t.Inner.String())
		}

		return b.String()
	case KindVector:
		if t.Inner == nil {
			return "vector<<nil>>"
		}

		return "vector<" + t.Inner.String() + ">"
	case KindInvalid:
	}

	return "<invalid>"
}

// AbstractValue is the three-point escape lattice NonRef < OkRef < InvRef,
// ordered from least to most dangerous to expose.
type AbstractValue int

const (
	// NonRef is a value that carries no reference (bottom).
	NonRef AbstractValue = iota
	// OkRef is a reference that cannot be used to break the module's invariants.
	OkRef
	// InvRef is a reference able to mutate internal state (top).
	InvRef
)

// Join returns the least upper bound, which in a total order is the maximum.
func (v AbstractValue) Join(other AbstractValue) AbstractValue {
	if other > v {
		return other
	}

	return v
}

func (v AbstractValue) String() string {
	switch v {
	case NonRef:
		return "NonRef"
	case OkRef:
		return "OkRef"
	case InvRef:
		return "InvRef"
	}

	return "unknown"
}

// MarshalText renders the lattice point by name.
func (v AbstractValue) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
