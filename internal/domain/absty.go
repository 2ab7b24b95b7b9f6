// Package domain contains the escape analysis engine, the violation
// classifier and the workflow that certifies a batch of modules.
package domain

import (
	"errors"
	"fmt"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ErrMalformedType is returned for a type signature that cannot be resolved.
var ErrMalformedType = errors.New("malformed type signature")

// StructIndex resolves struct declarations across the batch.
type StructIndex interface {
	LookupStruct(ref m.StructRef) (*m.StructDef, bool)
}

// StructTable is a map-backed StructIndex.
type StructTable map[m.StructRef]*m.StructDef

// LookupStruct implements StructIndex.
func (st StructTable) LookupStruct(ref m.StructRef) (*m.StructDef, bool) {
	def, ok := st[ref]
	return def, ok
}

// Absty maps a type signature to its abstract value relative to the module
// under analysis. A malformed signature degrades to InvRef together with an
// error wrapping ErrMalformedType, so callers can record a diagnostic while
// the analysis stays sound.
func Absty(t m.TypeSignature, analyzed m.ModuleID, structs StructIndex) (m.AbstractValue, error) {
	switch t.Kind {
	case m.KindPrimitive:
		if t.Name == "" {
			return m.InvRef, fmt.Errorf("%w: primitive without a name", ErrMalformedType)
		}

		return m.NonRef, nil
	case m.KindStruct:
		if _, ok := structs.LookupStruct(t.StructRef()); !ok {
			return m.InvRef, fmt.Errorf("%w: unknown struct %s", ErrMalformedType, t.StructRef())
		}

		return m.NonRef, nil
	case m.KindReference:
		if t.Inner == nil {
			return m.InvRef, fmt.Errorf("%w: reference without referent", ErrMalformedType)
		}

		return m.OkRef, nil
	case m.KindMutableReference:
		if t.Inner == nil {
			return m.InvRef, fmt.Errorf("%w: mutable reference without referent", ErrMalformedType)
		}

		internal, err := reachesInternal(*t.Inner, analyzed, structs, map[m.StructRef]bool{})
		if err != nil {
			return m.InvRef, err
		}

		if internal {
			return m.InvRef, nil
		}

		return m.OkRef, nil
	case m.KindVector:
		if t.Inner == nil {
			return m.InvRef, fmt.Errorf("%w: vector without element type", ErrMalformedType)
		}

		// A vector carries whatever its elements carry.
		return Absty(*t.Inner, analyzed, structs)
	case m.KindInvalid:
	}

	return m.InvRef, fmt.Errorf("%w: unrecognized kind %d", ErrMalformedType, t.Kind)
}

// ExposesInternal reports whether t, looking through references and struct
// fields, reaches a struct that is internal to the analyzed module.
func ExposesInternal(t m.TypeSignature, analyzed m.ModuleID, structs StructIndex) (bool, error) {
	return reachesInternal(t, analyzed, structs, map[m.StructRef]bool{})
}

func reachesInternal(t m.TypeSignature, analyzed m.ModuleID, structs StructIndex, visiting map[m.StructRef]bool) (bool, error) {
	switch t.Kind {
	case m.KindPrimitive:
		if t.Name == "" {
			return false, fmt.Errorf("%w: primitive without a name", ErrMalformedType)
		}

		return false, nil
	case m.KindReference, m.KindMutableReference:
		if t.Inner == nil {
			return false, fmt.Errorf("%w: reference without referent", ErrMalformedType)
		}

		return reachesInternal(*t.Inner, analyzed, structs, visiting)
	case m.KindVector:
		if t.Inner == nil {
			return false, fmt.Errorf("%w: vector without element type", ErrMalformedType)
		}

		return reachesInternal(*t.Inner, analyzed, structs, visiting)
	case m.KindStruct:
		ref := t.StructRef()

		def, ok := structs.LookupStruct(ref)
		if !ok {
			return false, fmt.Errorf("%w: unknown struct %s", ErrMalformedType, ref)
		}

		if def.Internal && def.Module == analyzed {
			return true, nil
		}

		if visiting[ref] {
			return false, nil
		}

		visiting[ref] = true
		defer delete(visiting, ref)

		for _, field := range def.Fields {
			internal, err := reachesInternal(field.Type, analyzed, structs, visiting)
			if err != nil {
				return false, fmt.Errorf("field %s.%s: %w", ref, field.Name, err)
			}

			if internal {
				return true, nil
			}
		}

		return false, nil
	case m.KindInvalid:
	}

	return false, fmt.Errorf("%w: unrecognized kind %d", ErrMalformedType, t.Kind)
}

// isWellFormedNonReference reports whether a declared return can never carry
// a reference out of the function.
func isWellFormedNonReference(t m.TypeSignature, structs StructIndex) bool {
	switch t.Kind {
	case m.KindPrimitive:
		return t.Name != ""
	case m.KindStruct:
		_, ok := structs.LookupStruct(t.StructRef())
		return ok
	case m.KindVector:
		return t.Inner != nil && isWellFormedNonReference(*t.Inner, structs)
	case m.KindReference, m.KindMutableReference, m.KindInvalid:
	}

	return false
}
