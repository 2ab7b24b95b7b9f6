package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ErrTypeSyntax is returned by ParseType for an unreadable signature.
var ErrTypeSyntax = errors.New("type syntax")

var primitives = map[string]bool{
	m.UnitName: true,
	"bool":     true,
	"u8":       true,
	"u16":      true,
	"u32":      true,
	"u64":      true,
	"u128":     true,
	"u256":     true,
	"address":  true,
	"signer":   true,
}

// ParseType reads a signature such as "u64", "&Coin", "&mut 0x1::coin::Coin"
// or "vector<u8>". Unqualified struct names belong to self.
func ParseType(s string, self m.ModuleID) (m.TypeSignature, error) {
	s = strings.TrimSpace(s)

	switch {
	case s == "", s == "&", s == "&mut":
		return m.TypeSignature{}, fmt.Errorf("%w: incomplete type %q", ErrTypeSyntax, s)
	case strings.HasPrefix(s, "&mut "):
		inner, err := ParseType(strings.TrimPrefix(s, "&mut "), self)
		if err != nil {
			return m.TypeSignature{}, err
		}

		return m.MutableReference(inner), nil
	case strings.HasPrefix(s, "&"):
		inner, err := ParseType(strings.TrimPrefix(s, "&"), self)
		if err != nil {
			return m.TypeSignature{}, err
		}

		return m.Reference(inner), nil
	case strings.HasPrefix(s, "vector<") && strings.HasSuffix(s, ">"):
		elem, err := ParseType(strings.TrimSuffix(strings.TrimPrefix(s, "vector<"), ">"), self)
		if err != nil {
			return m.TypeSignature{}, fmt.Errorf("vector element: %w", err)
		}

		return m.Vector(elem), nil
	case primitives[s]:
		return m.Primitive(s), nil
	case strings.ContainsAny(s, " \t&<>()[],"):
		return m.TypeSignature{}, fmt.Errorf("%w: %q", ErrTypeSyntax, s)
	}

	module, name := splitQualified(s, self)
	if module == "" || name == "" {
		return m.TypeSignature{}, fmt.Errorf("%w: %q", ErrTypeSyntax, s)
	}

	return m.Struct(module, name, false), nil
}

// typeResolver parses the signatures of one module, marking its own
// internal structs.
type typeResolver struct {
	self     m.ModuleID
	internal map[string]bool
}

// parse never fails: an unreadable signature becomes the invalid signature,
// which the analysis degrades to InvRef with a diagnostic.
func (r typeResolver) parse(s, where string) m.TypeSignature {
	t, err := ParseType(s, r.self)
	if err != nil {
		slog.Warn("Malformed type signature", "module", r.self, "at", where, "error", err)
		return m.TypeSignature{}
	}

	r.mark(&t)

	return t
}

func (r typeResolver) mark(t *m.TypeSignature) {
	for t.Inner != nil && (t.IsReference() || t.Kind == m.KindVector) {
		t = t.Inner
	}

	if t.Kind == m.KindStruct && t.Module == r.self {
		t.Internal = r.internal[t.Name]
	}
}
