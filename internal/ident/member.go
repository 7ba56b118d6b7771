// Package ident gives fields, methods, and constructors a stable identity
// that survives generic instantiation and loader re-entry, and defines the
// immutable allow-list (CasPolicy) that is checked against that identity.
//
// This is component A of the specification: member identity & policy.
package ident

import (
	"golang.org/x/text/cases"

	"github.com/modguard/modguard/internal/vm"
)

// MemberID uniquely identifies a field, method, or constructor across
// loader instances and generic instantiations. Two reflective handles
// produce equal MemberIDs iff they refer to the same declaration in the
// same module, and a closed generic instantiation collapses to the
// identity of its open definition.
type MemberID struct {
	Assembly vm.AssemblyID
	Token    vm.Token
}

// FromField returns the identity of a field.
func FromField(f vm.FieldRef) MemberID {
	return MemberID{Assembly: f.Type.Assembly, Token: f.Token}
}

// FromMethod returns the identity of a method or constructor, collapsing
// through GenericMethodDef when the ref is a closed generic instantiation.
func FromMethod(m vm.MethodRef) MemberID {
	def := m
	for def.GenericMethodDef != nil {
		def = *def.GenericMethodDef
	}
	return MemberID{Assembly: def.Type.Assembly, Token: def.Token}
}

var caseFolder = cases.Fold()

// normalizeName case-folds an identifier the same way across platforms,
// matching the teacher's locale-aware string handling in its effect
// environment rather than relying on strings.ToLower's ASCII-only fold.
func normalizeName(s string) string {
	return caseFolder.String(s)
}

// SignatureText renders a stable, locale-independent signature string for
// a method, used by TypeBinding's name+signature refinement and by the
// shim table's signature-hash lookup. Generic instantiations render
// through their open definition so that generic signatures compare as
// text regardless of which closed instantiation produced them.
func SignatureText(m vm.MethodRef) string {
	def := m
	if m.GenericMethodDef != nil {
		def = *m.GenericMethodDef
	}
	s := normalizeName(def.Type.Name) + "::" + normalizeName(def.Name) + "("
	for i, p := range def.Params {
		if i > 0 {
			s += ","
		}
		if p.ByRef {
			s += "ref "
		}
		s += normalizeName(p.TypeName)
	}
	s += ")"
	return s
}
