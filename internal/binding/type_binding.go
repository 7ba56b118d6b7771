package binding

import (
	"golang.org/x/text/cases"

	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

// TypeBinding is a mutable builder that collects members of a single
// target type (and, recursively, its nested types) under an
// Accessibility level. See spec §4.B for the exact inclusion rule.
type TypeBinding struct {
	universe TypeUniverse
	target   vm.TypeRef
	level    Accessibility

	fields  []vm.FieldRef
	methods []vm.MethodRef
	ctors   []vm.MethodRef
}

// NewTypeBinding constructs and immediately populates a TypeBinding for
// target at accessibility level, following the inclusion rule in spec
// §4.B: empty at None; otherwise every field/ctor/method whose visibility
// is at most level, plus every interface-implementation method
// unconditionally, plus recursively every nested type whose effective
// accessibility (computed per the clamping rule below) is non-None.
func NewTypeBinding(universe TypeUniverse, target vm.TypeRef, level Accessibility) *TypeBinding {
	b := &TypeBinding{universe: universe, target: target, level: level}
	if level == None {
		return b
	}
	b.collect(target, level)
	return b
}

func (b *TypeBinding) collect(t vm.TypeRef, level Accessibility) {
	ti, ok := b.universe.Lookup(t)
	if !ok {
		return
	}

	for _, f := range ti.Fields {
		if visibilityAtMost(f.Visibility, level) {
			b.fields = append(b.fields, f)
		}
	}
	for _, c := range ti.Constructors {
		if visibilityAtMost(c.Visibility, level) {
			b.ctors = append(b.ctors, c)
		}
	}
	for _, m := range ti.Methods {
		if m.IsInterfaceImpl || visibilityAtMost(m.Visibility, level) {
			b.methods = append(b.methods, m)
		}
	}

	for _, nested := range ti.NestedTypes {
		effective := effectiveAccessibility(nested, level)
		if effective == None {
			continue
		}
		b.collect(nested, effective)
	}
}

// effectiveAccessibility implements spec §4.B's nested-type clamping
// rule: if the nested type's own declared visibility is tighter than the
// parent's level L and L != Private, the effective level is clamped to
// min(L, Public) for class/interface nested types and None for any other
// nested-type kind; otherwise the nested type simply inherits L.
func effectiveAccessibility(nested vm.TypeRef, parentLevel Accessibility) Accessibility {
	nestedAsLevel := visibilityAsAccessibility(nested.Visibility)
	tighter := nestedAsLevel > parentLevel

	if !tighter || parentLevel == Private {
		return parentLevel
	}

	switch nested.Kind {
	case vm.KindClass, vm.KindInterface:
		if parentLevel < Public {
			return parentLevel
		}
		return Public
	default:
		return None
	}
}

func visibilityAsAccessibility(v vm.Visibility) Accessibility {
	switch v {
	case vm.VisPublic:
		return Public
	case vm.VisProtected:
		return Protected
	default:
		return Private
	}
}

// Members returns a snapshot of every collected member as a
// ident.MemberHandle, ready for ident.CasPolicyBuilder.Allow.
func (b *TypeBinding) Members() []ident.MemberHandle {
	handles := make([]ident.MemberHandle, 0, len(b.fields)+len(b.methods)+len(b.ctors))
	for _, f := range b.fields {
		handles = append(handles, ident.FieldHandle(f))
	}
	for _, m := range b.methods {
		handles = append(handles, ident.MethodHandle(m))
	}
	for _, c := range b.ctors {
		handles = append(handles, ident.MethodHandle(c))
	}
	return handles
}

// Describe renders one line per collected member in "kind name" form, for
// diagnostic listings (`modguard repl`'s bind command) that want names
// rather than opaque MemberHandles.
func (b *TypeBinding) Describe() []string {
	lines := make([]string, 0, len(b.fields)+len(b.methods)+len(b.ctors))
	for _, f := range b.fields {
		lines = append(lines, "field "+f.Name)
	}
	for _, m := range b.methods {
		lines = append(lines, "method "+m.Name)
	}
	for range b.ctors {
		lines = append(lines, "constructor "+b.target.Name)
	}
	return lines
}

// WithField refines the binding to a single named field, failing if zero
// or more than one field matches.
func (b *TypeBinding) WithField(name string) (*TypeBinding, error) {
	var matches []vm.FieldRef
	for _, f := range b.fields {
		if f.Name == name {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return nil, notFoundError("field", name, b.target.Name)
	}
	if len(matches) > 1 {
		return nil, ambiguousError("field", name, b.target.Name, len(matches))
	}
	return &TypeBinding{universe: b.universe, target: b.target, level: b.level, fields: matches}, nil
}

// WithConstructor refines the binding to a single constructor. When
// signature is empty, it behaves as a name-only (arity-blind) match and
// fails if more than one constructor qualifies; when signature is
// supplied it disambiguates by rendered parameter signature and returns
// the unique match.
func (b *TypeBinding) WithConstructor(signature ...string) (*TypeBinding, error) {
	matches := filterBySignature(b.ctors, signature)
	if len(matches) == 0 {
		return nil, notFoundError("constructor", b.target.Name, b.target.Name)
	}
	if len(matches) > 1 {
		return nil, ambiguousError("constructor", b.target.Name, b.target.Name, len(matches))
	}
	return &TypeBinding{universe: b.universe, target: b.target, level: b.level, ctors: matches}, nil
}

// WithMethod refines the binding to a single method, by name alone or by
// name plus a rendered signature (ident.SignatureText-comparable form,
// e.g. "Type::Name(ParamType,...)").
func (b *TypeBinding) WithMethod(name string, signature ...string) (*TypeBinding, error) {
	var byName []vm.MethodRef
	for _, m := range b.methods {
		if m.Name == name {
			byName = append(byName, m)
		}
	}
	matches := filterBySignature(byName, signature)
	if len(matches) == 0 {
		return nil, notFoundError("method", name, b.target.Name)
	}
	if len(matches) > 1 {
		return nil, ambiguousError("method", name, b.target.Name, len(matches))
	}
	return &TypeBinding{universe: b.universe, target: b.target, level: b.level, methods: matches}, nil
}

var signatureCaser = cases.Fold()

// filterBySignature narrows candidates to those whose rendered signature
// text matches, when a signature constraint was supplied; otherwise it
// returns candidates unchanged. The supplied signature is case-folded the
// same way ident.SignatureText folds its output.
func filterBySignature(candidates []vm.MethodRef, signature []string) []vm.MethodRef {
	if len(signature) == 0 {
		return candidates
	}
	want := signatureCaser.String(signature[0])
	var out []vm.MethodRef
	for _, m := range candidates {
		if ident.SignatureText(m) == want {
			out = append(out, m)
		}
	}
	return out
}

func notFoundError(kind, name, typeName string) error {
	return errors.New("binding", errors.BND001,
		kind+" '"+name+"' not found on type "+typeName, map[string]any{
			"kind": kind, "name": name, "type": typeName,
		})
}

func ambiguousError(kind, name, typeName string, count int) error {
	return errors.New("binding", errors.BND002,
		kind+" '"+name+"' is ambiguous on type "+typeName+"; supply a signature to disambiguate",
		map[string]any{"kind": kind, "name": name, "type": typeName, "matches": count})
}
