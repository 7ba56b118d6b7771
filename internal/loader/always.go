package loader

import "github.com/modguard/modguard/internal/vm"

// canCallAlwaysField implements spec §4.G's "always callable" predicate
// for a field: true iff the field is declared in an assembly this loader
// owns, or the policy allows it. Fields have no late-binding ambiguity,
// so (unlike non-sealed virtual methods) this decision is stable for the
// lifetime of the loader and safe to cache permanently.
func (l *Loader) canCallAlwaysField(f vm.FieldRef) bool {
	if l.OwnsAssembly(f.Type.Assembly) {
		return true
	}
	return l.policy.ContainsField(f)
}

// canCallAlwaysMethod implements spec §4.G's "always callable" predicate
// for a method: true iff M is declared in an assembly this loader owns,
// or M is not overridable (non-virtual, final, or declared on a sealed
// type) and the policy allows it. A virtual method on a non-sealed type
// can never cache true, since a derived-type override reachable only at
// runtime might not be in the policy even if the declared method is.
func (l *Loader) canCallAlwaysMethod(m vm.MethodRef) bool {
	if l.OwnsAssembly(m.Type.Assembly) {
		return true
	}
	overridable := m.IsVirtual && !m.IsFinal && !m.Type.Sealed
	if overridable {
		return false
	}
	return l.policy.ContainsMethod(m)
}

// CanCallAlways exposes the "always callable" predicate to external
// callers (host embedders, tests), mirroring CanAccess's forwarding
// pattern. Exactly one of field or method should be non-nil -- the same
// "exactly one populated" shape internal/cliformat's Instruction uses for
// its own operand union, since canCallAlwaysField and canCallAlwaysMethod
// take different reflective handle types and Go has no overloading to
// unify them under one parameter.
func (l *Loader) CanCallAlways(field *vm.FieldRef, method *vm.MethodRef) bool {
	if field != nil {
		return l.canCallAlwaysField(*field)
	}
	if method != nil {
		return l.canCallAlwaysMethod(*method)
	}
	return false
}
