package ident

import "github.com/modguard/modguard/internal/vm"

// MemberHandle is the minimal shape a TypeBinding hands back to a
// CasPolicyBuilder: enough to compute a MemberID without internal/ident
// importing internal/binding (which would be a cycle, since binding
// consumes ident.MemberID for its own bookkeeping).
type MemberHandle interface {
	MemberID() MemberID
}

// fieldHandle and methodHandle let callers in internal/binding hand back
// concrete vm refs without this package needing to know about binding's
// builder internals.
type fieldHandle struct{ f vm.FieldRef }

func (h fieldHandle) MemberID() MemberID { return FromField(h.f) }

type methodHandle struct{ m vm.MethodRef }

func (h methodHandle) MemberID() MemberID { return FromMethod(h.m) }

// FieldHandle wraps a field ref as a MemberHandle.
func FieldHandle(f vm.FieldRef) MemberHandle { return fieldHandle{f} }

// MethodHandle wraps a method ref as a MemberHandle.
func MethodHandle(m vm.MethodRef) MemberHandle { return methodHandle{m} }

// CasPolicy is an immutable set of MemberIDs. It is a pure value, safe to
// share across threads and loader instances once built.
type CasPolicy struct {
	members map[MemberID]struct{}
}

// Contains reports whether id is present in the policy.
func (p CasPolicy) Contains(id MemberID) bool {
	if p.members == nil {
		return false
	}
	_, ok := p.members[id]
	return ok
}

// ContainsField reports whether the given field is allowed.
func (p CasPolicy) ContainsField(f vm.FieldRef) bool {
	return p.Contains(FromField(f))
}

// ContainsMethod reports whether the given method (or its open generic
// definition) is allowed.
func (p CasPolicy) ContainsMethod(m vm.MethodRef) bool {
	return p.Contains(FromMethod(m))
}

// Size returns the number of distinct members in the policy, mostly
// useful for diagnostics (`modguard policy build` summary output).
func (p CasPolicy) Size() int { return len(p.members) }

// MemberIDs returns every member this policy allows, in no particular
// order. Exists for serialization (`modguard policy build --out`) --
// nothing inside this package needs it, since Contains is the only
// check the rest of the repo performs.
func (p CasPolicy) MemberIDs() []MemberID {
	ids := make([]MemberID, 0, len(p.members))
	for id := range p.members {
		ids = append(ids, id)
	}
	return ids
}

// CasPolicyBuilder accumulates MemberIDs and produces an immutable
// CasPolicy.
type CasPolicyBuilder struct {
	members map[MemberID]struct{}
}

// NewCasPolicyBuilder returns an empty builder.
func NewCasPolicyBuilder() *CasPolicyBuilder {
	return &CasPolicyBuilder{members: make(map[MemberID]struct{})}
}

// WithDefaultSandbox seeds the builder with the curated list of
// universally-safe members (see default_sandbox.go).
func (b *CasPolicyBuilder) WithDefaultSandbox() *CasPolicyBuilder {
	for _, m := range DefaultSandboxMembers() {
		b.members[m] = struct{}{}
	}
	return b
}

// Allow unions every member a TypeBinding-like collection exposes into
// the policy under construction.
func (b *CasPolicyBuilder) Allow(handles []MemberHandle) *CasPolicyBuilder {
	for _, h := range handles {
		b.members[h.MemberID()] = struct{}{}
	}
	return b
}

// AllowMember adds a single already-computed MemberID directly; used by
// tests that don't want to build a full TypeBinding.
func (b *CasPolicyBuilder) AllowMember(id MemberID) *CasPolicyBuilder {
	b.members[id] = struct{}{}
	return b
}

// Build freezes the accumulated set into an immutable CasPolicy.
func (b *CasPolicyBuilder) Build() CasPolicy {
	frozen := make(map[MemberID]struct{}, len(b.members))
	for id := range b.members {
		frozen[id] = struct{}{}
	}
	return CasPolicy{members: frozen}
}
