package ident

import "github.com/modguard/modguard/internal/vm"

// sandboxAssembly is minted once per process. vm.AssemblyID is a per-load
// identity (see vm.NewAssemblyID), so computing it fresh on every
// DefaultSandboxMembers call would make the returned MemberIDs compare
// unequal to each other from one call to the next -- a single package-level
// value keeps every reference to "corelib" within a process self-consistent.
var sandboxAssembly = vm.NewAssemblyID("corelib")

// DefaultSandboxMembers returns the curated list of members considered
// universally safe regardless of policy: boxing/conversion of primitive
// values, read access to a handful of harmless collection members, and
// nothing that touches I/O, the filesystem, process control, or
// reflection-emit. This is the analogue of a curated "safe subset of the
// standard library" -- since this repo has no real stdlib metadata to
// enumerate, the subset is modeled directly as a fixed table rather than
// computed from reflection.
//
// Deliberately excluded (must go through an explicit policy grant, never
// the default sandbox): anything shaped like file I/O, process spawning,
// raw memory access, or dynamic code generation. internal/shim exists
// precisely to intercept attempts to reach those through any path.
func DefaultSandboxMembers() []MemberID {
	primitiveBoxing := vm.TypeRef{Assembly: sandboxAssembly, Token: 1, Name: "Convert", Kind: vm.KindClass, Sealed: true}
	objectType := vm.TypeRef{Assembly: sandboxAssembly, Token: 2, Name: "Object", Kind: vm.KindClass}
	stringType := vm.TypeRef{Assembly: sandboxAssembly, Token: 3, Name: "String", Kind: vm.KindClass, Sealed: true}

	safe := []vm.MethodRef{
		{Type: primitiveBoxing, Token: 101, Name: "ToInt32", Visibility: vm.VisPublic, IsStatic: true},
		{Type: primitiveBoxing, Token: 102, Name: "ToString", Visibility: vm.VisPublic, IsStatic: true},
		{Type: objectType, Token: 103, Name: "GetHashCode", Visibility: vm.VisPublic, IsVirtual: true},
		{Type: objectType, Token: 104, Name: "Equals", Visibility: vm.VisPublic, IsVirtual: true},
		{Type: objectType, Token: 105, Name: "ToString", Visibility: vm.VisPublic, IsVirtual: true},
		{Type: stringType, Token: 106, Name: "Concat", Visibility: vm.VisPublic, IsStatic: true},
		{Type: stringType, Token: 107, Name: "Length", Visibility: vm.VisPublic},
	}

	ids := make([]MemberID, 0, len(safe))
	for _, m := range safe {
		ids = append(ids, FromMethod(m))
	}
	return ids
}
