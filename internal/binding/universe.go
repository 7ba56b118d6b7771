package binding

import "github.com/modguard/modguard/internal/vm"

// TypeInfo is everything TypeBinding needs to know about one declared
// type: its identity, its own members, and its nested types. A real host
// populates this from reflection; this repo takes it as an explicit
// input, built once per loaded assembly.
type TypeInfo struct {
	Type         vm.TypeRef
	Fields       []vm.FieldRef
	Methods      []vm.MethodRef
	Constructors []vm.MethodRef
	NestedTypes  []vm.TypeRef
}

// TypeUniverse is the queryable set of types a TypeBinding can enumerate
// over -- a stand-in for live reflective type enumeration.
type TypeUniverse struct {
	byToken map[vm.Token]TypeInfo
}

// NewTypeUniverse builds a universe from a flat list of TypeInfo.
func NewTypeUniverse(types []TypeInfo) TypeUniverse {
	u := TypeUniverse{byToken: make(map[vm.Token]TypeInfo, len(types))}
	for _, ti := range types {
		u.byToken[ti.Type.Token] = ti
	}
	return u
}

// Lookup returns the TypeInfo for a type, if known to this universe.
func (u TypeUniverse) Lookup(t vm.TypeRef) (TypeInfo, bool) {
	ti, ok := u.byToken[t.Token]
	return ti, ok
}

// FindByName is a convenience lookup used by manifest compilation, where
// policy entries name types textually rather than by token.
func (u TypeUniverse) FindByName(name string) (TypeInfo, bool) {
	for _, ti := range u.byToken {
		if ti.Type.Name == name {
			return ti, true
		}
	}
	return TypeInfo{}, false
}
