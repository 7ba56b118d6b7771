package binding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

func sharedClassUniverse() (TypeUniverse, vm.TypeRef, vm.TypeRef) {
	asm := vm.NewAssemblyID("plugin")

	nested := vm.TypeRef{Assembly: asm, Token: 2, Name: "SharedClass.SharedNested", Kind: vm.KindClass, Visibility: vm.VisPublic}
	shared := vm.TypeRef{Assembly: asm, Token: 1, Name: "SharedClass", Kind: vm.KindClass, Visibility: vm.VisPublic}

	universe := NewTypeUniverse([]TypeInfo{
		{
			Type: shared,
			Fields: []vm.FieldRef{
				{Type: shared, Token: 10, Name: "AllowedStaticField", Visibility: vm.VisPublic, Static: true},
				{Type: shared, Token: 11, Name: "AllowedField", Visibility: vm.VisPublic},
				{Type: shared, Token: 12, Name: "DeniedStaticField", Visibility: vm.VisPrivate, Static: true},
			},
			Constructors: []vm.MethodRef{
				{Type: shared, Token: 20, Name: ".ctor", Visibility: vm.VisPublic, IsCtor: true, Params: nil},
				{Type: shared, Token: 21, Name: ".ctor", Visibility: vm.VisPrivate, IsCtor: true,
					Params: []vm.ParamRef{{TypeName: "String"}}},
			},
			Methods: []vm.MethodRef{
				{Type: shared, Token: 30, Name: "InterfaceMethod", Visibility: vm.VisPrivate, IsInterfaceImpl: true},
				{Type: shared, Token: 31, Name: "VirtualMethod", Visibility: vm.VisPublic, IsVirtual: true},
			},
			NestedTypes: []vm.TypeRef{nested},
		},
		{
			Type: nested,
			Constructors: []vm.MethodRef{
				{Type: nested, Token: 40, Name: ".ctor", Visibility: vm.VisPublic, IsCtor: true},
			},
			Methods: []vm.MethodRef{
				{Type: nested, Token: 41, Name: "VirtualMethod", Visibility: vm.VisPublic, IsVirtual: true},
			},
		},
	})

	return universe, shared, nested
}

func TestTypeBinding_NoneIsEmpty(t *testing.T) {
	universe, shared, _ := sharedClassUniverse()
	b := NewTypeBinding(universe, shared, None)
	require.Empty(t, b.Members())
}

func TestTypeBinding_PublicIncludesInterfaceImplRegardlessOfVisibility(t *testing.T) {
	universe, shared, _ := sharedClassUniverse()
	b := NewTypeBinding(universe, shared, Public)

	_, err := b.WithMethod("InterfaceMethod")
	require.NoError(t, err, "interface-implementation methods are always includable")
}

func TestTypeBinding_PublicExcludesPrivateStaticField(t *testing.T) {
	universe, shared, _ := sharedClassUniverse()
	b := NewTypeBinding(universe, shared, Public)

	_, err := b.WithField("DeniedStaticField")
	require.Error(t, err)
}

func TestTypeBinding_PublicRecursesIntoPublicNestedType(t *testing.T) {
	universe, shared, nested := sharedClassUniverse()
	b := NewTypeBinding(universe, shared, Public)

	// The parent binding must carry the nested type's own VirtualMethod,
	// since the nested type's effective accessibility at parent level
	// Public is Public.
	var ids []ident.MemberID
	for _, h := range b.Members() {
		ids = append(ids, h.MemberID())
	}
	require.Contains(t, ids, ident.MemberID{Assembly: nested.Assembly, Token: 41})

	// Binding the nested type directly at Public reaches the same method.
	nestedBinding := NewTypeBinding(universe, mustNestedType(universe), Public)
	_, err := nestedBinding.WithMethod("VirtualMethod")
	require.NoError(t, err)
}

func mustNestedType(u TypeUniverse) vm.TypeRef {
	ti, ok := u.FindByName("SharedClass.SharedNested")
	if !ok {
		panic("nested type missing from test universe")
	}
	return ti.Type
}

func TestTypeBinding_WithConstructor_DisambiguatesBySignature(t *testing.T) {
	universe, shared, _ := sharedClassUniverse()
	b := NewTypeBinding(universe, shared, Private)

	_, err := b.WithConstructor()
	require.Error(t, err, "two constructors exist; name-only match must be ambiguous")

	refined, err := b.WithConstructor("SharedClass::.ctor(String)")
	require.NoError(t, err)
	require.Len(t, refined.Members(), 1)
}

func TestEffectiveAccessibility_ClampsClassNestedType(t *testing.T) {
	privateNested := vm.TypeRef{Kind: vm.KindClass, Visibility: vm.VisPrivate}
	require.Equal(t, Public, effectiveAccessibility(privateNested, Protected))
	require.Equal(t, Private, effectiveAccessibility(privateNested, Private))
}

func TestEffectiveAccessibility_NoneForNonClassInterfaceNestedKinds(t *testing.T) {
	privateStruct := vm.TypeRef{Kind: vm.KindStruct, Visibility: vm.VisPrivate}
	require.Equal(t, None, effectiveAccessibility(privateStruct, Protected))
}

func TestParseAccessibility(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Accessibility
	}{
		{"public", Public}, {"Protected", Protected}, {"PRIVATE", Private}, {"none", None},
	} {
		got, err := ParseAccessibility(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := ParseAccessibility("bogus")
	require.Error(t, err)
}
