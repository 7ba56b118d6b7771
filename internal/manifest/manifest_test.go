package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modguard/modguard/internal/binding"
	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/vm"
)

// sharedClassUniverse is a reduced form of internal/binding's fixture of
// the same name: one public class with a public static field, a private
// static field, and a virtual method overridden on a nested type.
func sharedClassUniverse() (binding.TypeUniverse, vm.TypeRef) {
	asm := vm.NewAssemblyID("plugin")
	nested := vm.TypeRef{Assembly: asm, Token: 2, Name: "SharedClass.SharedNested", Kind: vm.KindClass, Visibility: vm.VisPublic}
	shared := vm.TypeRef{Assembly: asm, Token: 1, Name: "SharedClass", Kind: vm.KindClass, Visibility: vm.VisPublic}

	u := binding.NewTypeUniverse([]binding.TypeInfo{
		{
			Type: shared,
			Fields: []vm.FieldRef{
				{Type: shared, Token: 10, Name: "AllowedStaticField", Visibility: vm.VisPublic, Static: true},
				{Type: shared, Token: 12, Name: "DeniedStaticField", Visibility: vm.VisPrivate, Static: true},
			},
			Methods: []vm.MethodRef{
				{Type: shared, Token: 31, Name: "VirtualMethod", Visibility: vm.VisPublic, IsVirtual: true},
			},
			NestedTypes: []vm.TypeRef{nested},
		},
		{
			Type: nested,
			Methods: []vm.MethodRef{
				{Type: nested, Token: 41, Name: "VirtualMethod", Visibility: vm.VisPublic, IsVirtual: true},
			},
		},
	})
	return u, shared
}

func TestValidate_RejectsWrongSchema(t *testing.T) {
	m := &Manifest{Schema: "bogus/v1"}
	err := m.Validate()
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	require.Equal(t, errors.POL002, rep.Code)
}

func TestValidate_RejectsDuplicateTypeEntries(t *testing.T) {
	m := &Manifest{
		Schema: SchemaVersion,
		Allow: []AllowEntry{
			{Type: "SharedClass", Accessibility: "public"},
			{Type: "SharedClass", Accessibility: "private"},
		},
	}
	require.Error(t, m.Validate())
}

func TestValidate_RejectsUnknownMemberKind(t *testing.T) {
	m := &Manifest{
		Schema: SchemaVersion,
		Allow: []AllowEntry{
			{Type: "SharedClass", Accessibility: "public", Members: []MemberEntry{{Kind: "property", Name: "X"}}},
		},
	}
	require.Error(t, m.Validate())
}

func TestCompile_WholeTypeEntryIncludesPublicMembers(t *testing.T) {
	universe, shared := sharedClassUniverse()
	m := &Manifest{
		Schema: SchemaVersion,
		Allow:  []AllowEntry{{Type: "SharedClass", Accessibility: "public"}},
	}
	policy, err := m.Compile(universe)
	require.NoError(t, err)

	allowed := vm.FieldRef{Type: shared, Token: 10, Name: "AllowedStaticField", Visibility: vm.VisPublic, Static: true}
	require.True(t, policy.ContainsField(allowed))
}

func TestCompile_MemberRefinementNarrowsToOneField(t *testing.T) {
	universe, _ := sharedClassUniverse()
	m := &Manifest{
		Schema: SchemaVersion,
		Allow: []AllowEntry{
			{
				Type:          "SharedClass",
				Accessibility: "private",
				Members:       []MemberEntry{{Kind: "field", Name: "AllowedStaticField"}},
			},
		},
	}
	policy, err := m.Compile(universe)
	require.NoError(t, err)
	require.Equal(t, 1, policy.Size())
}

func TestCompile_UnknownTypeIsPOL001(t *testing.T) {
	universe, _ := sharedClassUniverse()
	m := &Manifest{
		Schema: SchemaVersion,
		Allow:  []AllowEntry{{Type: "DoesNotExist", Accessibility: "public"}},
	}
	_, err := m.Compile(universe)
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	require.Equal(t, errors.POL001, rep.Code)
}

func TestLoad_RoundTripsThroughYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/policy.yaml"

	m := &Manifest{
		Schema: SchemaVersion,
		Allow:  []AllowEntry{{Type: "SharedClass", Accessibility: "public"}},
	}
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m.Allow, loaded.Allow)
}
