package shim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modguard/modguard/internal/vm"
)

func TestLookup_MatchesClosedGenericAgainstOpenShim(t *testing.T) {
	tbl := NewTable()
	listType := vm.TypeRef{Token: 1, Name: "List<T>", Kind: vm.KindClass}
	open := vm.MethodRef{Type: listType, Token: 5, Name: "Sort", Params: []vm.ParamRef{{TypeName: "T"}}}
	shimTarget := vm.MethodRef{Token: 6, Name: "SafeSort"}
	tbl.Register(open, shimTarget)

	closed := vm.MethodRef{
		Type:             vm.TypeRef{Token: 1, Name: "List<Int32>", Kind: vm.KindClass},
		Token:            99,
		Name:             "Sort",
		Params:           []vm.ParamRef{{TypeName: "Int32"}},
		GenericMethodDef: &open,
	}

	got, ok := tbl.Lookup(closed)
	require.True(t, ok)
	require.Equal(t, shimTarget.Name, got.Name)
}

func TestDefaultShims_CoverFileIO(t *testing.T) {
	tbl := NewTable()
	RegisterDefaults(tbl, vm.NewAssemblyID("modguard.shims"))

	fileType := vm.TypeRef{Token: 1, Name: "File", Kind: vm.KindClass, Sealed: true}
	writeAllBytes := vm.MethodRef{Type: fileType, Token: 10, Name: "WriteAllBytes", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "String"}, {TypeName: "Byte[]"}}}

	_, ok := tbl.Lookup(writeAllBytes)
	require.True(t, ok, "File.WriteAllBytes must have a registered shim")
}

func TestRebindGenericArgs_PreservesOriginalArgsInOrder(t *testing.T) {
	shimTarget := vm.MethodRef{Name: "Shim"}
	original := vm.MethodRef{
		Name:        "Original",
		GenericArgs: []vm.TypeRef{{Name: "Declaring"}, {Name: "MethodArg"}},
	}

	rebound := RebindGenericArgs(shimTarget, original)
	require.Equal(t, []vm.TypeRef{{Name: "Declaring"}, {Name: "MethodArg"}}, rebound.GenericArgs)
}
