package ident

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/modguard/modguard/internal/vm"
)

func TestFromMethod_CollapsesClosedGenerics(t *testing.T) {
	asm := vm.NewAssemblyID("corelib")
	listType := vm.TypeRef{Assembly: asm, Token: 10, Name: "List<T>", Kind: vm.KindClass}

	open := vm.MethodRef{Type: listType, Token: 99, Name: "Add", Visibility: vm.VisPublic}

	closedInt := vm.MethodRef{
		Type:             vm.TypeRef{Assembly: asm, Token: 10, Name: "List<Int32>", Kind: vm.KindClass},
		Token:            9999, // distinct token for the instantiation
		Name:             "Add",
		GenericMethodDef: &open,
	}
	closedString := vm.MethodRef{
		Type:             vm.TypeRef{Assembly: asm, Token: 10, Name: "List<String>", Kind: vm.KindClass},
		Token:            8888,
		Name:             "Add",
		GenericMethodDef: &open,
	}

	idInt := FromMethod(closedInt)
	idString := FromMethod(closedString)
	idOpen := FromMethod(open)

	require.Equal(t, idOpen, idInt, "List<int>.Add must collapse to the open definition's identity")
	require.Equal(t, idOpen, idString, "List<string>.Add must collapse to the open definition's identity")

	if diff := cmp.Diff(idInt, idString); diff != "" {
		t.Fatalf("closed generic instantiations diverged in identity (-int +string):\n%s", diff)
	}
}

func TestFromMethod_DistinctDeclarationsAreDistinct(t *testing.T) {
	asm := vm.NewAssemblyID("corelib")
	typ := vm.TypeRef{Assembly: asm, Token: 10, Name: "T", Kind: vm.KindClass}

	a := vm.MethodRef{Type: typ, Token: 1, Name: "Foo"}
	b := vm.MethodRef{Type: typ, Token: 2, Name: "Bar"}

	require.NotEqual(t, FromMethod(a), FromMethod(b))
}

func TestCasPolicy_DefaultSandboxIsNotEmptyButExcludesIO(t *testing.T) {
	p := NewCasPolicyBuilder().WithDefaultSandbox().Build()
	require.Greater(t, p.Size(), 0)

	asm := vm.NewAssemblyID("corelib")
	fileType := vm.TypeRef{Assembly: asm, Token: 55, Name: "File", Kind: vm.KindClass, Sealed: true}
	writeAll := vm.MethodRef{Type: fileType, Token: 200, Name: "WriteAllBytes", Visibility: vm.VisPublic, IsStatic: true}

	require.False(t, p.ContainsMethod(writeAll), "default sandbox must never include file I/O")
}

func TestSignatureText_GenericsCompareAsText(t *testing.T) {
	asm := vm.NewAssemblyID("corelib")
	listType := vm.TypeRef{Assembly: asm, Token: 10, Name: "List<T>", Kind: vm.KindClass}
	open := vm.MethodRef{
		Type:   listType,
		Token:  99,
		Name:   "Add",
		Params: []vm.ParamRef{{TypeName: "T"}},
	}
	closed := vm.MethodRef{
		Type:             vm.TypeRef{Assembly: asm, Token: 10, Name: "List<Int32>", Kind: vm.KindClass},
		Token:            9999,
		Name:             "Add",
		Params:           []vm.ParamRef{{TypeName: "Int32"}},
		GenericMethodDef: &open,
	}

	require.Equal(t, SignatureText(open), SignatureText(closed))
}
