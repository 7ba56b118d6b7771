package stackalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/vm"
)

func noFields(vm.TypeRef) []vm.TypeRef { return nil }

func TestIsUnmanaged_PrimitivesAndEnums(t *testing.T) {
	require.True(t, IsUnmanaged(vm.TypeRef{Name: "Int32"}, noFields))
	require.True(t, IsUnmanaged(vm.TypeRef{Name: "Color", Kind: vm.KindEnum}, noFields))
	require.False(t, IsUnmanaged(vm.TypeRef{Name: "Widget", Kind: vm.KindClass}, noFields))
}

func TestIsUnmanaged_StructRecursesIntoFields(t *testing.T) {
	point := vm.TypeRef{Name: "Point", Kind: vm.KindStruct}
	fields := func(t vm.TypeRef) []vm.TypeRef {
		if t == point {
			return []vm.TypeRef{{Name: "Int32"}, {Name: "Int32"}}
		}
		return nil
	}
	require.True(t, IsUnmanaged(point, fields))

	badStruct := vm.TypeRef{Name: "Boxed", Kind: vm.KindStruct}
	badFields := func(t vm.TypeRef) []vm.TypeRef {
		if t == badStruct {
			return []vm.TypeRef{{Name: "Widget", Kind: vm.KindClass}}
		}
		return nil
	}
	require.False(t, IsUnmanaged(badStruct, badFields))
}

func TestVerifyPattern_AcceptsLocallocLdcNewobjSpan(t *testing.T) {
	instrs := []rewrite.Instr{
		{Op: rewrite.Localloc},
		{Op: rewrite.Ldc, Operand: 4},
		{Op: rewrite.Newobj, Operand: SpanCtor{ElemType: vm.TypeRef{Name: "Int32"}}},
	}
	size, ok, err := VerifyPattern(instrs, 0, noFields)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 4, size)
}

func TestVerifyPattern_RejectsManagedElementType(t *testing.T) {
	instrs := []rewrite.Instr{
		{Op: rewrite.Localloc},
		{Op: rewrite.Ldc, Operand: 4},
		{Op: rewrite.Newobj, Operand: SpanCtor{ElemType: vm.TypeRef{Name: "Widget", Kind: vm.KindClass}}},
	}
	_, ok, err := VerifyPattern(instrs, 0, noFields)
	require.Error(t, err)
	require.False(t, ok)
}

func TestVerifyPattern_RejectsNonSpanNewobj(t *testing.T) {
	instrs := []rewrite.Instr{
		{Op: rewrite.Localloc},
		{Op: rewrite.Ldc, Operand: 4},
		{Op: rewrite.Newobj, Operand: vm.MethodRef{Name: "SomethingElse"}},
	}
	_, ok, err := VerifyPattern(instrs, 0, noFields)
	require.Error(t, err)
	require.False(t, ok)
}

func TestInstrument_InsertsLengthCheckBeforeNewobj(t *testing.T) {
	body := rewrite.MethodBody{
		Instrs: []rewrite.Instr{
			{Offset: 0, Op: rewrite.Localloc},
			{Offset: 1, Op: rewrite.Ldc, Operand: 4},
			{Offset: 2, Op: rewrite.Newobj, Operand: SpanCtor{ElemType: vm.TypeRef{Name: "Int32"}}},
			{Offset: 3, Op: rewrite.Ret},
		},
	}
	var rw rewrite.Rewriter
	rw.Start(body)
	Instrument(&rw, 4)
	rw.Advance(true) // Ret

	out, err := rw.Finish()
	require.NoError(t, err)

	var sawThrow, sawNewobj bool
	for _, instr := range out.Instrs {
		if instr.Op == rewrite.Throw {
			sawThrow = true
		}
		if instr.Op == rewrite.Newobj {
			sawNewobj = true
			require.True(t, sawThrow, "the length check must precede the Span constructor")
		}
	}
	require.True(t, sawThrow)
	require.True(t, sawNewobj)
}

// TestInstrument_ComparesByteCountForEqualityNotTruthiness pins down the
// actual shape of the guard: the byte count localloc consumes must be
// spilled before localloc runs, reloaded after length*elemSize is
// computed, compared with Ceq (not merely branched on as a truthy
// product), and the branch that follows the comparison must be the one
// guarding the throw.
func TestInstrument_ComparesByteCountForEqualityNotTruthiness(t *testing.T) {
	body := rewrite.MethodBody{
		Instrs: []rewrite.Instr{
			{Offset: 0, Op: rewrite.Localloc},
			{Offset: 1, Op: rewrite.Ldc, Operand: 4},
			{Offset: 2, Op: rewrite.Newobj, Operand: SpanCtor{ElemType: vm.TypeRef{Name: "Int32"}}},
			{Offset: 3, Op: rewrite.Ret},
		},
	}
	var rw rewrite.Rewriter
	rw.Start(body)
	Instrument(&rw, 4)
	rw.Advance(true) // Ret

	out, err := rw.Finish()
	require.NoError(t, err)

	var ops []rewrite.Opcode
	for _, instr := range out.Instrs {
		ops = append(ops, instr.Op)
	}

	locallocAt := indexOf(t, ops, rewrite.Localloc)
	stlocAt := indexOf(t, ops, rewrite.Stloc)
	require.Less(t, stlocAt, locallocAt, "the byte count must be spilled before localloc consumes it")
	require.Equal(t, out.Instrs[stlocAt-1].Op, rewrite.Dup, "the byte count must be duplicated, not moved, before the spill")

	mulAt := indexOf(t, ops, rewrite.Mul)
	ldlocAt := indexOf(t, ops, rewrite.Ldloc)
	ceqAt := indexOf(t, ops, rewrite.Ceq)
	require.Less(t, mulAt, ldlocAt, "length*elemSize must be computed before the saved byte count is reloaded")
	require.Less(t, ldlocAt, ceqAt, "the reloaded byte count must feed directly into the comparison")
	require.Equal(t, out.Instrs[stlocAt].Operand, out.Instrs[ldlocAt].Operand,
		"the spill and reload must target the same local slot")

	require.Equal(t, rewrite.Brtrue, out.Instrs[ceqAt+1].Op, "the branch must test the Ceq result, not the bare product")

	newobjAt := indexOf(t, ops, rewrite.Newobj)
	require.Less(t, ceqAt, newobjAt)
}

func indexOf(t *testing.T, ops []rewrite.Opcode, op rewrite.Opcode) int {
	t.Helper()
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	t.Fatalf("opcode %v not found in %v", op, ops)
	return -1
}
