package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGuardInsertion_BranchIntoFirstSyntheticInstruction exercises the
// canonical field-access guard shape from spec §4.G(ii), with a single
// ldtoken standing in for the two token loads:
//
//	ldsfld <cacheField>; brtrue T; ldtoken <field>; call CheckAccess; T:
//	<original instruction at T>
//
// A pre-existing branch elsewhere in the body that targeted the original
// instruction's offset must, after rewriting, land on the guard's first
// instruction -- not on the original instruction itself -- since skipping
// the guard on a jump would let the check be bypassed on every loop
// back-edge.
func TestGuardInsertion_BranchIntoFirstSyntheticInstruction(t *testing.T) {
	// Body: [0] br -> offset 10 (loop back-edge)  [10] ldfld F  [11] ret
	body := MethodBody{
		Instrs: []Instr{
			{Offset: 0, Op: Br, Operand: TargetOffset(10)},
			{Offset: 10, Op: Ldfld, Operand: "F"},
			{Offset: 11, Op: Ret},
		},
	}

	var rw Rewriter
	rw.Start(body)

	// Step over the unguarded leading branch.
	rw.Advance(true)

	// Now at the Ldfld instruction (offset 10): insert a guard prologue.
	// The guard's own "T:" target is the instruction it falls through to
	// once copied, not yet known at Insert time, so the branch is
	// backpatched with TargetSynthetic once Advance hands back the copy.
	rw.Insert(Ldsfld, "cacheField")
	guardBr := rw.Insert(Brtrue, nil)
	rw.Insert(Ldtoken, "F")
	rw.Insert(Call, "CheckAccess")
	copied := rw.Advance(true) // copies the Ldfld instruction itself
	guardBr.Operand = TargetSynthetic(copied[0])

	rw.Advance(true) // Ret

	out, err := rw.Finish()
	require.NoError(t, err)

	// out.Instrs: [0] Br, [1] Ldsfld, [2] Brtrue, [3] Ldtoken, [4] Call, [5] Ldfld, [6] Ret
	require.Equal(t, Ldsfld, out.Instrs[1].Op)
	require.Equal(t, Ldfld, out.Instrs[5].Op)

	brOperand, ok := out.Instrs[0].Operand.(ResolvedBranch)
	require.True(t, ok)
	require.Equal(t, 1, brOperand.Index, "the loop back-edge must land on the guard's first instruction, not the guarded Ldfld")

	guardBrOperand, ok := out.Instrs[2].Operand.(ResolvedBranch)
	require.True(t, ok)
	require.Equal(t, 5, guardBrOperand.Index, "the guard's own brtrue must fall through to the guarded instruction")
}

func TestAdvance_ShortBranchToMissingOffsetIsDangling(t *testing.T) {
	body := MethodBody{
		Instrs: []Instr{
			{Offset: 0, Op: BrS, Operand: TargetOffset(5)},
			{Offset: 2, Op: Nop},
		},
	}
	var rw Rewriter
	rw.Start(body)
	rw.Advance(true)
	rw.Advance(true)
	out, err := rw.Finish()
	// offset 5 has no instruction -> dangling branch expected
	require.Error(t, err)
	_ = out
}

func TestAdvance_ExpandsIndexedLdlocMacro(t *testing.T) {
	body := MethodBody{
		Instrs: []Instr{
			{Offset: 0, Op: Ldloc2},
			{Offset: 1, Op: Ret},
		},
	}
	var rw Rewriter
	rw.Start(body)
	rw.Advance(true)
	rw.Advance(true)
	out, err := rw.Finish()
	require.NoError(t, err)
	require.Equal(t, Ldloc, out.Instrs[0].Op)
	require.Equal(t, 2, out.Instrs[0].Operand)
}

func TestFinish_DanglingBranchIsAnError(t *testing.T) {
	body := MethodBody{
		Instrs: []Instr{
			{Offset: 0, Op: Br, Operand: TargetOffset(999)},
		},
	}
	var rw Rewriter
	rw.Start(body)
	rw.Advance(true)
	_, err := rw.Finish()
	require.Error(t, err)
}

func TestFinish_RemapsExceptionHandlerSpans(t *testing.T) {
	body := MethodBody{
		Instrs: []Instr{
			{Offset: 0, Op: Nop},
			{Offset: 1, Op: Call, Operand: "risky"},
			{Offset: 2, Op: Nop},
			{Offset: 3, Op: Ret},
		},
		Handlers: []ExceptionHandler{
			{TryStart: 0, TryEnd: 2, FilterStart: -1, HandlerStart: 2, HandlerEnd: 3},
		},
	}

	var rw Rewriter
	rw.Start(body)
	// Guard the Call at offset 1.
	rw.Advance(true) // copies Nop at offset 0
	rw.Insert(Ldsfld, "cache")
	guardBr := rw.Insert(Brtrue, nil)
	rw.Insert(Call, "InvokeViolationHandler")
	copied := rw.Advance(true) // copies Call at offset 1
	guardBr.Operand = TargetSynthetic(copied[0])
	rw.Advance(true) // Nop at offset 2
	rw.Advance(true) // Ret at offset 3

	out, err := rw.Finish()
	require.NoError(t, err)
	require.Len(t, out.Handlers, 1)

	h := out.Handlers[0]
	require.Equal(t, Nop, out.Instrs[h.TryStart].Op)
	require.Equal(t, Nop, out.Instrs[h.HandlerStart].Op)
}

func TestInsert_TargetSynthetic(t *testing.T) {
	body := MethodBody{
		Instrs: []Instr{
			{Offset: 0, Op: Nop},
		},
	}
	var rw Rewriter
	rw.Start(body)

	label := rw.Insert(Nop, nil)
	rw.Insert(Br, TargetSynthetic(label))
	rw.Advance(true)

	out, err := rw.Finish()
	require.NoError(t, err)

	br := out.Instrs[1].Operand.(ResolvedBranch)
	require.Equal(t, 0, br.Index)
}
