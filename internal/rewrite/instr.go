package rewrite

// sentinelOffset marks a synthetic (inserted) instruction, per spec §3:
// "Inserted synthetic instructions are tagged with a sentinel offset so
// that back-patching skips them when resolving old-offset -> new-instruction
// lookups."
const sentinelOffset = -1

// Instr is one instruction in a method body, original or synthetic.
type Instr struct {
	// Offset is the original byte offset for instructions copied from
	// the input method body, or sentinelOffset for instructions inserted
	// by Insert.
	Offset int
	Op     Opcode
	// Operand holds opcode-specific data: a BranchTarget for branch
	// opcodes, an int index for Ldloc/Stloc/Ldarg, or caller-supplied
	// data (member/type references) for everything else.
	Operand any
}

// Sentinel reports whether this instruction was inserted by Insert
// rather than copied from the original body.
func (i *Instr) Sentinel() bool { return i.Offset == sentinelOffset }

// BranchTarget is the operand of a branch instruction prior to Finish.
// It refers either directly to a synthetic instruction inserted earlier
// in the same rewriting pass, or to an original offset to be resolved
// through the rewriter's offset map at Finish time.
type BranchTarget struct {
	synthetic *Instr
	offset    int
}

// TargetOffset builds a BranchTarget referring to an original
// instruction's offset, resolved via the offset map at Finish.
func TargetOffset(offset int) BranchTarget {
	return BranchTarget{offset: offset}
}

// TargetSynthetic builds a BranchTarget referring directly to a
// synthetic instruction (one returned by Rewriter.Insert), bypassing the
// offset map entirely -- used for labels that only exist post-rewrite.
func TargetSynthetic(instr *Instr) BranchTarget {
	return BranchTarget{synthetic: instr}
}

// ResolvedBranch is the operand a branch instruction carries after
// Finish: a plain index into the rewritten MethodBody.Instrs slice.
type ResolvedBranch struct {
	Index int
}

// ExceptionHandler describes one protected region, with all four offsets
// expressed in the original method body's offset space prior to Finish,
// and remapped identically to branch operands when Finish runs.
type ExceptionHandler struct {
	TryStart     int
	TryEnd       int
	FilterStart  int // -1 if this handler has no filter
	HandlerStart int
	HandlerEnd   int
}

// MethodBody is one method's instruction stream plus its exception
// handler table.
type MethodBody struct {
	Instrs   []Instr
	Handlers []ExceptionHandler
}
