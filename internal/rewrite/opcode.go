// Package rewrite implements a stateful editor over one method body: an
// instruction buffer with branch-target remapping and short/macro-form
// expansion. This is component E of the specification.
//
// The package operates purely on offsets and opcodes -- it has no
// dependency on internal/vm identity details, which keeps it
// independently testable per spec §4.E.
package rewrite

// Opcode is a CIL-shaped instruction opcode. Short forms (the "S" suffix)
// and the indexed ldloc/stloc/ldarg macro family are tracked explicitly
// so Advance can expand them to long forms during the copy, per spec
// §4.E: any branch instrumentation inserts must still be able to address
// targets regardless of offset range.
type Opcode int

const (
	Nop Opcode = iota

	Ldarg
	LdargS
	Ldarg0
	Ldarg1
	Ldarg2
	Ldarg3

	Ldloc
	LdlocS
	Ldloc0
	Ldloc1
	Ldloc2
	Ldloc3

	Stloc
	StlocS
	Stloc0
	Stloc1
	Stloc2
	Stloc3

	Ldsfld
	Stsfld
	Ldfld
	Stfld
	Ldtoken

	Dup
	Pop

	Br
	BrS
	Brtrue
	BrtrueS
	Brfalse
	BrfalseS

	Call
	Callvirt
	Newobj

	Ldftn
	Ldvirtftn

	Constrained // prefix

	Localloc
	Ldc
	Mul
	Ceq

	Ret
	Throw
)

var opcodeNames = map[Opcode]string{
	Nop: "nop", Ldarg: "ldarg", LdargS: "ldarg.s", Ldarg0: "ldarg.0", Ldarg1: "ldarg.1",
	Ldarg2: "ldarg.2", Ldarg3: "ldarg.3", Ldloc: "ldloc", LdlocS: "ldloc.s", Ldloc0: "ldloc.0",
	Ldloc1: "ldloc.1", Ldloc2: "ldloc.2", Ldloc3: "ldloc.3", Stloc: "stloc", StlocS: "stloc.s",
	Stloc0: "stloc.0", Stloc1: "stloc.1", Stloc2: "stloc.2", Stloc3: "stloc.3",
	Ldsfld: "ldsfld", Stsfld: "stsfld", Ldfld: "ldfld", Stfld: "stfld", Ldtoken: "ldtoken",
	Dup: "dup", Pop: "pop", Br: "br", BrS: "br.s", Brtrue: "brtrue", BrtrueS: "brtrue.s",
	Brfalse: "brfalse", BrfalseS: "brfalse.s", Call: "call", Callvirt: "callvirt", Newobj: "newobj",
	Ldftn: "ldftn", Ldvirtftn: "ldvirtftn", Constrained: "constrained.",
	Localloc: "localloc", Ldc: "ldc", Mul: "mul", Ceq: "ceq", Ret: "ret", Throw: "throw",
}

// String renders op in CIL assembly-listing form, for CLI/diagnostic
// output (`modguard inspect`).
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "unknown"
}

// IsPrefix reports whether op is a prefix opcode. Prefix opcodes are
// skipped by the advance cursor but remain in the copy window, so they
// stay adjacent to their principal instruction (spec §4.E, "Prefix
// handling").
func (op Opcode) IsPrefix() bool {
	return op == Constrained
}

// IsBranch reports whether op carries a branch-target operand.
func (op Opcode) IsBranch() bool {
	switch op {
	case Br, BrS, Brtrue, BrtrueS, Brfalse, BrfalseS:
		return true
	default:
		return false
	}
}

// IsShortForm reports whether op is a short-form branch or indexed-load
// short form that Advance must expand to its long form.
func (op Opcode) IsShortForm() bool {
	switch op {
	case BrS, BrtrueS, BrfalseS, LdargS, LdlocS, StlocS:
		return true
	default:
		return false
	}
}

// LongForm returns the long-form equivalent of a short-form opcode. It
// panics if op is not a short form; callers must check IsShortForm first.
func (op Opcode) LongForm() Opcode {
	switch op {
	case BrS:
		return Br
	case BrtrueS:
		return Brtrue
	case BrfalseS:
		return Brfalse
	case LdargS:
		return Ldarg
	case LdlocS:
		return Ldloc
	case StlocS:
		return Stloc
	default:
		panic("rewrite: LongForm called on a non-short-form opcode")
	}
}

// indexedMacroIndex reports whether op is one of the indexed
// ldloc.N/stloc.N/ldarg.N macro opcodes, and if so which long opcode and
// implicit index it expands to.
func (op Opcode) indexedMacroIndex() (Opcode, int, bool) {
	switch op {
	case Ldloc0:
		return Ldloc, 0, true
	case Ldloc1:
		return Ldloc, 1, true
	case Ldloc2:
		return Ldloc, 2, true
	case Ldloc3:
		return Ldloc, 3, true
	case Stloc0:
		return Stloc, 0, true
	case Stloc1:
		return Stloc, 1, true
	case Stloc2:
		return Stloc, 2, true
	case Stloc3:
		return Stloc, 3, true
	case Ldarg0:
		return Ldarg, 0, true
	case Ldarg1:
		return Ldarg, 1, true
	case Ldarg2:
		return Ldarg, 2, true
	case Ldarg3:
		return Ldarg, 3, true
	default:
		return Nop, 0, false
	}
}

// IsMacro reports whether op is any form (indexed or short) that Advance
// must expand during the copy.
func (op Opcode) IsMacro() bool {
	if op.IsShortForm() {
		return true
	}
	_, _, ok := op.indexedMacroIndex()
	return ok
}
