// Package stackalloc enforces that the only stackalloc shape permitted
// in sandboxed code is the safe stackalloc-to-Span idiom, and injects a
// dynamic length check because the byte count pushed to localloc and the
// element count passed to the Span constructor may diverge at runtime
// even when the static shape matches. This is component I of the
// specification, grounded on internal/rewrite's Rewriter (the same
// cursor/Insert/Drop machinery field-access and call guards use) and on
// internal/binding's recursive nested-type walk for the structural part
// of the unmanaged check.
package stackalloc

import (
	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/vm"
)

// SpanCtor is the Operand a Newobj instruction carries when it constructs
// a Span<T>(void*, int) over the result of a localloc -- the only newobj
// shape VerifyPattern recognizes as legal after a localloc.
type SpanCtor struct {
	ElemType vm.TypeRef
	ElemSize int
}

var primitiveSizes = map[string]int{
	"Boolean": 1, "Byte": 1, "SByte": 1,
	"Int16": 2, "UInt16": 2, "Char": 2,
	"Int32": 4, "UInt32": 4, "Single": 4,
	"Int64": 8, "UInt64": 8, "Double": 8,
	"IntPtr": 8, "UIntPtr": 8,
}

// IsUnmanaged reports whether t satisfies the unmanaged constraint: a
// primitive, a pointer, an enum, or a struct whose every field is itself
// unmanaged (checked recursively via fieldTypes, supplied by the caller
// since vm.TypeRef alone does not carry a field list -- internal/binding
// owns that).
func IsUnmanaged(t vm.TypeRef, fieldTypes func(vm.TypeRef) []vm.TypeRef) bool {
	if _, ok := primitiveSizes[t.Name]; ok {
		return true
	}
	switch t.Kind {
	case vm.KindEnum:
		return true
	case vm.KindStruct:
		if t.Unmanaged {
			return true
		}
		for _, f := range fieldTypes(t) {
			if !IsUnmanaged(f, fieldTypes) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// sizeOf returns T's element size for the byte-count comparison,
// defaulting to a conservative pointer-width size for struct/enum types
// this package cannot otherwise size without full layout information.
func sizeOf(t vm.TypeRef) int {
	if sz, ok := primitiveSizes[t.Name]; ok {
		return sz
	}
	return 8
}

// VerifyPattern checks whether the three instructions starting at index i
// form the sole permitted shape: localloc; <Ldc | Ldloc>; newobj
// Span<T>(void*,int). It returns the element type's size (for the
// byte-count comparison Instrument injects) and true if the pattern
// matches and T is unmanaged.
func VerifyPattern(instrs []rewrite.Instr, i int, fieldTypes func(vm.TypeRef) []vm.TypeRef) (elemSize int, ok bool, err error) {
	if i+2 >= len(instrs) {
		return 0, false, badPattern()
	}
	if instrs[i].Op != rewrite.Localloc {
		return 0, false, badPattern()
	}
	lenOp := instrs[i+1].Op
	if lenOp != rewrite.Ldc && lenOp != rewrite.Ldloc {
		return 0, false, badPattern()
	}
	ctor, ok := instrs[i+2].Operand.(SpanCtor)
	if instrs[i+2].Op != rewrite.Newobj || !ok {
		return 0, false, badPattern()
	}
	if !IsUnmanaged(ctor.ElemType, fieldTypes) {
		return 0, false, badElemType(ctor.ElemType)
	}
	if ctor.ElemSize > 0 {
		return ctor.ElemSize, true, nil
	}
	return sizeOf(ctor.ElemType), true, nil
}

// byteCountSlot is the synthetic local Instrument spills the byte count
// pushed to localloc into, so it survives past localloc's own consumption
// of it. Scoped to this one guard sequence only, like the argument-spill
// indices internal/loader's virtual-call guard uses -- it does not need to
// be globally unique within the method, only consistent between the Stloc
// and the matching Ldloc a few instructions later.
const byteCountSlot = 0

// Instrument rewrites the verified triple at the rewriter's current
// position to compute length * elemSize and compare it for equality
// against the byte count pushed to localloc, throwing a
// bad-image-format-shaped error on mismatch before the Span is
// constructed. The caller (internal/loader) must have already confirmed
// the pattern with VerifyPattern.
func Instrument(rw *rewrite.Rewriter, elemSize int) {
	// The byte count is about to be consumed by localloc itself, so it
	// must be duplicated and spilled before localloc is copied, or it is
	// gone by the time the comparison needs it.
	rw.Insert(rewrite.Dup, nil)
	rw.Insert(rewrite.Stloc, byteCountSlot)
	rw.Advance(true) // copy localloc (consumes one copy of the byte count, pushes the pointer)
	rw.Advance(true) // copy the length load

	// The length is also consumed twice: once by the multiplication below,
	// once by the Span constructor at the end, so it too is duplicated.
	rw.Insert(rewrite.Dup, nil)
	rw.Insert(rewrite.Ldc, elemSize)
	rw.Insert(rewrite.Mul, nil)
	rw.Insert(rewrite.Ldloc, byteCountSlot)
	rw.Insert(rewrite.Ceq, nil)
	guardBr := rw.Insert(rewrite.Brtrue, nil)
	rw.Insert(rewrite.Throw, badImageFormatOperand)

	copied := rw.Advance(true) // copy the newobj Span<T> itself
	guardBr.Operand = rewrite.TargetSynthetic(copied[0])
}

const badImageFormatOperand = "BadImageFormatException"

func badPattern() error {
	return errors.New("stackalloc", errors.RWR002,
		"localloc did not match the sole permitted stackalloc-to-span idiom", nil)
}

func badElemType(t vm.TypeRef) error {
	return errors.New("stackalloc", errors.RWR003,
		"span element type does not satisfy the unmanaged constraint",
		map[string]any{"type": t.Name})
}
