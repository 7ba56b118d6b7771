package loader

import (
	"github.com/modguard/modguard/internal/guard"
	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/shim"
	"github.com/modguard/modguard/internal/vm"
)

// instrumentFieldAccess implements spec §4.G(ii)'s field-access bullet:
// same declaring scope as the accessing method falls through unguarded;
// otherwise emit ldsfld <cacheField>; brtrue T; ldtoken <field>;
// ldtoken <declaringType>; call CheckAccess; T: <original>.
func (l *Loader) instrumentFieldAccess(rw *rewrite.Rewriter, owner vm.TypeRef, cur rewrite.Instr) {
	f, ok := cur.Operand.(vm.FieldRef)
	if !ok {
		rw.Advance(true)
		return
	}
	if f.Type.Token == owner.Token {
		rw.Advance(true)
		return
	}

	holder := l.holderFor(f.Type)
	key := guard.CacheKey{Member: ident.FromField(f)}
	slot := l.writer.SlotFor(holder, key, func() bool { return l.canCallAlwaysField(f) })

	rw.Insert(rewrite.Ldsfld, slot)
	guardBr := rw.Insert(rewrite.Brtrue, nil)
	rw.Insert(rewrite.Ldtoken, f)
	rw.Insert(rewrite.Ldtoken, f.Type)
	rw.Insert(rewrite.Call, checkAccessEntryPoint)
	copied := rw.Advance(true)
	guardBr.Operand = rewrite.TargetSynthetic(copied[0])
}

// instrumentCall implements spec §4.G(ii)'s call/callvirt/newobj bullet.
func (l *Loader) instrumentCall(rw *rewrite.Rewriter, owner vm.TypeRef, cur rewrite.Instr) error {
	target, ok := cur.Operand.(vm.MethodRef)
	if !ok {
		rw.Advance(true)
		return nil
	}

	if target.Type.Token == owner.Token {
		rw.Advance(true)
		return nil
	}

	if shimTarget, ok := l.shims.Lookup(target); ok {
		rebound := shim.RebindGenericArgs(shimTarget, target)
		rw.Insert(cur.Op, rebound)
		rw.Drop()
		return nil
	}

	if cur.Op == rewrite.Callvirt && target.IsVirtual {
		l.instrumentVirtualCall(rw, target)
		return nil
	}

	// Static call or newobj: no late-binding ambiguity, so
	// canCallAlways exactly captures the policy decision (§4.F) and a
	// cache miss needs no further check -- it goes straight to the
	// violation handler.
	holder := l.holderFor(target.Type)
	key := guard.CacheKey{Member: ident.FromMethod(target)}
	slot := l.writer.SlotFor(holder, key, func() bool { return l.canCallAlwaysMethod(target) })

	rw.Insert(rewrite.Ldsfld, slot)
	guardBr := rw.Insert(rewrite.Brtrue, nil)
	rw.Insert(rewrite.Ldtoken, target)
	rw.Insert(rewrite.Ldtoken, target.Type)
	rw.Insert(rewrite.Call, invokeViolationHandlerEntryPoint)
	copied := rw.Advance(true)
	guardBr.Operand = rewrite.TargetSynthetic(copied[0])
	return nil
}

// instrumentVirtualCall emits the slow-path sequence spec §4.G(ii)
// describes for a virtual callvirt with a this receiver: spill arguments
// into locals in reverse, duplicate the receiver, push method/declaring-
// type tokens, call CheckVirtualCall (or its Constrained<T> form if the
// previous instruction was a constrained. prefix), reload arguments, and
// fall through to the original instruction. Spill/reload use Stloc/Ldloc
// with synthetic indices -- this repo has no local-slot allocator for
// rewritten bodies (no new locals are declared on the MethodBody), so the
// indices only need to be internally consistent within this one guard
// sequence.
func (l *Loader) instrumentVirtualCall(rw *rewrite.Rewriter, target vm.MethodRef) {
	holder := l.holderFor(target.Type)
	key := guard.CacheKey{Member: ident.FromMethod(target)}
	slot := l.writer.SlotFor(holder, key, func() bool { return l.canCallAlwaysMethod(target) })

	rw.Insert(rewrite.Ldsfld, slot)
	guardBr := rw.Insert(rewrite.Brtrue, nil)

	n := len(target.Params)
	for i := n - 1; i >= 0; i-- {
		rw.Insert(rewrite.Stloc, i)
	}
	rw.Insert(rewrite.Dup, nil)

	if prev, ok := rw.Peek(1); ok && prev.Op == rewrite.Constrained {
		constrainedOn := prev.Operand
		rw.Insert(rewrite.Ldtoken, target)
		rw.Insert(rewrite.Ldtoken, target.Type)
		rw.Insert(rewrite.Call, checkVirtualCallConstrainedEntryPoint{constrainedOn: constrainedOn})
	} else {
		rw.Insert(rewrite.Ldtoken, target)
		rw.Insert(rewrite.Ldtoken, target.Type)
		rw.Insert(rewrite.Call, checkVirtualCallEntryPoint)
	}

	for i := 0; i < n; i++ {
		rw.Insert(rewrite.Ldloc, i)
	}

	copied := rw.Advance(true)
	guardBr.Operand = rewrite.TargetSynthetic(copied[0])
}

// pendingDelegateState carries an ldftn/ldvirtftn target across to the
// newobj <DelegateCtor> instruction that must immediately follow it.
type pendingDelegateState struct {
	target vm.MethodRef
	isVirt bool
}

// startDelegateCreation consumes the ldftn/ldvirtftn instruction without
// emitting anything yet; the replacement is only fully known once the
// matching newobj arrives.
func startDelegateCreation(rw *rewrite.Rewriter, cur rewrite.Instr) *pendingDelegateState {
	target, _ := cur.Operand.(vm.MethodRef)
	rw.Drop()
	return &pendingDelegateState{target: target, isVirt: cur.Op == rewrite.Ldvirtftn}
}

// finishDelegateCreation replaces the newobj <DelegateCtor> -- and the
// ldftn/ldvirtftn consumed earlier -- with a call to
// CreateCheckedDelegate<TDelegate>(target, methodToken, declaringTypeToken),
// per spec §4.G(ii). For ldvirtftn the redundant object duplicated on the
// stack is popped first, since the target is passed to the helper
// explicitly rather than implicitly via the stack.
func finishDelegateCreation(rw *rewrite.Rewriter, pending pendingDelegateState, newobjInstr rewrite.Instr) {
	if pending.isVirt {
		rw.Insert(rewrite.Pop, nil)
	}
	rw.Insert(rewrite.Ldtoken, pending.target)
	rw.Insert(rewrite.Ldtoken, pending.target.Type)
	rw.Insert(rewrite.Call, createCheckedDelegateEntryPoint{delegateCtor: newobjInstr.Operand})
	rw.Drop()
}
