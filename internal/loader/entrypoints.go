package loader

import (
	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/resolve"
	"github.com/modguard/modguard/internal/vm"
)

// Entry-point reference values: the rewriter's Call/Callvirt instructions
// carry one of these as their Operand, standing in for the fixed metadata
// tokens spec §9 says a real rewritten body "embeds... by token". A host
// VM executing a rewritten body would dispatch a Call on one of these
// values to the corresponding *Loader method below.
type entryPoint string

const (
	checkAccessEntryPoint            entryPoint = "CheckAccess"
	checkVirtualCallEntryPoint       entryPoint = "CheckVirtualCall"
	invokeViolationHandlerEntryPoint entryPoint = "InvokeViolationHandler"
)

// checkVirtualCallConstrainedEntryPoint carries the constraining type
// operand alongside the entry-point identity, since
// CheckVirtualCallConstrained<T> is generic over T.
type checkVirtualCallConstrainedEntryPoint struct {
	constrainedOn any
}

// createCheckedDelegateEntryPoint carries the delegate constructor's
// operand (the TDelegate type the helper rewires), mirroring
// CreateCheckedDelegate<TDelegate>'s generic parameter.
type createCheckedDelegateEntryPoint struct {
	delegateCtor any
}

// callerFrame is the VM-provided "calling-assembly" primitive spec
// §4.G(iii) describes, supplied explicitly by the caller in this
// repo since there is no real call stack to inspect.
type callerFrame struct {
	Assembly vm.AssemblyID
}

// CheckAccess implements the field-access runtime entry point: resolve
// the calling assembly's loader via the weak registry, and either allow
// or invoke the violation handler. field is a reflective handle (per spec
// §6, "to avoid extra allocations on the hot path"); its declaring type
// travels inside it as field.Type.
func CheckAccess(caller callerFrame, field vm.FieldRef) error {
	l, ok := LoaderFor(caller.Assembly)
	if !ok {
		// Trusted-caller / load-boundary rule: an unregistered caller is
		// fully trusted and passes without check (spec §7).
		return nil
	}
	if l.canAccess(ident.FromField(field)) {
		return nil
	}
	return l.ViolationHandler.OnViolation(caller.Assembly, ident.FromField(field))
}

// CheckVirtualCall implements the virtual-dispatch runtime entry point:
// resolve the actual implementation method via internal/resolve, then
// check access against the resolved target -- never the abstract
// declaration -- per spec §4.D's closing note.
func CheckVirtualCall(caller callerFrame, table *vm.MethodTable, receiver *vm.ObjectRef, declared vm.MethodRef) error {
	return checkVirtualCallImpl(caller, table, receiver, declared)
}

// CheckVirtualCallConstrained is CheckVirtualCall's constrained-prefix
// form; constrainedOn is accepted for API fidelity with spec §4.G(ii) but
// does not change the resolution rules -- internal/resolve dispatches
// purely on the receiver's dynamic type, which the constrained. prefix
// does not alter in this model.
func CheckVirtualCallConstrained(caller callerFrame, table *vm.MethodTable, receiver *vm.ObjectRef, declared vm.MethodRef, constrainedOn vm.TypeRef) error {
	return checkVirtualCallImpl(caller, table, receiver, declared)
}

func checkVirtualCallImpl(caller callerFrame, table *vm.MethodTable, receiver *vm.ObjectRef, declared vm.MethodRef) error {
	l, ok := LoaderFor(caller.Assembly)
	if !ok {
		return nil
	}
	resolved, err := resolve.Resolve(table, receiver, declared)
	if err != nil {
		return err
	}
	if l.OwnsAssembly(resolved.Type.Assembly) {
		return nil
	}
	if l.policy.ContainsMethod(resolved) {
		return nil
	}
	return l.ViolationHandler.OnViolation(caller.Assembly, ident.FromMethod(resolved))
}

// InvokeViolationHandler implements the static-call/newobj slow path:
// since canCallAlways already resolved the policy decision for the
// non-virtual target at guard-init time, a cache miss here means the
// call is definitively disallowed -- no further check, straight to the
// handler.
func InvokeViolationHandler(caller callerFrame, target vm.MethodRef) error {
	l, ok := LoaderFor(caller.Assembly)
	if !ok {
		return nil
	}
	return l.ViolationHandler.OnViolation(caller.Assembly, ident.FromMethod(target))
}

// CreateCheckedDelegate implements the delegate-creation runtime entry
// point: rewire target through any registered shim, and perform the
// access check against that method before the delegate is considered
// created. No late binding is performed: target is checked as given (or
// as its shim), table is not consulted, and a virtual target is not
// resolved to the override a receiver would dispatch to.
func CreateCheckedDelegate(caller callerFrame, table *vm.MethodTable, shims interface {
	Lookup(vm.MethodRef) (vm.MethodRef, bool)
}, target vm.MethodRef) (vm.MethodRef, error) {
	l, ok := LoaderFor(caller.Assembly)
	if !ok {
		return target, nil
	}
	resolved := target
	if shimTarget, ok := shims.Lookup(target); ok {
		resolved = shimTarget
	}
	if l.OwnsAssembly(resolved.Type.Assembly) {
		return resolved, nil
	}
	if l.canAccess(ident.FromMethod(resolved)) {
		return resolved, nil
	}
	return vm.MethodRef{}, l.ViolationHandler.OnViolation(caller.Assembly, ident.FromMethod(resolved))
}

// CanAccess is the pure predicate form: true iff l's policy allows id, or
// id belongs to an assembly l owns.
func (l *Loader) canAccess(id ident.MemberID) bool {
	if l.OwnsAssembly(id.Assembly) {
		return true
	}
	return l.policy.Contains(id)
}

// CanAccess exposes canAccess for external callers (host embedders,
// internal/manifest diagnostics), per spec §6's exported predicate.
func (l *Loader) CanAccess(id ident.MemberID) bool { return l.canAccess(id) }
