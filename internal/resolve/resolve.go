// Package resolve implements the late-binding resolver: given a receiver
// and a declared method, it determines the method that will actually
// execute. This is component D of the specification. Resolver output is
// consumed by the runtime call check in internal/loader; the rewriter
// never calls it directly.
package resolve

import (
	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/vm"
)

// maxDelegateParams bounds the delegate-creation-trick fallback: methods
// with more parameters than this, or any by-ref parameter, cannot be
// represented as a delegate shape this resolver supports. Rather than
// silently misresolving such a call, Resolve fails closed.
const maxDelegateParams = 14

// Resolve implements spec §4.D's four rules in order.
func Resolve(table *vm.MethodTable, receiver *vm.ObjectRef, declared vm.MethodRef) (vm.MethodRef, error) {
	// Rule 1: null receiver + non-static, non-constructor declared
	// method is a null dereference, matching the native behavior the
	// sandboxed code would observe anyway -- do not silently change it.
	if receiver == nil && !declared.IsStatic && !declared.IsCtor {
		return vm.MethodRef{}, errors.New("resolve", errors.RES001,
			"null receiver dereference resolving "+declared.Name, map[string]any{"method": declared.Name})
	}

	// Rule 2: not virtual, or virtual-and-final, returns unchanged.
	if !declared.IsVirtual || declared.IsFinal {
		return declared, nil
	}

	// Rule 3: single-dimensional zero-based array receiver uses the
	// delegate-creation trick.
	if receiver != nil && receiver.ArrayRank == 1 {
		if err := checkDelegateShape(declared); err != nil {
			return vm.MethodRef{}, err
		}
		impl, _ := table.BindDelegate(*receiver, declared)
		return impl, nil
	}

	// Rule 4: consult the VM's method table. Interface-declared methods
	// walk the receiver type's interface-implementation map; class
	// virtuals resolve against the receiver type's canonical method
	// table. A method with no registered override is its own
	// implementation (e.g. it was never overridden).
	if receiver == nil {
		return declared, nil
	}
	if declared.Type.Kind == vm.KindInterface {
		if impl, ok := table.LookupInterface(receiver.DynamicType, declared); ok {
			return impl, nil
		}
		return declared, nil
	}
	if impl, ok := table.LookupVirtual(receiver.DynamicType, declared); ok {
		return impl, nil
	}
	return declared, nil
}

// checkDelegateShape enforces the documented limitation on the
// delegate-trick fallback: it does not handle methods with more than 14
// parameters or any by-ref parameter. Rather than widening support, this
// resolver fails closed (spec.md Design Notes: widen-or-document-and-fail
// -- this repo documents and fails).
func checkDelegateShape(m vm.MethodRef) error {
	if len(m.Params) > maxDelegateParams {
		return errors.New("resolve", errors.RES002,
			"delegate-trick fallback cannot represent a method with more than 14 parameters",
			map[string]any{"method": m.Name, "params": len(m.Params)})
	}
	for _, p := range m.Params {
		if p.ByRef {
			return errors.New("resolve", errors.RES002,
				"delegate-trick fallback cannot represent a by-ref parameter",
				map[string]any{"method": m.Name})
		}
	}
	return nil
}
