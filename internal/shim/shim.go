// Package shim maps sensitive library methods (file I/O, raw memory
// helpers, reflection-emit) to safe replacements the rewriter substitutes
// at instrumentation time. This is component C of the specification.
package shim

import (
	"sync"

	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

// Table is a signature-keyed map from an original method to its shim
// replacement. Equality ignores the declaring-type identity of closed
// generic instantiations but preserves the open generic shape, via
// ident.SignatureText.
type Table struct {
	mu    sync.RWMutex
	byTxt map[string]vm.MethodRef
}

// NewTable returns an empty shim table. Process embedders call
// RegisterDefaults to seed it with the built-in sensitive-API shims.
func NewTable() *Table {
	return &Table{byTxt: make(map[string]vm.MethodRef)}
}

// Register adds a mapping from original to its shim replacement.
func (t *Table) Register(original vm.MethodRef, shimTarget vm.MethodRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTxt[ident.SignatureText(original)] = shimTarget
}

// Lookup returns the shim for call's signature, if one is registered. A
// call through a closed generic instantiation matches the shim registered
// against its open definition, since SignatureText renders both the same.
func (t *Table) Lookup(call vm.MethodRef) (vm.MethodRef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	shimTarget, ok := t.byTxt[ident.SignatureText(call)]
	return shimTarget, ok
}

// RebindGenericArgs re-attaches original's generic arguments (declaring
// type's arguments first, then the method's own, in that order) onto the
// shim target, so a shimmed call to a generic method keeps its concrete
// type arguments.
func RebindGenericArgs(shimTarget vm.MethodRef, original vm.MethodRef) vm.MethodRef {
	rebound := shimTarget
	rebound.GenericArgs = append([]vm.TypeRef{}, original.GenericArgs...)
	return rebound
}
