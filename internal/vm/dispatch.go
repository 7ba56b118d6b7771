package vm

// MethodTable is the per-process table the late-binding resolver consults
// to find the implementation a virtual or interface dispatch resolves to.
// A real host VM has this built into the runtime; this package models it
// as explicit, host-supplied maps so the resolver stays pure and testable.
type MethodTable struct {
	// virtualOverrides maps (receiver type, declared virtual method) to
	// the most-derived override the receiver type provides.
	virtualOverrides map[overrideKey]MethodRef
	// interfaceImpls maps (receiver type, interface method) to the
	// concrete method the receiver type uses to implement it.
	interfaceImpls map[overrideKey]MethodRef
}

type overrideKey struct {
	receiver Token
	declared Token
}

// NewMethodTable returns an empty method table.
func NewMethodTable() *MethodTable {
	return &MethodTable{
		virtualOverrides: make(map[overrideKey]MethodRef),
		interfaceImpls:   make(map[overrideKey]MethodRef),
	}
}

// AddOverride registers that receiverType overrides declared with impl.
func (t *MethodTable) AddOverride(receiverType TypeRef, declared MethodRef, impl MethodRef) {
	t.virtualOverrides[overrideKey{receiverType.Token, declared.Token}] = impl
}

// AddInterfaceImpl registers that receiverType implements the interface
// method declared with impl.
func (t *MethodTable) AddInterfaceImpl(receiverType TypeRef, declared MethodRef, impl MethodRef) {
	t.interfaceImpls[overrideKey{receiverType.Token, declared.Token}] = impl
}

// LookupVirtual resolves a class-virtual dispatch against the receiver's
// canonical method table. ok is false if no override is registered, in
// which case the caller should fall back to the declared method (it is
// its own implementation).
func (t *MethodTable) LookupVirtual(receiver TypeRef, declared MethodRef) (MethodRef, bool) {
	impl, ok := t.virtualOverrides[overrideKey{receiver.Token, declared.Token}]
	return impl, ok
}

// LookupInterface walks the receiver type's interface-implementation map
// for an interface-declared method.
func (t *MethodTable) LookupInterface(receiver TypeRef, declared MethodRef) (MethodRef, bool) {
	impl, ok := t.interfaceImpls[overrideKey{receiver.Token, declared.Token}]
	return impl, ok
}

// BindDelegate implements the "delegate creation trick" fallback: for a
// single-dimensional zero-based array receiver, construct a delegate
// matching the method's signature bound to the receiver and return the
// delegate's resolved target. In this model there is no real
// ldftn/ldvirtftn to fall back through, so the trick degenerates to a
// direct virtual-table lookup -- but the shape restrictions it was subject
// to in the original source (no more than 14 parameters, no by-ref
// parameters) are preserved and enforced by the caller (internal/resolve),
// which fails closed rather than silently misresolving.
func (t *MethodTable) BindDelegate(receiver ObjectRef, declared MethodRef) (MethodRef, bool) {
	if impl, ok := t.LookupVirtual(receiver.DynamicType, declared); ok {
		return impl, true
	}
	return declared, true
}
