// Package guard synthesizes and memoizes the "always callable" cache
// fields that internal/rewrite's guard prologue checks before paying for
// a full CheckAccess call. This is component F of the specification.
//
// One Holder exists per instrumented vm.TypeRef, mirroring the synthesized
// nested type (spec's "<Type>+<CasGuard{id}>") that would carry these
// static boolean fields in the original runtime. Go has no synthesized
// nested-type/static-field facility, so Holder stands in for it directly:
// FieldSlot.Index is the position rewrite.Instr operands reference, and
// Holder.Init evaluates every registered predicate exactly once.
package guard

import (
	"fmt"
	"sync"

	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

// CacheKey identifies one call-site's guard slot: the member being
// checked, plus the constraining type for a constrained virtual call
// (zero value if the call site has no constraint).
type CacheKey struct {
	Member        ident.MemberID
	ConstrainedOn vm.TypeRef
}

// FieldSlot is the synthesized static boolean field for one call site.
type FieldSlot struct {
	Name  string
	Index int
}

// Holder owns every guard slot synthesized for one vm.TypeRef.
type Holder struct {
	Type vm.TypeRef

	mu     sync.Mutex
	slots  map[CacheKey]FieldSlot
	thunks map[CacheKey]func() bool
	once   sync.Once
	values map[CacheKey]bool
}

// NewHolder returns an empty Holder for typ.
func NewHolder(typ vm.TypeRef) *Holder {
	return &Holder{
		Type:   typ,
		slots:  make(map[CacheKey]FieldSlot),
		thunks: make(map[CacheKey]func() bool),
	}
}

// fieldName renders the synthesized field's name as
// "<Type>+<CasGuard>.site{n}", after spec's nested-holder naming; the
// holder part carries no id, since there is one Holder per type.
func fieldName(typ vm.TypeRef, index int) string {
	return fmt.Sprintf("%s+<CasGuard>.site%d", typ.Name, index)
}

// Writer allocates and memoizes guard slots across a loader's lifetime.
type Writer struct{}

// NewWriter returns a Writer. Writer is stateless: all memoization lives
// on the Holder passed to SlotFor, one per instrumented type.
func NewWriter() *Writer { return &Writer{} }

// SlotFor returns the FieldSlot for key on holder, allocating a new one
// on first sight. alwaysAllowed is recorded for later one-shot evaluation
// by Holder.Init and is never invoked by SlotFor itself -- guard field
// values must not be decided before the type has finished loading, per
// spec §5's one-shot static initializer semantics.
func (w *Writer) SlotFor(holder *Holder, key CacheKey, alwaysAllowed func() bool) FieldSlot {
	holder.mu.Lock()
	defer holder.mu.Unlock()

	if slot, ok := holder.slots[key]; ok {
		return slot
	}
	slot := FieldSlot{Name: fieldName(holder.Type, len(holder.slots)), Index: len(holder.slots)}
	holder.slots[key] = slot
	holder.thunks[key] = alwaysAllowed
	return slot
}

// Init evaluates every registered predicate exactly once, guarded by
// sync.Once, standing in for the VM's one-shot type-initialization lock.
// Subsequent calls are no-ops. It must run before Value is first called
// for any key on this holder.
func (h *Holder) Init() {
	h.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.values = make(map[CacheKey]bool, len(h.thunks))
		for key, thunk := range h.thunks {
			h.values[key] = thunk()
		}
	})
}

// Value returns the memoized predicate result for key. It panics if Init
// has not yet run, or if key was never registered via SlotFor -- both
// indicate a loader-ordering bug, not a recoverable runtime condition.
func (h *Holder) Value(key CacheKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.values == nil {
		panic("guard: Holder.Value called before Init")
	}
	v, ok := h.values[key]
	if !ok {
		panic("guard: Holder.Value called with an unregistered CacheKey")
	}
	return v
}

// Slots returns every slot registered on holder, for the rewriter to
// synthesize declaration fields from at the end of instrumentation.
func (h *Holder) Slots() map[CacheKey]FieldSlot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[CacheKey]FieldSlot, len(h.slots))
	for k, v := range h.slots {
		out[k] = v
	}
	return out
}
