// Package loader is the orchestrator: it accepts a module's raw bodies,
// bans unmanaged-library imports, instruments every method against the
// loader's policy, and hosts the stable runtime entry points instrumented
// bodies call back into. This is component G of the specification,
// grounded on the teacher's internal/module.ModuleLoader (cache +
// single-pass transform) and internal/loader.ModuleLoader (path
// resolution guarding against unsafe imports), generalized from
// parse-and-link to load-and-instrument.
//
// Real metadata/bytecode parsing is explicitly out of scope (spec.md §1
// lists it as an external collaborator): RawModule below is the already-
// parsed shape a host's verifier would hand to this loader, standing in
// for what LoadFromBytes(code, symbols []byte) would produce after
// parsing in a real embedding.
package loader

import (
	"sync"

	"github.com/modguard/modguard/internal/binding"
	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/guard"
	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/shim"
	"github.com/modguard/modguard/internal/stackalloc"
	"github.com/modguard/modguard/internal/vm"
	"github.com/modguard/modguard/internal/violation"
)

// verifierFlagOperand is the well-known operand of the verifier prelude
// (ldsfld <flag>; pop). A body whose first two instructions are exactly
// that prelude is treated as already instrumented: LoadFromBytes passes
// it through unchanged (spec §8's round-trip property). Bodies without
// the prelude are instrumented.
const verifierFlagOperand = "__cas_verified__"

// RawMethod is one method body awaiting instrumentation.
type RawMethod struct {
	Owner vm.TypeRef
	Ref   vm.MethodRef
	Body  rewrite.MethodBody
}

// RawModule is a module's instrumentable surface: every method body plus
// the native-library imports the verifier precondition check inspects.
type RawModule struct {
	Assembly    vm.AssemblyID
	DisplayName string
	// NativeLibraryImports lists unmanaged library names this module
	// requests to load (P/Invoke-style); any non-empty set is banned
	// outright by component G(i).
	NativeLibraryImports []string
	Methods              []RawMethod
}

// Module is the result of a successful load: an assembly identity plus
// its instrumented method bodies, ready for internal/loader's runtime
// entry points to execute against.
type Module struct {
	Assembly vm.AssemblyID
	Methods  []RawMethod
}

// LoaderOptions configures a Loader, per spec §6.
type LoaderOptions struct {
	DisplayName string
	Collectible bool
}

// Loader is one isolated loading context: a policy, the shared shim and
// method tables, and a guard holder per instrumented type. A process
// typically has one Loader per sandboxed plug-in.
type Loader struct {
	policy      ident.CasPolicy
	shims       *shim.Table
	methodTable *vm.MethodTable
	universe    binding.TypeUniverse
	opts        LoaderOptions

	// ViolationHandler is mutable; last-writer wins, per spec §5's
	// "Shared resources" note -- callers must treat it as safe to
	// execute from arbitrary goroutines.
	ViolationHandler violation.Handler

	mu         sync.Mutex
	assemblies map[vm.AssemblyID]bool
	holders    map[vm.Token]*guard.Holder
	writer     *guard.Writer
}

// NewLoader constructs an isolated loading context. policy is the
// immutable allow-list; shims and methodTable are process-wide tables
// typically shared across every Loader in the host (spec §5: "the shim
// map: built at process start, then read-only").
func NewLoader(policy ident.CasPolicy, shims *shim.Table, methodTable *vm.MethodTable, universe binding.TypeUniverse, opts LoaderOptions) *Loader {
	return &Loader{
		policy:           policy,
		shims:            shims,
		methodTable:      methodTable,
		universe:         universe,
		opts:             opts,
		ViolationHandler: violation.DefaultHandler{},
		assemblies:       make(map[vm.AssemblyID]bool),
		holders:          make(map[vm.Token]*guard.Holder),
		writer:           guard.NewWriter(),
	}
}

// Policy returns the loader's immutable allow-list.
func (l *Loader) Policy() ident.CasPolicy { return l.policy }

// OwnsAssembly reports whether assembly was loaded by l -- the basis for
// the same-assembly shortcut and the "always callable" predicate's first
// disjunct (spec §4.G).
func (l *Loader) OwnsAssembly(a vm.AssemblyID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assemblies[a]
}

// holderFor returns (creating if necessary) the guard holder for typ.
func (l *Loader) holderFor(typ vm.TypeRef) *guard.Holder {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[typ.Token]
	if !ok {
		h = guard.NewHolder(typ)
		l.holders[typ.Token] = h
	}
	return h
}

// LoadFromBytes instruments every method body in mod and registers the
// resulting Module under this loader in the process-wide weak registry,
// per spec §4.G and §9's cyclic-reference note.
func (l *Loader) LoadFromBytes(mod RawModule) (*Module, error) {
	if len(mod.NativeLibraryImports) > 0 {
		return nil, errors.New("loader", errors.LDR001,
			"module requests unmanaged library load, which this sandbox refuses outright",
			map[string]any{"libraries": mod.NativeLibraryImports})
	}

	l.mu.Lock()
	l.assemblies[mod.Assembly] = true
	l.mu.Unlock()

	out := &Module{Assembly: mod.Assembly}
	for _, m := range mod.Methods {
		instrumented, err := l.instrumentMethod(m)
		if err != nil {
			return nil, err
		}
		out.Methods = append(out.Methods, RawMethod{Owner: m.Owner, Ref: m.Ref, Body: instrumented})
	}

	// Every type touched by at least one instrumented method gets its
	// guard holder's static initializer run exactly once, per spec
	// §4.F/§8: "the guard-holder's cache field for site S is initialised
	// to canCallAlways(S) exactly once before first use."
	l.mu.Lock()
	holders := make([]*guard.Holder, 0, len(l.holders))
	for _, h := range l.holders {
		holders = append(holders, h)
	}
	l.mu.Unlock()
	for _, h := range holders {
		h.Init()
	}

	registerModule(out, l)
	return out, nil
}

// isAlreadyInstrumented detects the verifier-prelude idempotence marker:
// the body's first two instructions are exactly ldsfld <verifier-flag>;
// pop. A body that already carries this marker round-trips as a no-op
// (spec §8).
func isAlreadyInstrumented(body rewrite.MethodBody) bool {
	if len(body.Instrs) < 2 {
		return false
	}
	first, second := body.Instrs[0], body.Instrs[1]
	return first.Op == rewrite.Ldsfld && first.Operand == verifierFlagOperand && second.Op == rewrite.Pop
}

func (l *Loader) instrumentMethod(m RawMethod) (rewrite.MethodBody, error) {
	if isAlreadyInstrumented(m.Body) {
		return m.Body, nil
	}

	var rw rewrite.Rewriter
	rw.Start(m.Body)

	// pendingDelegate carries an ldftn/ldvirtftn target across to the
	// newobj <DelegateCtor> that must immediately follow it, per spec
	// §4.G(ii)'s "replace the function-pointer load and the following
	// newobj" rule -- the replacement is only emitted once both halves
	// of the pattern are in hand.
	var pendingDelegate *pendingDelegateState

	for {
		cur, ok := rw.Current()
		if !ok {
			break
		}

		switch {
		case cur.Op == rewrite.Ldfld || cur.Op == rewrite.Stfld || cur.Op == rewrite.Ldsfld || cur.Op == rewrite.Stsfld:
			l.instrumentFieldAccess(&rw, m.Owner, cur)

		case cur.Op == rewrite.Newobj && pendingDelegate != nil:
			finishDelegateCreation(&rw, *pendingDelegate, cur)
			pendingDelegate = nil

		case cur.Op == rewrite.Call || cur.Op == rewrite.Callvirt || cur.Op == rewrite.Newobj:
			if err := l.instrumentCall(&rw, m.Owner, cur); err != nil {
				return rewrite.MethodBody{}, err
			}

		case cur.Op == rewrite.Ldftn || cur.Op == rewrite.Ldvirtftn:
			pendingDelegate = startDelegateCreation(&rw, cur)

		case cur.Op == rewrite.Localloc:
			if err := l.instrumentLocalloc(&rw); err != nil {
				return rewrite.MethodBody{}, err
			}

		default:
			rw.Advance(true)
		}
	}

	return rw.Finish()
}
