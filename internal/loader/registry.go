package loader

import (
	"runtime"
	"sync"

	"github.com/modguard/modguard/internal/vm"
)

// registry is the process-wide weak module -> loader map spec §3 and §9
// describe: "a process-wide weak association maps each loaded module to
// its owning loader... weak in the module direction so module unload
// reclaims the entry." Go has no true weak map. runtime.AddCleanup is the
// closest available primitive: it runs a cleanup function after its
// target object becomes unreachable, without itself keeping the object
// alive. This repo uses that cleanup to deregister the entry once the
// *Module is collected, which reproduces the *lifecycle* spec §3
// describes (the entry does not outlive its module) but not true weak-
// reference semantics (a live Module here still pins its registry entry
// exactly as a strong map would -- the entry simply self-removes instead
// of leaking once the Module is gone). Documented here rather than
// papered over: it is an approximation, not an identical mechanism.
var (
	registryMu sync.RWMutex
	registry   = make(map[vm.AssemblyID]*Loader)
)

// registerModule associates mod's assembly with l in the weak registry,
// and arranges for the association to be torn down once mod is no longer
// reachable from any root the host holds.
func registerModule(mod *Module, l *Loader) {
	registryMu.Lock()
	registry[mod.Assembly] = l
	registryMu.Unlock()

	assembly := mod.Assembly
	runtime.AddCleanup(mod, func(a vm.AssemblyID) {
		registryMu.Lock()
		delete(registry, a)
		registryMu.Unlock()
	}, assembly)
}

// LoaderFor looks up the loader registered for assembly, if any. A
// missing entry is the trusted-caller / load-boundary rule: the access
// is treated as fully trusted and passes without check (spec §7), except
// where a caller specifically needs to distinguish "never registered"
// from "registered but since unloaded" -- this registry does not retain
// that distinction, matching the weak-map's own behavior.
func LoaderFor(assembly vm.AssemblyID) (*Loader, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	l, ok := registry[assembly]
	return l, ok
}
