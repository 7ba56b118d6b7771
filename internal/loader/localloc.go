package loader

import (
	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/stackalloc"
	"github.com/modguard/modguard/internal/vm"
)

// instrumentLocalloc implements spec §4.G(ii)'s localloc bullet:
// VerifyPattern confirms the three-instruction shape starting at the
// rewriter's current position, and Instrument injects the dynamic
// length*sizeof(T) check. Any other shape fails instrumentation with
// RWR002/RWR003 -- a load-time bad-image-format rejection (spec §7
// kind 1), not a runtime violation.
func (l *Loader) instrumentLocalloc(rw *rewrite.Rewriter) error {
	cur, _ := rw.Current()
	next, _ := rw.PeekForward(1)
	after, _ := rw.PeekForward(2)
	window := []rewrite.Instr{cur, next, after}

	elemSize, _, err := stackalloc.VerifyPattern(window, 0, l.fieldTypes)
	if err != nil {
		return err
	}
	stackalloc.Instrument(rw, elemSize)
	return nil
}

// fieldTypes answers internal/stackalloc's recursive unmanaged check by
// consulting the loader's TypeUniverse.
func (l *Loader) fieldTypes(t vm.TypeRef) []vm.TypeRef {
	info, ok := l.universe.Lookup(t)
	if !ok {
		return nil
	}
	out := make([]vm.TypeRef, 0, len(info.Fields))
	for _, f := range info.Fields {
		out = append(out, f.Type)
	}
	return out
}
