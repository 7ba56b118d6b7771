package violation

import (
	"fmt"
	"sync"

	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

// Violation is one recorded denial.
type Violation struct {
	Assembly vm.AssemblyID
	Member   ident.MemberID
}

// RecordingHandler accumulates violations instead of acting on them
// immediately, for host embedders that want to batch decisions (spec
// §4.H explicitly allows replacements of this shape), e.g. to surface
// every denial a dry-run pass triggered.
type RecordingHandler struct {
	mu         sync.Mutex
	violations []Violation
}

// OnViolation records the denial and returns nil, allowing the
// sandboxed call to proceed so subsequent guards also get a chance to
// fire during a single inspection pass.
func (r *RecordingHandler) OnViolation(assembly vm.AssemblyID, member ident.MemberID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, Violation{Assembly: assembly, Member: member})
	return nil
}

// Violations returns every violation recorded so far.
func (r *RecordingHandler) Violations() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Violation, len(r.violations))
	copy(out, r.violations)
	return out
}

// Flush fails with the first recorded violation, if any, clearing the
// recording so a fresh inspection pass starts empty. Hosts call this
// after a dry-run load to turn "at least one denial occurred" into an
// error they can surface.
func (r *RecordingHandler) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.violations) == 0 {
		return nil
	}
	first := r.violations[0]
	r.violations = nil
	return fmt.Errorf("recorded violation: assembly %s denied token %d", first.Assembly, first.Member.Token)
}
