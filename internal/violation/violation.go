// Package violation implements the pluggable policy for what happens
// when a guard denies access: component H of the specification.
package violation

import (
	"sync"

	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

// Handler is the single-operation interface a loader's violation policy
// implements. Replaceable per loader (spec §4.H); callers must treat it
// as safe to invoke from arbitrary goroutines (spec §5's "Shared
// resources" note on the loader's mutable handler field).
type Handler interface {
	OnViolation(assembly vm.AssemblyID, member ident.MemberID) error
}

// DefaultHandler raises a *errors.ReportError (code SEC001) that unwinds
// the call -- this repo's analogue of "unwinds the sandboxed frame" is
// returning the error up through internal/loader's guard entry points.
type DefaultHandler struct{}

// OnViolation always returns a SEC001 report.
func (DefaultHandler) OnViolation(assembly vm.AssemblyID, member ident.MemberID) error {
	return errors.New("violation", errors.SEC001,
		"access denied by sandbox policy",
		map[string]any{"assembly": assembly.String(), "token": uint32(member.Token)})
}
