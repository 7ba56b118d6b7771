package violation

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/modguard/modguard/internal/ident"
	"github.com/modguard/modguard/internal/vm"
)

var (
	violationTag = color.New(color.FgRed, color.Bold).SprintFunc()
	assemblyDim  = color.New(color.Faint).SprintFunc()
)

// LogAndContinueHandler writes a colorized one-line report to Out (stderr
// by default) and returns nil, letting the sandboxed call proceed as if
// it had been allowed. Grounded on the teacher's fatih/color-based CLI
// diagnostics in cmd/ailang and internal/repl.
type LogAndContinueHandler struct {
	Out io.Writer
}

// NewLogAndContinueHandler returns a handler writing to os.Stderr.
func NewLogAndContinueHandler() *LogAndContinueHandler {
	return &LogAndContinueHandler{Out: os.Stderr}
}

// OnViolation logs and returns nil.
func (h *LogAndContinueHandler) OnViolation(assembly vm.AssemblyID, member ident.MemberID) error {
	out := h.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "%s denied access to token %d %s\n",
		violationTag("[cas-violation]"), member.Token, assemblyDim("from "+assembly.String()))
	return nil
}
