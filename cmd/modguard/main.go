// Command modguard is the CLI front end for the CAS sandbox: build a
// policy from a YAML manifest, instrument a module's bodies against that
// policy, and inspect the result. Grounded on the teacher's
// cmd/ailang/main.go command dispatch (run/repl/test/check), rebuilt on
// cobra/pflag instead of the stdlib flag package.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	dim   = color.New(color.Faint).SprintFunc()
)

func main() {
	var noColor bool

	root := &cobra.Command{
		Use:   "modguard",
		Short: "Code-access-security sandbox for untrusted plug-in modules",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	// Bound directly against pflag rather than cobra's thin wrapper, since
	// this is the one flag every subcommand should inherit.
	root.PersistentFlags().AddFlag(&pflag.Flag{
		Name:     "no-color",
		Usage:    "disable colorized output",
		Value:    newBoolValue(&noColor),
		DefValue: "false",
	})

	root.AddCommand(newPolicyCmd())
	root.AddCommand(newLoadCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
		os.Exit(1)
	}
}

// boolValue adapts a *bool to pflag.Value, for the one flag registered
// directly against pflag instead of through cobra's StringVar-style
// sugar.
type boolValue struct{ p *bool }

func newBoolValue(p *bool) *boolValue { return &boolValue{p: p} }

func (b *boolValue) String() string {
	if b.p == nil {
		return "false"
	}
	if *b.p {
		return "true"
	}
	return "false"
}

func (b *boolValue) Set(s string) error {
	*b.p = s == "true" || s == "1"
	return nil
}

func (b *boolValue) Type() string { return "bool" }
