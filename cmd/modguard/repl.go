package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/modguard/modguard/internal/binding"
	"github.com/modguard/modguard/internal/cliformat"
)

// newReplCmd builds an interactive shell for browsing a type catalog's
// bindings, grounded on the teacher's internal/repl.REPL.Start loop
// (liner.NewLiner, Prompt/EOF handling with in-session history, ":"-prefixed
// commands). This REPL has no evaluator behind it -- it only answers
// binding.TypeBinding queries against the loaded catalog.
func newReplCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively browse a type catalog's effective bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			universe, err := cliformat.LoadCatalog(catalogPath)
			if err != nil {
				return err
			}
			runRepl(universe, cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "path to the type catalog JSON file")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func runRepl(universe binding.TypeUniverse, out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetMultiLineMode(false)

	fmt.Fprintln(out, bold("modguard repl"))
	fmt.Fprintln(out, dim("bind <type> <accessibility>   — show members a level would allow"))
	fmt.Fprintln(out, dim(":quit                         — exit"))
	fmt.Fprintln(out)

	for {
		input, err := line.Prompt("modguard> ")
		if err == io.EOF {
			fmt.Fprintln(out, green("goodbye"))
			return
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("error"), err)
			continue
		}

		line.AppendHistory(input)
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == ":quit" {
			return
		}

		handleReplCommand(universe, input, out)
	}
}

func handleReplCommand(universe binding.TypeUniverse, input string, out io.Writer) {
	fields := strings.Fields(input)
	if len(fields) != 3 || fields[0] != "bind" {
		fmt.Fprintf(out, "%s usage: bind <type> <accessibility>\n", red("error"))
		return
	}

	info, ok := universe.FindByName(fields[1])
	if !ok {
		fmt.Fprintf(out, "%s unknown type %s\n", red("error"), fields[1])
		return
	}
	level, err := binding.ParseAccessibility(fields[2])
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", red("error"), err)
		return
	}

	tb := binding.NewTypeBinding(universe, info.Type, level)
	lines := tb.Describe()
	fmt.Fprintf(out, "%s members visible to %s:\n", cyan(fields[1]), fields[2])
	if len(lines) == 0 {
		fmt.Fprintln(out, dim("  (none)"))
	}
	for _, l := range lines {
		fmt.Fprintln(out, "  "+l)
	}
}
