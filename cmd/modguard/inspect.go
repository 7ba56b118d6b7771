package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modguard/modguard/internal/cliformat"
)

func newInspectCmd() *cobra.Command {
	var modulePath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump a module's raw instruction listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _, err := cliformat.Load(modulePath)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", bold("assembly"), raw.DisplayName)
			for _, method := range raw.Methods {
				fmt.Printf("\n%s %s::%s\n", dim("method"), method.Owner.Name, method.Ref.Name)
				for _, instr := range method.Body.Instrs {
					fmt.Println(cliformat.FormatInstr(instr))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modulePath, "module", "", "path to the module JSON file")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}
