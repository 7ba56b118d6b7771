package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modguard/modguard/internal/cliformat"
	"github.com/modguard/modguard/internal/loader"
	"github.com/modguard/modguard/internal/manifest"
	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/shim"
	"github.com/modguard/modguard/internal/vm"
)

func newLoadCmd() *cobra.Command {
	var manifestPath, catalogPath, modulePath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Compile a policy and instrument a module against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			universe, err := cliformat.LoadCatalog(catalogPath)
			if err != nil {
				return err
			}
			policy, err := m.Compile(universe)
			if err != nil {
				return err
			}

			raw, _, err := cliformat.Load(modulePath)
			if err != nil {
				return err
			}

			l := loader.NewLoader(policy, shim.NewTable(), vm.NewMethodTable(), universe, loader.LoaderOptions{DisplayName: raw.DisplayName})
			mod, err := l.LoadFromBytes(raw)
			if err != nil {
				fmt.Printf("%s %v\n", red("✗"), err)
				return err
			}

			fmt.Printf("%s loaded %s (%s member policy, %s method(s) instrumented)\n",
				green("✓"), bold(raw.DisplayName), bold(fmt.Sprint(policy.Size())), bold(fmt.Sprint(len(mod.Methods))))
			for _, method := range mod.Methods {
				report(method.Ref.Name, method.Body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the policy manifest YAML file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "path to the type catalog JSON file")
	cmd.Flags().StringVar(&modulePath, "module", "", "path to the module JSON file")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("catalog")
	_ = cmd.MarkFlagRequired("module")

	return cmd
}

func report(methodName string, body rewrite.MethodBody) {
	guardSites := 0
	for _, i := range body.Instrs {
		if i.Sentinel() {
			guardSites++
		}
	}
	fmt.Printf("  %s %s: %d instruction(s), %d synthetic\n", cyan("→"), methodName, len(body.Instrs), guardSites)
}
