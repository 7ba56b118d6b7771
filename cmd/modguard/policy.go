package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modguard/modguard/internal/cliformat"
	"github.com/modguard/modguard/internal/manifest"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Build and inspect policy manifests",
	}
	cmd.AddCommand(newPolicyBuildCmd())
	return cmd
}

func newPolicyBuildCmd() *cobra.Command {
	var manifestPath, catalogPath, outPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile a YAML policy manifest into a serialized allow-list",
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

			type memberEntry struct {
				Assembly string `json:"assembly"`
				Token    uint32 `json:"token"`
			}
			entries := make([]memberEntry, 0, policy.Size())
			for _, id := range policy.MemberIDs() {
				entries = append(entries, memberEntry{Assembly: id.Assembly.String(), Token: uint32(id.Token)})
			}

			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
				return err
			}

			fmt.Printf("%s compiled %s member(s) from %s into %s\n",
				green("✓"), bold(fmt.Sprint(policy.Size())), manifestPath, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the policy manifest YAML file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "path to the type catalog JSON file")
	cmd.Flags().StringVar(&outPath, "out", "policy.json", "output path for the compiled allow-list")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}
