// Package manifest is the human-authored policy surface: a YAML document
// naming the types and members a sandbox should allow, compiled into an
// ident.CasPolicy at load time. Grounded on the teacher's
// internal/manifest (schema-versioned document, Load/Validate round
// trip) and internal/schema (deterministic marshaling), generalized from
// "which example files are known working" to "which members are
// allowed".
package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/modguard/modguard/internal/binding"
	"github.com/modguard/modguard/internal/errors"
	"github.com/modguard/modguard/internal/ident"
)

// SchemaVersion is the only schema string this package accepts, per the
// teacher's schema.Accepts gate.
const SchemaVersion = "modguard.policy/v1"

// MemberEntry names one member refinement within an Allow entry. Kind is
// "field", "method", or "constructor"; Signature disambiguates an
// overloaded method/constructor the same way TypeBinding.WithMethod's
// variadic signature argument does.
type MemberEntry struct {
	Kind      string   `yaml:"kind"`
	Name      string   `yaml:"name"`
	Signature []string `yaml:"signature,omitempty"`
}

// AllowEntry grants access to one type at an accessibility level, plus
// whatever member refinements narrow it further.
type AllowEntry struct {
	Type          string        `yaml:"type"`
	Accessibility string        `yaml:"accessibility"`
	Members       []MemberEntry `yaml:"members,omitempty"`
}

// Manifest is the parsed shape of a policy YAML file.
type Manifest struct {
	Schema         string       `yaml:"schema"`
	Sandbox        string       `yaml:"sandbox,omitempty"`
	DefaultSandbox bool         `yaml:"default_sandbox,omitempty"`
	Allow          []AllowEntry `yaml:"allow"`
}

// Load reads and validates a policy manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New("manifest", errors.POL002,
			"malformed policy manifest: "+err.Error(), map[string]any{"path": path})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks internal consistency: schema version, non-empty type
// names, and member-kind spelling. It does not check that named types
// exist -- that can only be confirmed against a binding.TypeUniverse, in
// Compile.
func (m *Manifest) Validate() error {
	if m.Schema != SchemaVersion {
		return errors.New("manifest", errors.POL002,
			fmt.Sprintf("unsupported schema version %q (expected %q)", m.Schema, SchemaVersion), nil)
	}
	seen := make(map[string]bool, len(m.Allow))
	for _, a := range m.Allow {
		if a.Type == "" {
			return errors.New("manifest", errors.POL002, "allow entry missing type", nil)
		}
		if seen[a.Type] {
			return errors.New("manifest", errors.POL002,
				"duplicate allow entry for type "+a.Type, map[string]any{"type": a.Type})
		}
		seen[a.Type] = true
		for _, mem := range a.Members {
			switch mem.Kind {
			case "field", "method", "constructor":
			default:
				return errors.New("manifest", errors.POL002,
					"unknown member kind "+mem.Kind+" on type "+a.Type,
					map[string]any{"type": a.Type, "kind": mem.Kind})
			}
		}
	}
	return nil
}

// Compile resolves every Allow entry against universe and folds the
// result into an ident.CasPolicy, optionally seeded with the default
// sandbox set (spec §7's built-in allow-list) when DefaultSandbox is set.
func (m *Manifest) Compile(universe binding.TypeUniverse) (ident.CasPolicy, error) {
	builder := ident.NewCasPolicyBuilder()
	if m.DefaultSandbox {
		builder = builder.WithDefaultSandbox()
	}

	for _, entry := range m.Allow {
		info, ok := universe.FindByName(entry.Type)
		if !ok {
			return ident.CasPolicy{}, errors.New("manifest", errors.POL001,
				"manifest references unknown type "+entry.Type, map[string]any{"type": entry.Type})
		}

		level, err := binding.ParseAccessibility(entry.Accessibility)
		if err != nil {
			return ident.CasPolicy{}, err
		}

		tb := binding.NewTypeBinding(universe, info.Type, level)
		if len(entry.Members) == 0 {
			builder = builder.Allow(tb.Members())
			continue
		}

		for _, mem := range entry.Members {
			refined, err := refine(tb, mem)
			if err != nil {
				return ident.CasPolicy{}, err
			}
			builder = builder.Allow(refined.Members())
		}
	}

	return builder.Build(), nil
}

func refine(tb *binding.TypeBinding, mem MemberEntry) (*binding.TypeBinding, error) {
	switch mem.Kind {
	case "field":
		return tb.WithField(mem.Name)
	case "constructor":
		return tb.WithConstructor(mem.Signature...)
	default:
		return tb.WithMethod(mem.Name, mem.Signature...)
	}
}

// Save writes m back out as deterministically sorted YAML -- entries
// ordered by type name so repeated Save calls over an unchanged Manifest
// produce byte-identical output, mirroring the teacher's
// sort-before-marshal step in Manifest.Save.
func (m *Manifest) Save(path string) error {
	sorted := make([]AllowEntry, len(m.Allow))
	copy(sorted, m.Allow)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Type < sorted[j].Type })
	out := *m
	out.Allow = sorted

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
