package cliformat

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/modguard/modguard/internal/binding"
	"github.com/modguard/modguard/internal/vm"
)

// CatalogField/CatalogMethod/CatalogType mirror vm.FieldRef, vm.MethodRef,
// and binding.TypeInfo in JSON form (a constructor is a CatalogMethod with
// ctor set) -- the "reflective type
// enumeration" a real host would hand the loader at process start, per
// spec §4.B.
type CatalogField struct {
	Name       string `json:"name"`
	Token      uint32 `json:"token"`
	Visibility string `json:"visibility,omitempty"`
	Static     bool   `json:"static,omitempty"`
}

type CatalogMethod struct {
	Name            string   `json:"name"`
	Token           uint32   `json:"token"`
	Visibility      string   `json:"visibility,omitempty"`
	Virtual         bool     `json:"virtual,omitempty"`
	Final           bool     `json:"final,omitempty"`
	Static          bool     `json:"static,omitempty"`
	Ctor            bool     `json:"ctor,omitempty"`
	InterfaceImpl   bool     `json:"interface_impl,omitempty"`
	Params          []string `json:"params,omitempty"`
}

type CatalogType struct {
	Name       string          `json:"name"`
	Token      uint32          `json:"token"`
	Kind       string          `json:"kind,omitempty"`
	Visibility string          `json:"visibility,omitempty"`
	Fields     []CatalogField  `json:"fields,omitempty"`
	Methods    []CatalogMethod `json:"methods,omitempty"`
	Nested     []string        `json:"nested,omitempty"`
}

type Catalog struct {
	Assembly string        `json:"assembly"`
	Types    []CatalogType `json:"types"`
}

// LoadCatalog reads a type catalog from path and builds the
// binding.TypeUniverse a manifest.Compile call needs to resolve its
// Allow entries.
func LoadCatalog(path string) (binding.TypeUniverse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return binding.TypeUniverse{}, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return binding.TypeUniverse{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c.toUniverse()
}

func (c Catalog) toUniverse() (binding.TypeUniverse, error) {
	asm := vm.NewAssemblyID(c.Assembly)

	refs := make(map[string]vm.TypeRef, len(c.Types))
	for _, t := range c.Types {
		refs[t.Name] = vm.TypeRef{
			Assembly: asm, Token: vm.Token(t.Token), Name: t.Name,
			Kind: parseKind(t.Kind), Visibility: parseVisibility(t.Visibility),
		}
	}

	infos := make([]binding.TypeInfo, 0, len(c.Types))
	for _, t := range c.Types {
		owner := refs[t.Name]
		info := binding.TypeInfo{Type: owner}

		for _, f := range t.Fields {
			info.Fields = append(info.Fields, vm.FieldRef{
				Type: owner, Token: vm.Token(f.Token), Name: f.Name,
				Visibility: parseVisibility(f.Visibility), Static: f.Static,
			})
		}
		for _, m := range t.Methods {
			params := make([]vm.ParamRef, len(m.Params))
			for i, p := range m.Params {
				params[i] = vm.ParamRef{TypeName: p}
			}
			ref := vm.MethodRef{
				Type: owner, Token: vm.Token(m.Token), Name: m.Name,
				Visibility: parseVisibility(m.Visibility), IsVirtual: m.Virtual,
				IsFinal: m.Final, IsStatic: m.Static, IsCtor: m.Ctor,
				IsInterfaceImpl: m.InterfaceImpl, Params: params,
			}
			if m.Ctor {
				info.Constructors = append(info.Constructors, ref)
			} else {
				info.Methods = append(info.Methods, ref)
			}
		}
		for _, nestedName := range t.Nested {
			nested, ok := refs[nestedName]
			if !ok {
				return binding.TypeUniverse{}, fmt.Errorf("type %s nests undeclared type %s", t.Name, nestedName)
			}
			info.NestedTypes = append(info.NestedTypes, nested)
		}

		infos = append(infos, info)
	}

	return binding.NewTypeUniverse(infos), nil
}

func parseKind(s string) vm.TypeKind {
	switch s {
	case "interface":
		return vm.KindInterface
	case "struct":
		return vm.KindStruct
	case "enum":
		return vm.KindEnum
	case "delegate":
		return vm.KindDelegate
	default:
		return vm.KindClass
	}
}
