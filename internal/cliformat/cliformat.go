// Package cliformat is the JSON module description `cmd/modguard load` and
// `cmd/modguard inspect` accept on disk, standing in for what a real host
// would hand the loader straight out of metadata parsing. It exists only
// to give the CLI something concrete to read -- a real embedding never
// goes through this package, it calls internal/loader directly with
// already-parsed vm/rewrite values.
package cliformat

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/modguard/modguard/internal/loader"
	"github.com/modguard/modguard/internal/rewrite"
	"github.com/modguard/modguard/internal/stackalloc"
	"github.com/modguard/modguard/internal/vm"
)

// TypeDecl names one type this module declares or references. Only Name
// and Token matter for identity; cross-assembly types referenced from a
// method body are declared the same way with a non-empty Assembly.
type TypeDecl struct {
	Name     string `json:"name"`
	Token    uint32 `json:"token"`
	Assembly string `json:"assembly,omitempty"`
}

// FieldDecl is the JSON shape of a vm.FieldRef operand.
type FieldDecl struct {
	Type       string `json:"type"`
	Token      uint32 `json:"token"`
	Name       string `json:"name"`
	Visibility string `json:"visibility,omitempty"`
	Static     bool   `json:"static,omitempty"`
}

// MethodDecl is the JSON shape of a vm.MethodRef operand.
type MethodDecl struct {
	Type      string   `json:"type"`
	Token     uint32   `json:"token"`
	Name      string   `json:"name"`
	IsVirtual bool     `json:"virtual,omitempty"`
	IsFinal   bool     `json:"final,omitempty"`
	IsStatic  bool     `json:"static,omitempty"`
	IsCtor    bool     `json:"ctor,omitempty"`
	Params    []string `json:"params,omitempty"`
}

// SpanCtorDecl is the JSON shape of a stackalloc.SpanCtor operand, the one
// Newobj shape legal immediately after a Localloc.
type SpanCtorDecl struct {
	ElemType string `json:"elem_type"`
	ElemSize int    `json:"elem_size,omitempty"`
}

// Instruction is the JSON shape of one rewrite.Instr. Exactly one of the
// operand fields is populated, chosen by Op.
type Instruction struct {
	Op     string        `json:"op"`
	Field  *FieldDecl    `json:"field,omitempty"`
	Method *MethodDecl   `json:"method,omitempty"`
	Span   *SpanCtorDecl `json:"span,omitempty"`
	Type   string        `json:"type,omitempty"`
	Value  int           `json:"value,omitempty"`
}

// Method is one method's declaration plus its uninstrumented body.
type Method struct {
	Owner string        `json:"owner"`
	Name  string        `json:"name"`
	Token uint32        `json:"token"`
	Body  []Instruction `json:"body"`
}

// Module is the on-disk shape `modguard load`/`modguard inspect` read.
type Module struct {
	Assembly             string     `json:"assembly"`
	NativeLibraryImports []string   `json:"native_library_imports,omitempty"`
	Types                []TypeDecl `json:"types"`
	Methods              []Method   `json:"methods"`
}

// Load reads and assembles a Module description from path into the
// vm/rewrite values internal/loader.LoadFromBytes expects.
func Load(path string) (loader.RawModule, map[string]vm.TypeRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return loader.RawModule{}, nil, fmt.Errorf("read module: %w", err)
	}
	var m Module
	if err := json.Unmarshal(data, &m); err != nil {
		return loader.RawModule{}, nil, fmt.Errorf("parse module: %w", err)
	}
	return assemble(m)
}

func assemble(m Module) (loader.RawModule, map[string]vm.TypeRef, error) {
	asm := vm.NewAssemblyID(m.Assembly)
	types := make(map[string]vm.TypeRef, len(m.Types))
	for _, td := range m.Types {
		owner := asm
		if td.Assembly != "" {
			owner = vm.NewAssemblyID(td.Assembly)
		}
		types[td.Name] = vm.TypeRef{Assembly: owner, Token: vm.Token(td.Token), Name: td.Name}
	}

	raw := loader.RawModule{
		Assembly:             asm,
		DisplayName:          m.Assembly,
		NativeLibraryImports: m.NativeLibraryImports,
	}

	for _, md := range m.Methods {
		owner, ok := types[md.Owner]
		if !ok {
			return loader.RawModule{}, nil, fmt.Errorf("method %s references undeclared type %s", md.Name, md.Owner)
		}

		var instrs []rewrite.Instr
		for offset, ins := range md.Body {
			instr, err := assembleInstr(offset, ins, types)
			if err != nil {
				return loader.RawModule{}, nil, fmt.Errorf("method %s: %w", md.Name, err)
			}
			instrs = append(instrs, instr)
		}

		raw.Methods = append(raw.Methods, loader.RawMethod{
			Owner: owner,
			Ref:   vm.MethodRef{Type: owner, Token: vm.Token(md.Token), Name: md.Name},
			Body:  rewrite.MethodBody{Instrs: instrs},
		})
	}

	return raw, types, nil
}

var opcodesByName = map[string]rewrite.Opcode{
	"Nop": rewrite.Nop, "Dup": rewrite.Dup, "Pop": rewrite.Pop,
	"Ldsfld": rewrite.Ldsfld, "Stsfld": rewrite.Stsfld,
	"Ldfld": rewrite.Ldfld, "Stfld": rewrite.Stfld,
	"Call": rewrite.Call, "Callvirt": rewrite.Callvirt, "Newobj": rewrite.Newobj,
	"Ldftn": rewrite.Ldftn, "Ldvirtftn": rewrite.Ldvirtftn,
	"Constrained": rewrite.Constrained,
	"Localloc":    rewrite.Localloc, "Ldc": rewrite.Ldc, "Mul": rewrite.Mul, "Ceq": rewrite.Ceq,
	"Ret": rewrite.Ret, "Throw": rewrite.Throw,
}

func assembleInstr(offset int, ins Instruction, types map[string]vm.TypeRef) (rewrite.Instr, error) {
	op, ok := opcodesByName[ins.Op]
	if !ok {
		return rewrite.Instr{}, fmt.Errorf("unknown opcode %q", ins.Op)
	}

	instr := rewrite.Instr{Offset: offset, Op: op}
	switch {
	case ins.Span != nil:
		owner, ok := types[ins.Span.ElemType]
		if !ok {
			return rewrite.Instr{}, fmt.Errorf("span element references undeclared type %s", ins.Span.ElemType)
		}
		instr.Operand = stackalloc.SpanCtor{ElemType: owner, ElemSize: ins.Span.ElemSize}
	case ins.Field != nil:
		owner, ok := types[ins.Field.Type]
		if !ok {
			return rewrite.Instr{}, fmt.Errorf("field %s references undeclared type %s", ins.Field.Name, ins.Field.Type)
		}
		instr.Operand = vm.FieldRef{
			Type: owner, Token: vm.Token(ins.Field.Token), Name: ins.Field.Name,
			Visibility: parseVisibility(ins.Field.Visibility), Static: ins.Field.Static,
		}
	case ins.Method != nil:
		owner, ok := types[ins.Method.Type]
		if !ok {
			return rewrite.Instr{}, fmt.Errorf("method %s references undeclared type %s", ins.Method.Name, ins.Method.Type)
		}
		params := make([]vm.ParamRef, len(ins.Method.Params))
		for i, p := range ins.Method.Params {
			params[i] = vm.ParamRef{TypeName: p}
		}
		instr.Operand = vm.MethodRef{
			Type: owner, Token: vm.Token(ins.Method.Token), Name: ins.Method.Name,
			IsVirtual: ins.Method.IsVirtual, IsFinal: ins.Method.IsFinal,
			IsStatic: ins.Method.IsStatic, IsCtor: ins.Method.IsCtor, Params: params,
		}
	case ins.Type != "":
		owner, ok := types[ins.Type]
		if !ok {
			return rewrite.Instr{}, fmt.Errorf("instruction references undeclared type %s", ins.Type)
		}
		instr.Operand = owner
	case ins.Op == "Ldc":
		instr.Operand = ins.Value
	}
	return instr, nil
}

func parseVisibility(s string) vm.Visibility {
	switch s {
	case "public":
		return vm.VisPublic
	case "protected":
		return vm.VisProtected
	default:
		return vm.VisPrivate
	}
}

// FormatInstr renders one instruction for `modguard inspect` output.
func FormatInstr(i rewrite.Instr) string {
	if i.Sentinel() {
		return fmt.Sprintf("      %-10v %v", i.Op, i.Operand)
	}
	return fmt.Sprintf("%4d  %-10v %v", i.Offset, i.Op, i.Operand)
}
