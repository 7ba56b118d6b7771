package shim

import "github.com/modguard/modguard/internal/vm"

// RegisterDefaults seeds a Table with the built-in replacements for
// ambient-authority APIs: file I/O, reflection emit, and raw memory
// helpers. A host embedder is free to register additional shims; these
// are the ones modguard ships with out of the box.
func RegisterDefaults(t *Table, shimAssembly vm.AssemblyID) {
	fileType := vm.TypeRef{Token: 1, Name: "File", Kind: vm.KindClass, Sealed: true}
	safeFileType := vm.TypeRef{Assembly: shimAssembly, Token: 1001, Name: "SafeFile", Kind: vm.KindClass, Sealed: true}

	writeAllBytes := vm.MethodRef{Type: fileType, Token: 10, Name: "WriteAllBytes", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "String"}, {TypeName: "Byte[]"}}}
	shimWriteAllBytes := vm.MethodRef{Type: safeFileType, Token: 1010, Name: "WriteAllBytes", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "String"}, {TypeName: "Byte[]"}}}
	t.Register(writeAllBytes, shimWriteAllBytes)

	readAllBytes := vm.MethodRef{Type: fileType, Token: 11, Name: "ReadAllBytes", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "String"}}}
	shimReadAllBytes := vm.MethodRef{Type: safeFileType, Token: 1011, Name: "ReadAllBytes", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "String"}}}
	t.Register(readAllBytes, shimReadAllBytes)

	marshalType := vm.TypeRef{Token: 2, Name: "Marshal", Kind: vm.KindClass, Sealed: true}
	safeMarshalType := vm.TypeRef{Assembly: shimAssembly, Token: 1002, Name: "SafeMarshal", Kind: vm.KindClass, Sealed: true}

	copyMem := vm.MethodRef{Type: marshalType, Token: 20, Name: "Copy", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "IntPtr"}, {TypeName: "Byte[]"}, {TypeName: "Int32"}, {TypeName: "Int32"}}}
	shimCopyMem := vm.MethodRef{Type: safeMarshalType, Token: 1020, Name: "Copy", IsStatic: true,
		Params: []vm.ParamRef{{TypeName: "IntPtr"}, {TypeName: "Byte[]"}, {TypeName: "Int32"}, {TypeName: "Int32"}}}
	t.Register(copyMem, shimCopyMem)

	emitType := vm.TypeRef{Token: 3, Name: "AssemblyBuilder", Kind: vm.KindClass}
	safeEmitType := vm.TypeRef{Assembly: shimAssembly, Token: 1003, Name: "SafeEmit", Kind: vm.KindClass, Sealed: true}

	defineDynamic := vm.MethodRef{Type: emitType, Token: 30, Name: "DefineDynamicAssembly", IsStatic: true}
	shimDefineDynamic := vm.MethodRef{Type: safeEmitType, Token: 1030, Name: "Refuse", IsStatic: true}
	t.Register(defineDynamic, shimDefineDynamic)
}
