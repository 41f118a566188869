// Package moduleloader implements the module loader external
// collaborator (spec §6): resolving a module name to an AST graph/export
// list in the original spec, narrowed here (since no AST/compiler
// collaborator lives in this repo) to resolving a module name directly to
// a compiled BytecodeImage plus its declared export list.
package moduleloader

import "corevm/internal/bytecode"

// ModuleSource is what a Loader resolves a module name to: a bytecode
// image to run, the chunk id to treat as that module's entry point, and
// the statically declared export names. The VM does not read
// DeclaredExports: a module's exports come only from its ExportBinding
// writes (see DESIGN.md).
type ModuleSource struct {
	Image           *bytecode.BytecodeImage
	EntryChunk      int
	DeclaredExports []string
}

// Loader is the spec §6 `load_module(name) -> {graph, exports}`
// collaborator, narrowed to bytecode images rather than ASTs.
type Loader interface {
	Load(name string) (*ModuleSource, error)
}
