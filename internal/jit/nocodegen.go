package jit

import "fmt"

// NoCodegenCompiler is the only Compiler implementation in this repo: it
// always fails, exercising the engine's fallback-to-interpreter path
// without pretending to implement native-code generation, which spec §1
// explicitly excludes ("the JIT gate is specified, the codegen is treated
// as an opaque collaborator").
type NoCodegenCompiler struct{}

func (NoCodegenCompiler) Compile(chunkID int) (Artifact, error) {
	return nil, fmt.Errorf("jit: no codegen backend available for chunk %d", chunkID)
}
