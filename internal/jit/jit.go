// Package jit implements the JIT gate of spec §4.8: a policy that decides
// when a hot chunk should be compiled, plus the (opaque, out-of-scope per
// spec §1) Compiler collaborator it calls into. Codegen itself is never
// implemented here — only the gate and the fallback-to-interpreter path
// that spec §4.8/§7 require.
package jit

import "corevm/internal/usage"

// Artifact is whatever the Compiler collaborator hands back; the engine
// treats it opaquely and only ever calls Run.
type Artifact interface {
	Run(args []any) (any, error)
}

// Compiler is the out-of-scope codegen collaborator (spec §1: "native-code
// generation itself ... is treated as an opaque collaborator").
type Compiler interface {
	Compile(chunkID int) (Artifact, error)
}

// Gate decides, from a chunk's usage stats, whether to ask the Compiler
// to compile it (spec §4.8: should_compile(stats)).
type Gate struct {
	threshold int64
	compiler  Compiler
}

func NewGate(compiler Compiler, threshold int64) *Gate {
	if threshold <= 0 {
		threshold = 1000
	}
	return &Gate{threshold: threshold, compiler: compiler}
}

// ShouldCompile is true once the chunk is a hot path (usage.Stats marks
// one after more than 1,000 executions) and its execution count also
// exceeds the gate's threshold.
func (g *Gate) ShouldCompile(stats *usage.Stats) bool {
	execCount, _, _, hot := stats.Snapshot()
	return hot && execCount > g.threshold
}

// TryCompile asks the Compiler for an artifact; any failure is reported
// to the caller so the engine can silently fall back to the interpreter
// (spec §4.8, §7) rather than propagate the failure as a VM error.
func (g *Gate) TryCompile(chunkID int) (Artifact, bool) {
	if g.compiler == nil {
		return nil, false
	}
	artifact, err := g.compiler.Compile(chunkID)
	if err != nil {
		return nil, false
	}
	return artifact, true
}
