// Package builder is a minimal bytecode assembler: it keeps the teacher
// compiler's own emission idiom (emitByte / addConstant / emit-then-patch
// a jump) re-targeted at spec §3's Instr{opcode, arg:u32} shape, in place
// of a full compiler front end (see DESIGN.md "Dropped teacher modules").
// It is the concrete producer used by tests, the CLI's `asm` subcommand,
// and the S1-S6 scenario fixtures.
package builder

import (
	"fmt"

	"corevm/internal/bytecode"
	"corevm/internal/value"
)

// Func builds one chunk.
type Func struct {
	name      string
	instrs    []bytecode.Instr
	constants []value.Value
	lines     []int
}

func NewFunc(name string) *Func {
	return &Func{name: name}
}

// Emit appends an instruction and returns its index, for later patching.
func (f *Func) Emit(op bytecode.Opcode, arg uint32) int {
	f.instrs = append(f.instrs, bytecode.Instr{Opcode: op, Arg: arg})
	f.lines = append(f.lines, 0)
	return len(f.instrs) - 1
}

// AtLine sets the source line of the most recently emitted instruction.
func (f *Func) AtLine(line int) *Func {
	if len(f.lines) > 0 {
		f.lines[len(f.lines)-1] = line
	}
	return f
}

// Here returns the index the next Emit will land at, for forward jumps.
func (f *Func) Here() int { return len(f.instrs) }

// Patch overwrites the Arg of a previously emitted instruction, the
// teacher compiler's emitJump+patchJump pattern generalized to the new
// Instr shape (no byte-offset backpatching, since jumps carry absolute
// instruction indices rather than byte offsets).
func (f *Func) Patch(at int, arg uint32) {
	if at < 0 || at >= len(f.instrs) {
		panic(fmt.Sprintf("builder: patch index %d out of range", at))
	}
	f.instrs[at].Arg = arg
}

func (f *Func) AddConstant(v value.Value) uint32 {
	f.constants = append(f.constants, v)
	return uint32(len(f.constants) - 1)
}

func (f *Func) Build() *bytecode.Chunk {
	return &bytecode.Chunk{
		Name:         f.name,
		Instructions: append([]bytecode.Instr(nil), f.instrs...),
		Constants:    append([]value.Value(nil), f.constants...),
		SourceMap:    &bytecode.SourceMap{File: f.name, Line: append([]int(nil), f.lines...)},
	}
}

// Image is a BytecodeImage under construction.
type Image struct {
	funcs []*Func
	main  int
}

func NewImage() *Image { return &Image{main: -1} }

// AddFunc registers a chunk builder and returns its chunk id, matching
// spec §3's chunk_id indexing (position in BytecodeImage.Chunks).
func (img *Image) AddFunc(name string) (*Func, int) {
	f := NewFunc(name)
	img.funcs = append(img.funcs, f)
	return f, len(img.funcs) - 1
}

func (img *Image) SetMain(chunkID int) { img.main = chunkID }

func (img *Image) Build() *bytecode.BytecodeImage {
	chunks := make([]*bytecode.Chunk, len(img.funcs))
	for i, f := range img.funcs {
		chunks[i] = f.Build()
	}
	main := img.main
	if main < 0 {
		main = 0
	}
	return &bytecode.BytecodeImage{Chunks: chunks, MainChunk: main}
}
