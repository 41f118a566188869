package vm

import (
	"time"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

// pushFrame installs a new call frame and enforces the call-depth cap
// (spec §5). Callers that exceed the cap get CallStackOverflow instead of
// a Go-level stack overflow.
func (vm *VM) pushFrame(f *CallFrame) error {
	if err := vm.Security.CheckCallDepth(len(vm.frames) + 1); err != nil {
		return err
	}
	f.StartTime = time.Now()
	vm.frames = append(vm.frames, f)
	return nil
}

// popFrame removes the top frame, truncating the operand stack back to
// where that frame began. Returns true when no frames remain (program
// finished).
func (vm *VM) popFrame() bool {
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	if f.StackBase <= len(vm.stack) {
		vm.stack = vm.stack[:f.StackBase]
	}
	return len(vm.frames) == 0
}

// doReturn implements the Return opcode semantics (spec §4.2, §8 property
// 1). It pops the current frame and either finishes the program or
// delivers retval to the caller. After the outermost Return the operand
// stack is empty and retval is held as the program's result.
func (vm *VM) doReturn(frame *CallFrame, retval value.Value) {
	vm.recordUsage(frame)
	done := vm.popFrame()
	if done {
		vm.finished = true
		vm.result = retval
		return
	}
	vm.push(retval)
}

// doHalt implements the Halt opcode: stop immediately, surfacing whatever
// is on top of the stack (or Nil if empty) as the program's result.
func (vm *VM) doHalt() {
	vm.finished = true
	if len(vm.stack) > 0 {
		vm.result = vm.stack[len(vm.stack)-1]
	} else {
		vm.result = value.Nil()
	}
}

func (vm *VM) push(v value.Value) error {
	if err := vm.Security.CheckOperandStack(len(vm.stack) + 1); err != nil {
		return err
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack)
	if n == 0 {
		return value.Nil()
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	vm.lastPopped = v
	return v
}

func (vm *VM) popChecked() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Nil(), vmerrors.New(vmerrors.StackUnderflow, "pop from empty operand stack")
	}
	return vm.pop(), nil
}

func (vm *VM) popN(n int) ([]value.Value, error) {
	if len(vm.stack) < n {
		return nil, vmerrors.New(vmerrors.StackUnderflow, "need %d operands, have %d", n, len(vm.stack))
	}
	out := append([]value.Value(nil), vm.stack[len(vm.stack)-n:]...)
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out, nil
}

func (vm *VM) peek(distance int) (value.Value, error) {
	idx := len(vm.stack) - 1 - distance
	if idx < 0 || idx >= len(vm.stack) {
		return value.Nil(), vmerrors.New(vmerrors.StackUnderflow, "peek(%d) out of range (stack size %d)", distance, len(vm.stack))
	}
	return vm.stack[idx], nil
}

func (vm *VM) swapTop() error {
	n := len(vm.stack)
	if n < 2 {
		return vmerrors.New(vmerrors.StackUnderflow, "swap needs 2 operands, have %d", n)
	}
	vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
	return nil
}

func (vm *VM) getLocal(frame *CallFrame, idx int) (value.Value, error) {
	abs := frame.StackBase + idx
	if abs < frame.StackBase || abs >= len(vm.stack) {
		return value.Nil(), vmerrors.New(vmerrors.InvalidLocalIndex, "local index %d out of range for frame based at %d (stack size %d)", idx, frame.StackBase, len(vm.stack))
	}
	return vm.stack[abs], nil
}

// recordUsage feeds the usage tracker (spec §4.8) on every frame return
// and, once a chunk crosses the hot-path threshold, asks the JIT gate
// whether to compile it — the gate always falls back to the interpreter
// since no codegen backend exists, but the hook fires exactly where spec
// §4.8 places it.
func (vm *VM) recordUsage(frame *CallFrame) {
	if vm.Usage == nil {
		return
	}
	stats := vm.Usage.Stats(frame.ChunkID)
	stats.RecordExecution(time.Since(frame.StartTime))
	if vm.JIT != nil && vm.JIT.ShouldCompile(stats) {
		vm.JIT.TryCompile(frame.ChunkID)
	}
}

func (vm *VM) setLocal(frame *CallFrame, idx int, v value.Value) error {
	abs := frame.StackBase + idx
	if abs < frame.StackBase || abs >= len(vm.stack) {
		return vmerrors.New(vmerrors.InvalidLocalIndex, "local index %d out of range for frame based at %d (stack size %d)", idx, frame.StackBase, len(vm.stack))
	}
	vm.stack[abs] = v
	return nil
}
