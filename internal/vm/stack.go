// Stack literal opcodes, spec §4.2. The small immediate pushes
// (PushInt0/1/2, PushTrue/False/Nil) exist purely so common constants
// don't need a constant-pool round trip, mirroring the teacher's
// OP_CONSTANT vs dedicated small-int opcodes split.
package vm

import (
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opPushConst(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	idx := int(arg)
	if idx < 0 || idx >= len(chunk.Constants) {
		return vmerrors.New(vmerrors.InvalidConstantIndex, "constant index %d out of range (pool size %d)", idx, len(chunk.Constants))
	}
	return vm.push(chunk.Constants[idx])
}

func (vm *VM) opPop(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	_, err := vm.popChecked()
	return err
}

func (vm *VM) opPopN(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	_, err := vm.popN(int(arg))
	return err
}

func (vm *VM) opDup(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.peek(0)
	if err != nil {
		return err
	}
	return vm.push(v)
}

func (vm *VM) opSwap(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return vm.swapTop()
}
