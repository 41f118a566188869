// Control flow, spec §4.2. Jump/JumpIf/JumpIfNot carry an absolute
// instruction index in arg rather than a relative offset: since this
// repo's Instr stream is one decoded instruction per slot (not a raw byte
// stream), the assembler resolves jump targets to absolute indices at
// patch time instead of encoding a signed relative offset into an
// unsigned arg (see internal/bytecode/builder). LoopStart/LoopEnd are
// no-op markers: they transfer no control and record nothing in the usage
// tracker.
package vm

import "corevm/internal/value"

func (vm *VM) opJump(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	frame.IP = int(arg)
	return nil
}

func (vm *VM) opJumpIf(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if value.Truthy(v) {
		frame.IP = int(arg)
	}
	return nil
}

func (vm *VM) opJumpIfNot(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if !value.Truthy(v) {
		frame.IP = int(arg)
	}
	return nil
}

func (vm *VM) opCall(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	argc := int(arg)
	args, err := vm.popN(argc)
	if err != nil {
		return err
	}
	callee, err := vm.popChecked()
	if err != nil {
		return err
	}
	return vm.invoke(callee, args)
}

func (vm *VM) opTailCall(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	argc := int(arg)
	args, err := vm.popN(argc)
	if err != nil {
		return err
	}
	callee, err := vm.popChecked()
	if err != nil {
		return err
	}
	return vm.invokeTail(frame, callee, args)
}

func (vm *VM) opReturn(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	vm.doReturn(frame, v)
	return nil
}

func (vm *VM) opHalt(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	vm.doHalt()
	return nil
}

func (vm *VM) opLoopStart(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return nil
}

func (vm *VM) opLoopEnd(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return nil
}

func (vm *VM) opNop(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return nil
}
