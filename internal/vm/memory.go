// Locals and globals, spec §3/§4.2. Globals go through the COW
// globalsPage (globals.go); locals index directly into the operand stack
// relative to the current frame's base, the same convention the teacher
// uses for its call-frame slots.
package vm

import (
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opLoadLocal(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.getLocal(frame, int(arg))
	if err != nil {
		return err
	}
	return vm.push(v)
}

func (vm *VM) opLoadLocalN(frame *CallFrame, n int) error {
	v, err := vm.getLocal(frame, n)
	if err != nil {
		return err
	}
	return vm.push(v)
}

func (vm *VM) opStoreLocal(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	return vm.setLocal(frame, int(arg), v)
}

func (vm *VM) opLoadGlobal(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	name := vm.constStr(chunk, int(arg))
	v, ok := vm.shared.Globals.Get(name)
	if !ok {
		return unknownIdentifier(name)
	}
	return vm.push(v)
}

func (vm *VM) opStoreGlobal(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	name := vm.constStr(chunk, int(arg))
	if _, ok := vm.shared.Globals.Get(name); !ok {
		return unknownIdentifier(name)
	}
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	vm.shared.Globals.Set(name, v)
	return nil
}

func (vm *VM) opDefineGlobal(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	name := vm.constStr(chunk, int(arg))
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	vm.shared.Globals.Set(name, v)
	return nil
}

func unknownIdentifier(name string) error {
	return vmerrors.New(vmerrors.UnknownIdentifier, "unknown identifier %q", name)
}
