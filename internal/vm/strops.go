package vm

import (
	"strings"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opStrLen(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if v.Kind != value.KindString {
		return vmerrors.NewTypeError("StrLen", "String", v.Kind.String())
	}
	return vm.push(value.Int(int64(len(v.S))))
}

func (vm *VM) opStrUpper(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if v.Kind != value.KindString {
		return vmerrors.NewTypeError("StrUpper", "String", v.Kind.String())
	}
	return vm.push(value.String(strings.ToUpper(v.S)))
}

func (vm *VM) opStrLower(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if v.Kind != value.KindString {
		return vmerrors.NewTypeError("StrLower", "String", v.Kind.String())
	}
	return vm.push(value.String(strings.ToLower(v.S)))
}
