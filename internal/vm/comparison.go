// Comparison and boolean logic, spec §4.2. Eq/Ne use spec §3's structural
// Equal; Lt/Le/Gt/Ge only accept Int/Float/String operands (ordering is
// undefined for everything else, per spec §3).
package vm

import (
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opEq(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	return vm.push(value.Bool(value.Equal(a, b)))
}

func (vm *VM) opNe(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	return vm.push(value.Bool(!value.Equal(a, b)))
}

func (vm *VM) compareOrdered(op string) (int, error) {
	a, b, err := vm.popNumPair()
	if err != nil {
		return 0, err
	}
	if a.Kind == value.KindString && b.Kind == value.KindString {
		switch {
		case a.S < b.S:
			return -1, nil
		case a.S > b.S:
			return 1, nil
		default:
			return 0, nil
		}
	}
	af, _, aOK := numeric(a)
	bf, _, bOK := numeric(b)
	if !aOK || !bOK {
		return 0, vmerrors.NewTypeError(op, "Int, Float, or String", a.Kind.String())
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func (vm *VM) opLt(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	c, err := vm.compareOrdered("Lt")
	if err != nil {
		return err
	}
	return vm.push(value.Bool(c < 0))
}

func (vm *VM) opLe(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	c, err := vm.compareOrdered("Le")
	if err != nil {
		return err
	}
	return vm.push(value.Bool(c <= 0))
}

func (vm *VM) opGt(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	c, err := vm.compareOrdered("Gt")
	if err != nil {
		return err
	}
	return vm.push(value.Bool(c > 0))
}

func (vm *VM) opGe(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	c, err := vm.compareOrdered("Ge")
	if err != nil {
		return err
	}
	return vm.push(value.Bool(c >= 0))
}

func (vm *VM) opAnd(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	return vm.push(value.Bool(value.Truthy(a) && value.Truthy(b)))
}

func (vm *VM) opOr(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	return vm.push(value.Bool(value.Truthy(a) || value.Truthy(b)))
}

func (vm *VM) opNot(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	return vm.push(value.Bool(!value.Truthy(v)))
}
