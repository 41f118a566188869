// Arithmetic, spec §4.2: the generic Add/Sub/Mul/Div/Mod/Neg operators
// coerce Int/Float per the usual numeric-tower rule (any Float operand
// promotes the result to Float); the typed *Int/*Float variants skip that
// coercion and raise TypeError if given the wrong kind, for a compiler
// that already proved the operand types and wants to avoid the checks.
package vm

import (
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) popNumPair() (value.Value, value.Value, error) {
	b, err := vm.popChecked()
	if err != nil {
		return value.Nil(), value.Nil(), err
	}
	a, err := vm.popChecked()
	if err != nil {
		return value.Nil(), value.Nil(), err
	}
	return a, b, nil
}

func numeric(v value.Value) (float64, bool, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.I), true, true
	case value.KindFloat:
		return v.F, false, true
	default:
		return 0, false, false
	}
}

func (vm *VM) opArith(op string) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	if a.Kind == value.KindString && b.Kind == value.KindString && op == "add" {
		return vm.push(value.String(a.S + b.S))
	}
	af, aInt, aOK := numeric(a)
	bf, bInt, bOK := numeric(b)
	if !aOK {
		return vmerrors.NewTypeError(op, "Int or Float", a.Kind.String())
	}
	if !bOK {
		return vmerrors.NewTypeError(op, "Int or Float", b.Kind.String())
	}
	bothInt := aInt && bInt
	switch op {
	case "add":
		if bothInt {
			return vm.push(value.Int(a.I + b.I))
		}
		return vm.push(value.Float(af + bf))
	case "sub":
		if bothInt {
			return vm.push(value.Int(a.I - b.I))
		}
		return vm.push(value.Float(af - bf))
	case "mul":
		if bothInt {
			return vm.push(value.Int(a.I * b.I))
		}
		return vm.push(value.Float(af * bf))
	case "div":
		if bothInt {
			if b.I == 0 {
				return vmerrors.New(vmerrors.DivisionByZero, "integer division by zero")
			}
			return vm.push(value.Int(a.I / b.I))
		}
		if bf == 0 {
			return vmerrors.New(vmerrors.DivisionByZero, "float division by zero")
		}
		return vm.push(value.Float(af / bf))
	case "mod":
		if !bothInt {
			return vmerrors.NewTypeError("mod", "Int", "Float")
		}
		if b.I == 0 {
			return vmerrors.New(vmerrors.DivisionByZero, "integer modulo by zero")
		}
		return vm.push(value.Int(a.I % b.I))
	}
	return vmerrors.New(vmerrors.RuntimeErrorKind, "unknown arithmetic op %q", op)
}

func (vm *VM) opNeg(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	switch v.Kind {
	case value.KindInt:
		return vm.push(value.Int(-v.I))
	case value.KindFloat:
		return vm.push(value.Float(-v.F))
	default:
		return vmerrors.NewTypeError("neg", "Int or Float", v.Kind.String())
	}
}

func (vm *VM) opTypedIntBinary(op string) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	if a.Kind != value.KindInt {
		return vmerrors.NewTypeError(op, "Int", a.Kind.String())
	}
	if b.Kind != value.KindInt {
		return vmerrors.NewTypeError(op, "Int", b.Kind.String())
	}
	switch op {
	case "addint":
		return vm.push(value.Int(a.I + b.I))
	case "subint":
		return vm.push(value.Int(a.I - b.I))
	case "mulint":
		return vm.push(value.Int(a.I * b.I))
	case "divint":
		if b.I == 0 {
			return vmerrors.New(vmerrors.DivisionByZero, "integer division by zero")
		}
		return vm.push(value.Int(a.I / b.I))
	}
	return vmerrors.New(vmerrors.RuntimeErrorKind, "unknown typed int op %q", op)
}

func (vm *VM) opTypedFloatBinary(op string) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	if a.Kind != value.KindFloat {
		return vmerrors.NewTypeError(op, "Float", a.Kind.String())
	}
	if b.Kind != value.KindFloat {
		return vmerrors.NewTypeError(op, "Float", b.Kind.String())
	}
	switch op {
	case "addfloat":
		return vm.push(value.Float(a.F + b.F))
	case "subfloat":
		return vm.push(value.Float(a.F - b.F))
	case "mulfloat":
		return vm.push(value.Float(a.F * b.F))
	case "divfloat":
		if b.F == 0 {
			return vmerrors.New(vmerrors.DivisionByZero, "float division by zero")
		}
		return vm.push(value.Float(a.F / b.F))
	}
	return vmerrors.New(vmerrors.RuntimeErrorKind, "unknown typed float op %q", op)
}

func (vm *VM) opStrConcat(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	a, b, err := vm.popNumPair()
	if err != nil {
		return err
	}
	if a.Kind != value.KindString || b.Kind != value.KindString {
		return vmerrors.NewTypeError("StrConcat", "String", a.Kind.String())
	}
	return vm.push(value.String(a.S + b.S))
}
