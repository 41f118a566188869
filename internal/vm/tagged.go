// Tagged values (algebraic data constructors), spec §3/§4. Grounded on
// the teacher's value.Value tagged-union approach, generalized into
// user-defined constructors rather than a fixed built-in set.
package vm

import (
	"corevm/internal/bytecode"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

// opMakeTagged packs (tag_const_idx<<16)|field_count into arg.
func (vm *VM) opMakeTagged(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	hi, lo := bytecode.UnpackHiLo(arg)
	tag := vm.constStr(chunk, int(hi))
	fields, err := vm.popN(int(lo))
	if err != nil {
		return err
	}
	return vm.push(value.TaggedValue(tag, fields))
}

func (vm *VM) opGetTag(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	t, ok := v.Obj.(*value.Tagged)
	if v.Kind != value.KindTagged || !ok {
		return vmerrors.NewTypeError("GetTag", "Tagged", v.Kind.String())
	}
	return vm.push(value.Symbol(t.Tag))
}

func (vm *VM) opGetTaggedField(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	t, ok := v.Obj.(*value.Tagged)
	if v.Kind != value.KindTagged || !ok {
		return vmerrors.NewTypeError("GetTaggedField", "Tagged", v.Kind.String())
	}
	idx := int(arg)
	if idx < 0 || idx >= len(t.Values) {
		return vmerrors.New(vmerrors.InvalidLocalIndex, "tagged field index %d out of range (arity %d)", idx, len(t.Values))
	}
	return vm.push(t.Values[idx])
}

func (vm *VM) opIsTagged(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	want := vm.constStr(chunk, int(arg))
	if t, ok := v.Obj.(*value.Tagged); ok && v.Kind == value.KindTagged {
		return vm.push(value.Bool(t.Tag == want))
	}
	return vm.push(value.Bool(false))
}
