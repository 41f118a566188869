// Collections, spec §3/§4: Lists are persistent (value semantics) —
// ListSet/ListCons return a new list rather than mutating in place, the
// way the teacher's value.Value copies slices on construction. Maps
// follow the same persistent-by-value discipline.
package vm

import (
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opMakeList(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	items, err := vm.popN(int(arg))
	if err != nil {
		return err
	}
	return vm.push(value.List(items))
}

func (vm *VM) opListGet(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	idxVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	listVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	if listVal.Kind != value.KindList && listVal.Kind != value.KindVector {
		return vmerrors.NewTypeError("ListGet", "List or Vector", listVal.Kind.String())
	}
	if idxVal.Kind != value.KindInt {
		return vmerrors.NewTypeError("ListGet", "Int", idxVal.Kind.String())
	}
	items := listVal.Elements()
	if idxVal.I < 0 || int(idxVal.I) >= len(items) {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "list index %d out of range (len %d)", idxVal.I, len(items))
	}
	return vm.push(items[idxVal.I])
}

func (vm *VM) opListSet(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	idxVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	listVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	if listVal.Kind != value.KindList && listVal.Kind != value.KindVector {
		return vmerrors.NewTypeError("ListSet", "List or Vector", listVal.Kind.String())
	}
	if idxVal.Kind != value.KindInt {
		return vmerrors.NewTypeError("ListSet", "Int", idxVal.Kind.String())
	}
	items := listVal.Elements()
	if idxVal.I < 0 || int(idxVal.I) >= len(items) {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "list index %d out of range (len %d)", idxVal.I, len(items))
	}
	next := append([]value.Value(nil), items...)
	next[idxVal.I] = v
	if listVal.Kind == value.KindVector {
		return vm.push(value.Vector(next))
	}
	return vm.push(value.List(next))
}

func (vm *VM) opListHead(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	items := v.Elements()
	if len(items) == 0 {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "head of empty list")
	}
	return vm.push(items[0])
}

func (vm *VM) opListTail(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	items := v.Elements()
	if len(items) == 0 {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "tail of empty list")
	}
	return vm.push(value.List(append([]value.Value(nil), items[1:]...)))
}

func (vm *VM) opListCons(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	tail, err := vm.popChecked()
	if err != nil {
		return err
	}
	head, err := vm.popChecked()
	if err != nil {
		return err
	}
	items := append([]value.Value{head}, tail.Elements()...)
	return vm.push(value.List(items))
}

func (vm *VM) opListLen(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if v.Kind == value.KindMap {
		return vm.push(value.Int(int64(len(v.Entries()))))
	}
	return vm.push(value.Int(int64(len(v.Elements()))))
}

func (vm *VM) opListEmpty(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return vm.push(value.List(nil))
}

func (vm *VM) opMakeMap(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	pairs, err := vm.popN(int(arg) * 2)
	if err != nil {
		return err
	}
	m := make(map[string]value.Value, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k := pairs[i]
		if k.Kind != value.KindString && k.Kind != value.KindSymbol {
			return vmerrors.NewTypeError("MakeMap", "String or Symbol key", k.Kind.String())
		}
		m[k.S] = pairs[i+1]
	}
	return vm.push(value.Map(m))
}

func (vm *VM) opMapGet(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	keyVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	mapVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	if mapVal.Kind != value.KindMap {
		return vmerrors.NewTypeError("MapGet", "Map", mapVal.Kind.String())
	}
	v, ok := mapVal.Entries()[keyVal.S]
	if !ok {
		return vm.push(value.Nil())
	}
	return vm.push(v)
}

func (vm *VM) opMapSet(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	keyVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	mapVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	if mapVal.Kind != value.KindMap {
		return vmerrors.NewTypeError("MapSet", "Map", mapVal.Kind.String())
	}
	next := make(map[string]value.Value, len(mapVal.Entries())+1)
	for k, mv := range mapVal.Entries() {
		next[k] = mv
	}
	next[keyVal.S] = v
	return vm.push(value.Map(next))
}
