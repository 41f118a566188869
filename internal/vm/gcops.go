// The optional tracing GC, spec §4.7. GcAlloc/GcDeref/GcSet/GcCollect
// wrap internal/gc.Collector; traceValue and gcRoots are the VM-supplied
// callbacks that let gc walk the value graph without gc importing vm.
package vm

import (
	"corevm/internal/gc"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opGcAlloc(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	h := vm.GC.Alloc(v)
	return vm.push(value.GcHandle(h))
}

func (vm *VM) opGcDeref(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	hv, err := vm.popChecked()
	if err != nil {
		return err
	}
	h, ok := hv.Obj.(*gc.Handle)
	if hv.Kind != value.KindGcHandle || !ok {
		return vmerrors.NewTypeError("GcDeref", "GcHandle", hv.Kind.String())
	}
	inner, _ := h.Get().(value.Value)
	return vm.push(inner)
}

func (vm *VM) opGcSet(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	hv, err := vm.popChecked()
	if err != nil {
		return err
	}
	h, ok := hv.Obj.(*gc.Handle)
	if hv.Kind != value.KindGcHandle || !ok {
		return vmerrors.NewTypeError("GcSet", "GcHandle", hv.Kind.String())
	}
	h.Set(v)
	return nil
}

func (vm *VM) opGcCollect(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	vm.GC.Collect()
	return nil
}

// gcRoots enumerates every live Value this VM instance can reach:
// operand stack, every frame's env, globals, and process-wide cells
// (spec §4.7: "roots are the operand stack, frame envs, globals, ...").
func (vm *VM) gcRoots() []any {
	roots := make([]any, 0, len(vm.stack)+len(vm.frames)+8)
	for _, v := range vm.stack {
		roots = append(roots, v)
	}
	for _, f := range vm.frames {
		for _, v := range f.Env {
			roots = append(roots, v)
		}
	}
	for _, v := range vm.shared.Globals.Snapshot() {
		roots = append(roots, v)
	}
	for _, v := range vm.shared.cells.snapshot() {
		roots = append(roots, v)
	}
	return roots
}

// traceValue walks one root's outgoing GcHandle references: List/Vector
// elements, Map values, Tagged fields, and a Function's captured env may
// all nest further handles.
func (vm *VM) traceValue(root any, mark func(*gc.Handle)) {
	v, ok := root.(value.Value)
	if !ok {
		return
	}
	vm.traceOne(v, mark, map[uintptr]bool{})
}

func (vm *VM) traceOne(v value.Value, mark func(*gc.Handle), seen map[uintptr]bool) {
	switch v.Kind {
	case value.KindGcHandle:
		if h, ok := v.Obj.(*gc.Handle); ok {
			mark(h)
			if inner, ok := h.Get().(value.Value); ok {
				vm.traceOne(inner, mark, seen)
			}
		}
	case value.KindList, value.KindVector:
		for _, e := range v.Elements() {
			vm.traceOne(e, mark, seen)
		}
	case value.KindMap:
		for _, e := range v.Entries() {
			vm.traceOne(e, mark, seen)
		}
	case value.KindTagged:
		if t, ok := v.Obj.(*value.Tagged); ok {
			for _, e := range t.Values {
				vm.traceOne(e, mark, seen)
			}
		}
	case value.KindFunction:
		if fn, ok := v.Obj.(*value.Function); ok {
			for _, e := range fn.Env {
				vm.traceOne(e, mark, seen)
			}
		}
	}
}
