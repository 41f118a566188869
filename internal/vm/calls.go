package vm

import (
	"strconv"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

// invoke implements the common call convention every call-shaped opcode
// shares (Call, TailCall, Perform dispatching to a handler closure, a
// spawned task's entry call): the operand stack holds argc values for the
// callee immediately below the point of invocation; invoke pushes a new
// frame whose locals 0..argc-1 are those arguments.
func (vm *VM) invoke(callee value.Value, args []value.Value) error {
	switch callee.Kind {
	case value.KindFunction:
		fn := callee.Obj.(*value.Function)
		base := len(vm.stack)
		vm.stack = append(vm.stack, args...)
		// Each activation gets its own copy of the captured environment so
		// StoreUpvalue only ever rebinds this frame's view, never the
		// closure's shared Env (spec §3: "an inner StoreUpvalue writes into
		// the frame's env slot, not the outer closure's").
		env := append([]value.Value(nil), fn.Env...)
		return vm.pushFrame(&CallFrame{ChunkID: fn.ChunkID, IP: 0, StackBase: base, Env: env})
	case value.KindNativeFunction:
		nf := callee.Obj.(*value.NativeFunction)
		if nf.Arity >= 0 && len(args) != nf.Arity {
			return vmerrors.NewTypeError("call", strconv.Itoa(nf.Arity)+" args", strconv.Itoa(len(args))+" args")
		}
		result, err := nf.Fn(args)
		if err != nil {
			if vme, ok := err.(*vmerrors.VMError); ok {
				return vme
			}
			return vmerrors.New(vmerrors.RuntimeErrorKind, "%s: %v", nf.Name, err)
		}
		return vm.push(result)
	default:
		return vmerrors.NewTypeError("call", "Function or NativeFunction", callee.Kind.String())
	}
}

// invokeTail implements TailCall's frame-reuse contract (spec §8 property
// 4): instead of pushing a new frame, it overwrites the current one in
// place, giving O(1) call-stack growth for self-recursive tail calls.
func (vm *VM) invokeTail(frame *CallFrame, callee value.Value, args []value.Value) error {
	fn, ok := callee.Obj.(*value.Function)
	if !ok || callee.Kind != value.KindFunction {
		// Native functions have no frame to reuse; fall back to a regular
		// call so their result still lands correctly for the (about to be
		// discarded) caller frame.
		return vm.invoke(callee, args)
	}
	vm.stack = vm.stack[:frame.StackBase]
	vm.stack = append(vm.stack, args...)
	frame.ChunkID = fn.ChunkID
	frame.IP = 0
	frame.Env = append([]value.Value(nil), fn.Env...)
	return nil
}
