// Closures, spec §3/§4: MakeFunc builds a plain code pointer with no
// captures, MakeClosure captures the top N operand-stack values (in the
// order they were pushed) into a new Function's Env, and
// LoadCaptured/LoadUpvalue/StoreUpvalue access the current frame's
// environment. Grounded on the teacher's Closure{Function, Upvalues}
// shape in internal/value, generalized onto value.Function{ChunkID, Env}.
package vm

import (
	"corevm/internal/bytecode"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) opMakeFunc(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return vm.push(value.FunctionValue(int(arg), nil))
}

// opMakeClosure packs (chunk_id<<16)|capture_count into arg (spec §6).
// The captured values sit on top of the operand stack in the order they
// were pushed, and popN preserves that order, which is exactly what spec
// §8 property 3 ("closure captured-order restoration") requires: Env[i]
// must be the i-th captured value at creation time.
func (vm *VM) opMakeClosure(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	hi, lo := bytecode.UnpackHiLo(arg)
	env, err := vm.popN(int(lo))
	if err != nil {
		return err
	}
	return vm.push(value.FunctionValue(int(hi), env))
}

func (vm *VM) opLoadCaptured(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	idx := int(arg)
	if idx < 0 || idx >= len(frame.Env) {
		return vmerrors.New(vmerrors.InvalidLocalIndex, "captured index %d out of range (env size %d)", idx, len(frame.Env))
	}
	return vm.push(frame.Env[idx])
}

func (vm *VM) opLoadUpvalue(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return vm.opLoadCaptured(frame, chunk, arg)
}

func (vm *VM) opStoreUpvalue(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	idx := int(arg)
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(frame.Env) {
		return vmerrors.New(vmerrors.InvalidLocalIndex, "upvalue index %d out of range (env size %d)", idx, len(frame.Env))
	}
	frame.Env[idx] = v
	return nil
}
