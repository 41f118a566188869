// Algebraic effects and structured try/catch/finally, spec §4.4. Neither
// exists in the teacher; grounded on
// original_source/rust/fluentai-vm/src/vm.rs's EffectHandler/ErrorHandler
// stacks, expressed with the teacher's push/pop/jump idioms.
package vm

import (
	"corevm/internal/bytecode"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

// HandlerFrame installs an interception table for one effect type: each
// operation name maps to a closure that runs, with the performed
// arguments, in place of the default effect runtime (spec §4.4,
// Open Question: handlers here are one-shot interceptors — the handler
// closure's return value becomes Perform's result — rather than
// resumable continuations, since this bytecode format has no
// continuation-capture opcode; see DESIGN.md).
type HandlerFrame struct {
	EffectType string
	Handlers   map[string]*value.Function
}

// ErrorHandler is one active try/catch/finally region (spec §4.4).
// CatchIP/FinallyIP of -1 mean "absent". TryEnd's own arg is always the
// jump target to take on normal completion (either the finally block or
// whatever follows the whole try statement), so the normal path never
// needs to consult CatchIP at all — only handleThrow does.
type ErrorHandler struct {
	CatchIP    int
	FinallyIP  int
	FrameDepth int
	StackDepth int
}

// finallyCtx is pushed only when a finally block must run on an
// otherwise-uncaught exception path, so the matching FinallyEnd knows to
// resume unwinding afterward instead of falling through normally.
type finallyCtx struct {
	rethrow *vmerrors.VMError
}

const noTarget = 0xFFFFFFFF

func resolveTarget(raw uint16) int {
	if raw == 0xFFFF {
		return -1
	}
	return int(raw)
}

func (vm *VM) opInstallHandler(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	effectType := vm.constStr(chunk, int(arg))
	tableVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	table, ok := tableVal.Obj.(map[string]value.Value)
	if !ok {
		return vmerrors.NewTypeError("InstallHandler", "Map of operation name to Function", tableVal.Kind.String())
	}
	handlers := make(map[string]*value.Function, len(table))
	for op, v := range table {
		if v.Kind != value.KindFunction {
			return vmerrors.NewTypeError("InstallHandler", "Function", v.Kind.String())
		}
		handlers[op] = v.Obj.(*value.Function)
	}
	vm.handlerStack = append(vm.handlerStack, HandlerFrame{EffectType: effectType, Handlers: handlers})
	return nil
}

func (vm *VM) opUninstallHandler(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if len(vm.handlerStack) == 0 {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "UninstallHandler with no installed handler")
	}
	vm.handlerStack = vm.handlerStack[:len(vm.handlerStack)-1]
	return nil
}

func (vm *VM) opPerform(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	hi, lo := bytecode.UnpackHiLo(arg)
	effectType := vm.constStr(chunk, int(hi))
	operation := vm.constStr(chunk, int(lo))

	argsVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	args := argsVal.Elements()

	for i := len(vm.handlerStack) - 1; i >= 0; i-- {
		h := vm.handlerStack[i]
		if h.EffectType != effectType {
			continue
		}
		if fn, ok := h.Handlers[operation]; ok {
			return vm.invoke(value.FunctionValue(fn.ChunkID, fn.Env), args)
		}
	}

	if vm.Effect == nil {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "no effect runtime configured for %s.%s", effectType, operation)
	}
	result, err := vm.Effect.Perform(effectType, operation, args)
	if err != nil {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "%s.%s: %v", effectType, operation, err)
	}
	return vm.push(result)
}

func (vm *VM) opTryStart(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	vm.errorStack = append(vm.errorStack, ErrorHandler{
		CatchIP:    int(arg),
		FinallyIP:  -1,
		FrameDepth: len(vm.frames),
		StackDepth: len(vm.stack),
	})
	return nil
}

func (vm *VM) opTryStartWithFinally(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	hi, lo := bytecode.UnpackHiLo(arg)
	vm.errorStack = append(vm.errorStack, ErrorHandler{
		CatchIP:    resolveTarget(hi),
		FinallyIP:  int(lo),
		FrameDepth: len(vm.frames),
		StackDepth: len(vm.stack),
	})
	return nil
}

// opTryEnd fires only on the normal-completion path (spec §8 property 7);
// arg is always the jump target to take next — the finally block if one
// is attached to this try, or wherever code resumes after the whole try
// statement if not.
func (vm *VM) opTryEnd(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if len(vm.errorStack) == 0 {
		return vmerrors.New(vmerrors.RuntimeErrorKind, "TryEnd with no active try region")
	}
	vm.errorStack = vm.errorStack[:len(vm.errorStack)-1]
	frame.IP = int(arg)
	return nil
}

func (vm *VM) opFinallyStart(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return nil
}

// opFinallyEnd concludes a finally block. It only acts when this finally
// execution was entered on the uncaught/rethrow path (the only place
// finallyStack ever gets a push); otherwise execution simply continues to
// whatever instruction follows, which is the correct behavior for both
// "finished the protected block normally" and "a catch block already
// handled the exception and fell through into finally".
func (vm *VM) opFinallyEnd(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if len(vm.finallyStack) == 0 {
		return nil
	}
	ctx := vm.finallyStack[len(vm.finallyStack)-1]
	vm.finallyStack = vm.finallyStack[:len(vm.finallyStack)-1]
	if ctx.rethrow == nil {
		return nil
	}
	if vm.handleThrow(ctx.rethrow) {
		return nil
	}
	return ctx.rethrow
}

func (vm *VM) opThrow(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	if v.Kind == value.KindError {
		return &vmerrors.VMError{Kind: vmerrors.Kind(v.ErrorKind()), Message: v.S, Payload: v}
	}
	return &vmerrors.VMError{Kind: vmerrors.RuntimeErrorKind, Message: v.String(), Payload: v}
}

// handleThrow is the engine's one unwind primitive, invoked both for an
// explicit Throw and for any VMError a built-in opcode raises (spec §4.9:
// "try/catch can intercept VM errors, converting them into language-level
// Error values"). Returns false when no handler exists, meaning the error
// surfaces out of Run().
func (vm *VM) handleThrow(vme *vmerrors.VMError) bool {
	if len(vm.errorStack) == 0 {
		return false
	}
	h := vm.errorStack[len(vm.errorStack)-1]
	vm.errorStack = vm.errorStack[:len(vm.errorStack)-1]

	if h.FrameDepth <= len(vm.frames) {
		vm.frames = vm.frames[:h.FrameDepth]
	}
	if h.StackDepth <= len(vm.stack) {
		vm.stack = vm.stack[:h.StackDepth]
	}
	if len(vm.frames) == 0 {
		return false
	}
	frame := vm.frames[len(vm.frames)-1]

	errVal := vm.errorValueOf(vme)

	if h.CatchIP >= 0 {
		vm.stack = append(vm.stack, errVal)
		frame.IP = h.CatchIP
		return true
	}
	if h.FinallyIP >= 0 {
		vm.finallyStack = append(vm.finallyStack, finallyCtx{rethrow: vme})
		frame.IP = h.FinallyIP
		return true
	}
	return false
}

func (vm *VM) errorValueOf(vme *vmerrors.VMError) value.Value {
	if payload, ok := vme.Payload.(value.Value); ok {
		return payload
	}
	return value.ErrorValue(string(vme.Kind), vme.Message, vme.Stack)
}
