package vm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/internal/bytecode"
	"corevm/internal/bytecode/builder"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func emptyImage() *bytecode.BytecodeImage {
	img := builder.NewImage()
	_, mainID := img.AddFunc("main")
	img.SetMain(mainID)
	return img.Build()
}

func TestCreateActorRejectsNonFunctionHandler(t *testing.T) {
	vm := New(emptyImage())
	require.NoError(t, vm.push(value.Int(0))) // state
	require.NoError(t, vm.push(value.Int(1))) // handler, not callable
	err := vm.opCreateActor(nil, nil, 0)
	require.Error(t, err)
	vme, ok := err.(*vmerrors.VMError)
	require.True(t, ok)
	assert.Equal(t, vmerrors.TypeError, vme.Kind)
}

func TestBecomeOverwritesActorState(t *testing.T) {
	vm := New(emptyImage())
	vm.actorCtx = &actorHandle{state: value.Int(1)}
	require.NoError(t, vm.push(value.Int(99)))
	require.NoError(t, vm.opBecome(nil, nil, 0))
	assert.Equal(t, value.Int(99), vm.actorCtx.state)
}

func TestBecomeOutsideActorHandlerFails(t *testing.T) {
	vm := New(emptyImage())
	require.NoError(t, vm.push(value.Int(1)))
	err := vm.opBecome(nil, nil, 0)
	require.Error(t, err)
	vme, ok := err.(*vmerrors.VMError)
	require.True(t, ok)
	assert.Equal(t, vmerrors.AsyncError, vme.Kind)
}

// CreateActor(state, handler) lets the handler be a closure capturing an
// outer binding, and every message sent to the actor is processed in send
// order by that one fixed handler (spec §4.6, §8 property 6).
func TestActorHandlerClosureEnvAndFIFO(t *testing.T) {
	img := builder.NewImage()
	handler, handlerID := img.AddFunc("handler")
	handler.Emit(bytecode.OpActorReceive, 0)
	handler.Emit(bytecode.OpLoadCaptured, 0)
	handler.Emit(bytecode.OpAdd, 0)
	handler.Emit(bytecode.OpReturn, 0)

	main, mainID := img.AddFunc("main")
	main.Emit(bytecode.OpPushConst, main.AddConstant(value.Int(100))) // captured offset
	main.Emit(bytecode.OpMakeClosure, bytecode.PackHiLo(uint16(handlerID), 1))
	main.Emit(bytecode.OpPushConst, main.AddConstant(value.Int(0))) // initial state
	main.Emit(bytecode.OpSwap, 0)
	main.Emit(bytecode.OpCreateActor, 0)
	main.Emit(bytecode.OpReturn, 0)
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	require.Equal(t, value.KindActor, result.Kind)

	actor, ok := vm.shared.actors.get(uint64(result.I))
	require.True(t, ok)

	actor.mailbox <- value.Int(5)
	assert.Eventually(t, func() bool {
		actor.mu.Lock()
		defer actor.mu.Unlock()
		return value.Equal(actor.state, value.Int(105))
	}, time.Second, 5*time.Millisecond, "expected first message to resolve to 5+100")

	actor.mailbox <- value.Int(7)
	assert.Eventually(t, func() bool {
		actor.mu.Lock()
		defer actor.mu.Unlock()
		return value.Equal(actor.state, value.Int(107))
	}, time.Second, 5*time.Millisecond, "expected second message to resolve to 7+100, in send order")
}
