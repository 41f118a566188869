package vm

// Scenario tests: each one hand-assembles the BytecodeImage for a single
// spec testable property via internal/bytecode/builder instead of going
// through a compiler front end (this repo has none by design).

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/internal/bytecode"
	"corevm/internal/bytecode/builder"
	"corevm/internal/moduleloader"
	"corevm/internal/value"
)

// S1: 1 + 2 -> Int(3), and the operand stack is empty once the outermost
// Return fires (the returned value is Run's result, not left on the stack).
func TestScenarioArithmetic(t *testing.T) {
	img := builder.NewImage()
	main, mainID := img.AddFunc("main")
	main.Emit(bytecode.OpPushConst, main.AddConstant(value.Int(1)))
	main.Emit(bytecode.OpPushConst, main.AddConstant(value.Int(2)))
	main.Emit(bytecode.OpAdd, 0)
	main.Emit(bytecode.OpReturn, 0)
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), result)
	assert.Empty(t, vm.stack)
}

// S2: let x = 42 in (fn () -> x)() -> Int(42), exercising closure capture
// and LoadCaptured restoring the captured-order value (spec testable
// property 3).
func TestScenarioClosureCapture(t *testing.T) {
	img := builder.NewImage()
	closure, closureID := img.AddFunc("closure")
	closure.Emit(bytecode.OpLoadCaptured, 0)
	closure.Emit(bytecode.OpReturn, 0)

	main, mainID := img.AddFunc("main")
	main.Emit(bytecode.OpPushConst, main.AddConstant(value.Int(42)))
	main.Emit(bytecode.OpMakeClosure, bytecode.PackHiLo(uint16(closureID), 1))
	main.Emit(bytecode.OpCall, 0)
	main.Emit(bytecode.OpReturn, 0)
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), result)
}

// S5: try throw("boom") catch e -> e -> String("boom"), and the attached
// finally block runs exactly once, incrementing a global counter by 1.
func TestScenarioTryCatchFinally(t *testing.T) {
	img := builder.NewImage()
	main, mainID := img.AddFunc("main")

	cCounter := main.AddConstant(value.String("counter"))
	cZero := main.AddConstant(value.Int(0))
	cOne := main.AddConstant(value.Int(1))
	cBoom := main.AddConstant(value.String("boom"))

	main.Emit(bytecode.OpPushConst, cZero)
	main.Emit(bytecode.OpDefineGlobal, cCounter)

	tryAt := main.Emit(bytecode.OpTryStartWithFinally, 0) // patched below
	main.Emit(bytecode.OpPushConst, cBoom)
	main.Emit(bytecode.OpThrow, 0)

	handlerIP := main.Here() // catch falls straight through into finally
	main.Emit(bytecode.OpFinallyStart, 0)
	main.Emit(bytecode.OpLoadGlobal, cCounter)
	main.Emit(bytecode.OpPushConst, cOne)
	main.Emit(bytecode.OpAdd, 0)
	main.Emit(bytecode.OpStoreGlobal, cCounter)
	main.Emit(bytecode.OpFinallyEnd, 0)
	main.Emit(bytecode.OpReturn, 0)

	main.Patch(tryAt, bytecode.PackHiLo(uint16(handlerIP), uint16(handlerIP)))
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.String("boom"), result)

	counter, ok := vm.shared.Globals.Get("counter")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), counter)
}

// countingLoader wraps a MemoryLoader to record how many times Load was
// actually invoked, so the cache-hit half of S6 can be checked without
// reaching into VM internals.
type countingLoader struct {
	inner *moduleloader.MemoryLoader
	calls int
}

func (c *countingLoader) Load(name string) (*moduleloader.ModuleSource, error) {
	c.calls++
	return c.inner.Load(name)
}

// S6: import module M exporting foo = 7, evaluate M.foo -> Int(7); a
// second import of the same module hits the process-wide cache rather
// than invoking the loader again.
func TestScenarioModuleImportAndCache(t *testing.T) {
	modImg := builder.NewImage()
	mod, modID := modImg.AddFunc("M")
	cModName := mod.AddConstant(value.String("M"))
	cFoo := mod.AddConstant(value.String("foo"))
	cSeven := mod.AddConstant(value.Int(7))
	mod.Emit(bytecode.OpBeginModule, cModName)
	mod.Emit(bytecode.OpPushConst, cSeven)
	mod.Emit(bytecode.OpExportBinding, cFoo)
	mod.Emit(bytecode.OpEndModule, 0)
	mod.Emit(bytecode.OpReturn, 0)
	modImg.SetMain(modID)

	loader := &countingLoader{inner: moduleloader.NewMemoryLoader()}
	loader.inner.Register("M", &moduleloader.ModuleSource{
		Image:      modImg.Build(),
		EntryChunk: modID,
	})

	img := builder.NewImage()
	main, mainID := img.AddFunc("main")
	mModName := main.AddConstant(value.String("M"))
	mFoo := main.AddConstant(value.String("foo"))
	main.Emit(bytecode.OpImportBinding, bytecode.PackHiLo(uint16(mModName), uint16(mFoo)))
	main.Emit(bytecode.OpReturn, 0)
	img.SetMain(mainID)

	vm := New(img.Build(), WithLoader(loader))
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), result)
	assert.Equal(t, 1, loader.calls)

	again, err := vm.loadModule("M")
	require.NoError(t, err)
	mod, ok := again.Obj.(*value.Module)
	require.True(t, ok)
	assert.Equal(t, value.Int(7), mod.Exports["foo"])
	assert.Equal(t, 1, loader.calls, "second import must hit the module cache, not re-invoke the loader")
}

// S3: let p = spawn(fn () -> 1 + 2) in await(p) -> Int(3). Await is a
// non-blocking poll (spec §4.5/§9), so the main chunk busy-polls it until
// the spawned task resolves rather than assuming a single Await suffices.
func TestScenarioSpawnAwait(t *testing.T) {
	img := builder.NewImage()
	task, taskID := img.AddFunc("task")
	task.Emit(bytecode.OpPushConst, task.AddConstant(value.Int(1)))
	task.Emit(bytecode.OpPushConst, task.AddConstant(value.Int(2)))
	task.Emit(bytecode.OpAdd, 0)
	task.Emit(bytecode.OpReturn, 0)

	main, mainID := img.AddFunc("main")
	main.Emit(bytecode.OpMakeFunc, uint32(taskID))
	main.Emit(bytecode.OpSpawn, 0)

	loopTop := main.Here()
	main.Emit(bytecode.OpDup, 0)
	main.Emit(bytecode.OpAwait, 0)
	main.Emit(bytecode.OpDup, 0)
	main.Emit(bytecode.OpPushNil, 0)
	main.Emit(bytecode.OpEq, 0)
	doneAt := main.Emit(bytecode.OpJumpIfNot, 0) // patched below
	main.Emit(bytecode.OpPop, 0)
	main.Emit(bytecode.OpJump, uint32(loopTop))

	doneIP := main.Here()
	main.Emit(bytecode.OpSwap, 0)
	main.Emit(bytecode.OpPop, 0)
	main.Emit(bytecode.OpReturn, 0)
	main.Patch(doneAt, uint32(doneIP))
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), result)
}

// S4: let c = channel() in spawn(fn () -> send(c, 42)); receive(c) ->
// Int(42). Receive is likewise a non-blocking poll, so the main chunk
// busy-polls it the same way S3 busy-polls Await.
func TestScenarioChannelSendReceive(t *testing.T) {
	img := builder.NewImage()
	sender, senderID := img.AddFunc("sender")
	sender.Emit(bytecode.OpLoadCaptured, 0)
	sender.Emit(bytecode.OpPushConst, sender.AddConstant(value.Int(42)))
	sender.Emit(bytecode.OpSend, 0)
	sender.Emit(bytecode.OpPushNil, 0)
	sender.Emit(bytecode.OpReturn, 0)

	main, mainID := img.AddFunc("main")
	main.Emit(bytecode.OpChannel, 0)
	main.Emit(bytecode.OpDup, 0)
	main.Emit(bytecode.OpMakeClosure, bytecode.PackHiLo(uint16(senderID), 1))
	main.Emit(bytecode.OpSpawn, 0)
	main.Emit(bytecode.OpPop, 0) // discard the sender's promise; c stays on top

	loopTop := main.Here()
	main.Emit(bytecode.OpDup, 0)
	main.Emit(bytecode.OpReceive, 0)
	main.Emit(bytecode.OpDup, 0)
	main.Emit(bytecode.OpPushNil, 0)
	main.Emit(bytecode.OpEq, 0)
	doneAt := main.Emit(bytecode.OpJumpIfNot, 0) // patched below
	main.Emit(bytecode.OpPop, 0)
	main.Emit(bytecode.OpJump, uint32(loopTop))

	doneIP := main.Here()
	main.Emit(bytecode.OpSwap, 0)
	main.Emit(bytecode.OpPop, 0)
	main.Emit(bytecode.OpReturn, 0)
	main.Patch(doneAt, uint32(doneIP))
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), result)
}
