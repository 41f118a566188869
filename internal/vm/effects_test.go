package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/internal/bytecode"
	"corevm/internal/bytecode/builder"
	"corevm/internal/value"
)

// Perform("Test","double",[21]) with an InstallHandler interceptor
// installed for "Test" runs the handler closure in place of the default
// effect runtime, per spec §4.4.
func TestPerformDispatchesToInstalledHandler(t *testing.T) {
	img := builder.NewImage()
	double, doubleID := img.AddFunc("double")
	double.Emit(bytecode.OpLoadLocal, 0)
	double.Emit(bytecode.OpPushConst, double.AddConstant(value.Int(2)))
	double.Emit(bytecode.OpMul, 0)
	double.Emit(bytecode.OpReturn, 0)

	main, mainID := img.AddFunc("main")
	cKey := main.AddConstant(value.String("double"))
	cEffect := main.AddConstant(value.String("Test"))
	cOp := main.AddConstant(value.String("double"))

	main.Emit(bytecode.OpPushConst, cKey)
	main.Emit(bytecode.OpMakeFunc, uint32(doubleID))
	main.Emit(bytecode.OpMakeMap, 1)
	main.Emit(bytecode.OpInstallHandler, cEffect)

	main.Emit(bytecode.OpPushConst, main.AddConstant(value.Int(21)))
	main.Emit(bytecode.OpMakeList, 1)
	main.Emit(bytecode.OpPerform, bytecode.PackHiLo(uint16(cEffect), uint16(cOp)))
	main.Emit(bytecode.OpReturn, 0)
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), result)
}

// With no installed handler for "time", Perform falls through to the
// default effect runtime, exactly the "IO, time, or random" ambient
// effects spec §1 names.
func TestPerformFallsBackToDefaultEffectRuntime(t *testing.T) {
	img := builder.NewImage()
	main, mainID := img.AddFunc("main")
	cEffect := main.AddConstant(value.String("time"))
	cOp := main.AddConstant(value.String("now"))
	main.Emit(bytecode.OpMakeList, 0)
	main.Emit(bytecode.OpPerform, bytecode.PackHiLo(uint16(cEffect), uint16(cOp)))
	main.Emit(bytecode.OpReturn, 0)
	img.SetMain(mainID)

	vm := New(img.Build())
	result, err := vm.Run()
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, result.Kind)
	assert.Greater(t, result.I, int64(0))
}
