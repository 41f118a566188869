package casm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/internal/value"
	"corevm/internal/vm"
)

func run(t *testing.T, src string) value.Value {
	t.Helper()
	img, err := Parse(src)
	require.NoError(t, err)
	machine := vm.New(img)
	result, err := machine.Run()
	require.NoError(t, err)
	return result
}

func TestParseArithmetic(t *testing.T) {
	result := run(t, `
.func main
  PushConst const 1
  PushConst const 2
  Add
  Return
.end
.main main
`)
	assert.Equal(t, value.Int(3), result)
}

func TestParseLabelsAndJumps(t *testing.T) {
	// counts down from const 3 to 0, returning the final value.
	result := run(t, `
.func main
  PushConst const 3
loop:
  Dup
  PushInt0
  Eq
  JumpIfNot @body
  Jump @done
body:
  PushConst const 1
  Sub
  Jump @loop
done:
  Return
.end
.main main
`)
	assert.Equal(t, value.Int(0), result)
}

func TestParsePackedOperand(t *testing.T) {
	img, err := Parse(`
.func closure
  LoadCaptured 0
  Return
.end
.func main
  PushConst const 42
  MakeClosure @closure,1
  Call 0
  Return
.end
.main main
`)
	require.NoError(t, err)
	machine := vm.New(img)
	result, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), result)
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	_, err := Parse(`
.func main
  Frobnicate
.end
.main main
`)
	require.Error(t, err)
}

func TestParseRejectsUndefinedLabel(t *testing.T) {
	_, err := Parse(`
.func main
  Jump @nowhere
.end
.main main
`)
	require.Error(t, err)
}
