package effectruntime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/internal/value"
)

func TestPerformTimeNow(t *testing.T) {
	d := NewDefault()
	before := time.Now().UnixNano()
	result, err := d.Perform("time", "now", nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, result.Kind)
	assert.GreaterOrEqual(t, result.I, before)
}

func TestPerformTimeFormat(t *testing.T) {
	d := NewDefault()
	ts := time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)
	result, err := d.Perform("time", "format", []value.Value{
		value.Int(ts.UnixNano()),
		value.String("%Y-%m-%d"),
	})
	require.NoError(t, err)
	assert.Equal(t, value.String("2026-03-05"), result)
}

func TestPerformTimeFormatRejectsWrongArgs(t *testing.T) {
	d := NewDefault()
	_, err := d.Perform("time", "format", []value.Value{value.Int(0)})
	require.Error(t, err)
}

func TestPerformRandomFloatInRange(t *testing.T) {
	d := NewDefault()
	result, err := d.Perform("random", "float", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.F, 0.0)
	assert.Less(t, result.F, 1.0)
}

func TestPerformIOPrintWritesThroughOut(t *testing.T) {
	var captured string
	d := NewDefault()
	d.Out = func(s string) { captured = s }
	_, err := d.Perform("io", "print", []value.Value{value.String("hi"), value.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, "hi 1\n", captured)
}

func TestPerformUnknownEffectType(t *testing.T) {
	d := NewDefault()
	_, err := d.Perform("nope", "op", nil)
	require.Error(t, err)
}
