package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

// Await is a non-blocking poll (spec §4.5/§9): it yields Nil on an
// unresolved promise and only returns the resolved value once resolve has
// actually run, never blocking the calling goroutine either way.
func TestAwaitIsNonBlocking(t *testing.T) {
	vm := New(emptyImage())
	id, _ := vm.shared.async.newPromise()

	require.NoError(t, vm.push(value.Promise(id)))
	require.NoError(t, vm.opAwait(nil, nil, 0))
	unresolved, err := vm.popChecked()
	require.NoError(t, err)
	assert.Equal(t, value.Nil(), unresolved)

	vm.shared.async.resolve(id, value.Int(5), nil)

	require.NoError(t, vm.push(value.Promise(id)))
	require.NoError(t, vm.opAwait(nil, nil, 0))
	resolved, err := vm.popChecked()
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), resolved)
}

func TestAwaitUnknownPromiseYieldsNil(t *testing.T) {
	vm := New(emptyImage())
	require.NoError(t, vm.push(value.Promise(999)))
	require.NoError(t, vm.opAwait(nil, nil, 0))
	v, err := vm.popChecked()
	require.NoError(t, err)
	assert.Equal(t, value.Nil(), v)
}

// Send is a non-blocking try-send: AsyncError{buffer full} when the
// channel is at capacity, rather than a boolean result on the stack.
func TestSendFailsWhenChannelFull(t *testing.T) {
	vm := New(emptyImage())
	id := vm.shared.async.newChannel(1)

	require.NoError(t, vm.push(value.Channel(id)))
	require.NoError(t, vm.push(value.Int(1)))
	require.NoError(t, vm.opSend(nil, nil, 0))

	require.NoError(t, vm.push(value.Channel(id)))
	require.NoError(t, vm.push(value.Int(2)))
	err := vm.opSend(nil, nil, 0)
	require.Error(t, err)
	vme, ok := err.(*vmerrors.VMError)
	require.True(t, ok)
	assert.Equal(t, vmerrors.AsyncError, vme.Kind)
	assert.Contains(t, vme.Message, "full")
}

// A channel closed out from under a sender (no Close opcode exists; this
// simulates the only way a channel becomes closed today, via direct
// manipulation of the underlying Go channel) must surface as AsyncError
// rather than panicking the VM.
func TestSendOnClosedChannelFails(t *testing.T) {
	vm := New(emptyImage())
	id := vm.shared.async.newChannel(1)
	ch, ok := vm.shared.async.channel(id)
	require.True(t, ok)
	close(ch)

	require.NoError(t, vm.push(value.Channel(id)))
	require.NoError(t, vm.push(value.Int(1)))
	err := vm.opSend(nil, nil, 0)
	require.Error(t, err)
	vme, ok := err.(*vmerrors.VMError)
	require.True(t, ok)
	assert.Equal(t, vmerrors.AsyncError, vme.Kind)
	assert.Contains(t, vme.Message, "closed")
}

// Receive returns the raw value on success and Nil on an empty channel,
// never a tagged Some/None wrapper (spec §4.5, scenario S4).
func TestReceiveReturnsRawValueOrNil(t *testing.T) {
	vm := New(emptyImage())
	id := vm.shared.async.newChannel(1)

	require.NoError(t, vm.push(value.Channel(id)))
	require.NoError(t, vm.push(value.Int(42)))
	require.NoError(t, vm.opSend(nil, nil, 0))

	require.NoError(t, vm.push(value.Channel(id)))
	require.NoError(t, vm.opReceive(nil, nil, 0))
	v, err := vm.popChecked()
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), v)

	require.NoError(t, vm.push(value.Channel(id)))
	require.NoError(t, vm.opReceive(nil, nil, 0))
	empty, err := vm.popChecked()
	require.NoError(t, err)
	assert.Equal(t, value.Nil(), empty)
}
