// Async subsystem, spec §4.5: promises are one-shot result slots filled
// by a task running on the host scheduler; channels are MPMC with
// non-blocking try-send/try-receive, implemented directly atop Go's
// native channels, which already give MPMC semantics for free. Grounded
// on the teacher's inline spawn/make_chan natives, pulled out into a
// standalone async table shared across every VM forked from the same
// root (spec §4.5: "promises and channels are visible across tasks").
package vm

import (
	"reflect"
	"sync"
	"time"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

type promiseSlot struct {
	done  chan struct{}
	once  sync.Once
	value value.Value
	err   error
}

type asyncTable struct {
	mu       sync.Mutex
	nextID   uint64
	promises map[uint64]*promiseSlot
	channels map[uint64]chan value.Value
}

func newAsyncTable() *asyncTable {
	return &asyncTable{
		promises: map[uint64]*promiseSlot{},
		channels: map[uint64]chan value.Value{},
	}
}

func (a *asyncTable) newPromise() (uint64, *promiseSlot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	slot := &promiseSlot{done: make(chan struct{})}
	a.promises[id] = slot
	return id, slot
}

func (a *asyncTable) resolve(id uint64, v value.Value, err error) {
	a.mu.Lock()
	slot, ok := a.promises[id]
	a.mu.Unlock()
	if !ok {
		return
	}
	slot.once.Do(func() {
		slot.value = v
		slot.err = err
		close(slot.done)
	})
}

func (a *asyncTable) get(id uint64) (*promiseSlot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	slot, ok := a.promises[id]
	return slot, ok
}

func (a *asyncTable) newChannel(capacity int) uint64 {
	if capacity < 0 {
		capacity = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.channels[id] = make(chan value.Value, capacity)
	return id
}

func (a *asyncTable) channel(id uint64) (chan value.Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.channels[id]
	return ch, ok
}

func (vm *VM) opSpawn(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	args, err := vm.popN(int(arg))
	if err != nil {
		return err
	}
	calleeVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	fn, ok := calleeVal.Obj.(*value.Function)
	if calleeVal.Kind != value.KindFunction || !ok {
		return vmerrors.NewTypeError("Spawn", "Function", calleeVal.Kind.String())
	}

	id, _ := vm.shared.async.newPromise()
	child := vm.forkChild()

	outcome := vm.Sched.Spawn(func() (any, error) {
		return child.RunTask(fn, args)
	})
	go func() {
		o := <-outcome
		if o.Err != nil {
			vm.shared.async.resolve(id, value.Nil(), o.Err)
			return
		}
		v, _ := o.Value.(value.Value)
		vm.shared.async.resolve(id, v, nil)
	}()

	return vm.push(value.Promise(id))
}

// opAwait is a non-blocking poll of the named promise (spec §4.5/§9 open
// question, preserved literally: Await returns Nil immediately if the
// result slot isn't filled yet, rather than blocking until it is). A
// failed or unknown promise also yields Nil, so a task error never
// surfaces as a thrown VMError here.
func (vm *VM) opAwait(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	pv, err := vm.popChecked()
	if err != nil {
		return err
	}
	if pv.Kind != value.KindPromise {
		return vmerrors.NewTypeError("Await", "Promise", pv.Kind.String())
	}
	slot, ok := vm.shared.async.get(uint64(pv.I))
	if !ok {
		return vm.push(value.Nil())
	}
	select {
	case <-slot.done:
		if slot.err != nil {
			return vm.push(value.Nil())
		}
		return vm.push(slot.value)
	default:
		return vm.push(value.Nil())
	}
}

func (vm *VM) opChannel(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	id := vm.shared.async.newChannel(vm.Cfg.ChannelDefaultCapacity)
	return vm.push(value.Channel(id))
}

func (vm *VM) opChannelWithCapacity(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	id := vm.shared.async.newChannel(int(arg))
	return vm.push(value.Channel(id))
}

// opSend is a non-blocking try-send (spec §4.5): it fails with
// AsyncError{buffer full} if the channel is at capacity and
// AsyncError{closed} if the channel was closed out from under the
// sender, rather than reporting either condition as a boolean result.
func (vm *VM) opSend(frame *CallFrame, chunk *bytecodeChunk, arg uint32) (err error) {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	cv, err := vm.popChecked()
	if err != nil {
		return err
	}
	if cv.Kind != value.KindChannel {
		return vmerrors.NewTypeError("Send", "Channel", cv.Kind.String())
	}
	ch, ok := vm.shared.async.channel(uint64(cv.I))
	if !ok {
		return vmerrors.New(vmerrors.AsyncError, "send on unknown channel")
	}
	defer func() {
		if r := recover(); r != nil {
			err = vmerrors.New(vmerrors.AsyncError, "send on closed channel")
		}
	}()
	select {
	case ch <- v:
		return nil
	default:
		return vmerrors.New(vmerrors.AsyncError, "channel full")
	}
}

func (vm *VM) opReceive(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	cv, err := vm.popChecked()
	if err != nil {
		return err
	}
	if cv.Kind != value.KindChannel {
		return vmerrors.NewTypeError("Receive", "Channel", cv.Kind.String())
	}
	ch, ok := vm.shared.async.channel(uint64(cv.I))
	if !ok {
		return vmerrors.New(vmerrors.AsyncError, "receive on unknown channel")
	}
	select {
	case v := <-ch:
		return vm.push(v)
	default:
		return vm.push(value.Nil())
	}
}

func (vm *VM) promiseIDs(n int) ([]uint64, error) {
	vals, err := vm.popN(n)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, n)
	for i, v := range vals {
		if v.Kind != value.KindPromise {
			return nil, vmerrors.NewTypeError("PromiseAll/PromiseRace", "Promise", v.Kind.String())
		}
		ids[i] = uint64(v.I)
	}
	return ids, nil
}

func (vm *VM) opPromiseAll(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	ids, err := vm.promiseIDs(int(arg))
	if err != nil {
		return err
	}
	results := make([]value.Value, len(ids))
	for i, id := range ids {
		slot, ok := vm.shared.async.get(id)
		if !ok {
			results[i] = value.Nil()
			continue
		}
		<-slot.done
		if slot.err != nil {
			results[i] = value.Nil()
		} else {
			results[i] = slot.value
		}
	}
	return vm.push(value.List(results))
}

func (vm *VM) opPromiseRace(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	ids, err := vm.promiseIDs(int(arg))
	if err != nil {
		return err
	}
	cases := make([]reflect.SelectCase, 0, len(ids))
	slots := make([]*promiseSlot, 0, len(ids))
	for _, id := range ids {
		slot, ok := vm.shared.async.get(id)
		if !ok {
			continue
		}
		slots = append(slots, slot)
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(slot.done)})
	}
	if len(cases) == 0 {
		return vm.push(value.Nil())
	}
	chosen, _, _ := reflect.Select(cases)
	slot := slots[chosen]
	if slot.err != nil {
		return vm.push(value.Nil())
	}
	return vm.push(slot.value)
}

func (vm *VM) opWithTimeout(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	pv, err := vm.popChecked()
	if err != nil {
		return err
	}
	if pv.Kind != value.KindPromise {
		return vmerrors.NewTypeError("WithTimeout", "Promise", pv.Kind.String())
	}
	slot, ok := vm.shared.async.get(uint64(pv.I))
	if !ok {
		return vm.push(value.TaggedValue("Timeout", nil))
	}
	select {
	case <-slot.done:
		if slot.err != nil {
			return vm.push(value.Nil())
		}
		return vm.push(slot.value)
	case <-time.After(time.Duration(arg) * time.Millisecond):
		return vm.push(value.TaggedValue("Timeout", nil))
	}
}

func (vm *VM) opSelect(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	n := int(arg)
	vals, err := vm.popN(n)
	if err != nil {
		return err
	}
	cases := make([]reflect.SelectCase, 0, n)
	chans := make([]uint64, 0, n)
	for _, v := range vals {
		if v.Kind != value.KindChannel {
			return vmerrors.NewTypeError("Select", "Channel", v.Kind.String())
		}
		ch, ok := vm.shared.async.channel(uint64(v.I))
		if !ok {
			continue
		}
		chans = append(chans, uint64(v.I))
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	if len(cases) == 0 {
		return vmerrors.New(vmerrors.AsyncError, "Select with no valid channels")
	}
	chosen, recv, ok := reflect.Select(cases)
	if !ok {
		return vm.push(value.TaggedValue("Closed", []value.Value{value.Int(int64(chans[chosen]))}))
	}
	v := recv.Interface().(value.Value)
	return vm.push(value.TaggedValue("Selected", []value.Value{value.Int(int64(chans[chosen])), v}))
}
