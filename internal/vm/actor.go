// Actor subsystem, spec §4.6: each actor owns a mailbox and a dedicated
// goroutine that processes messages one at a time (no preemption within
// an actor), exactly the "serialized message processing" spec §8
// property 6 requires. A handler invocation receives the actor's current
// state as its sole argument, calls ActorReceive to pull the next mailbox
// message, and returns the next state; Become lets the handler overwrite
// that state directly mid-invocation instead of waiting to return it.
package vm

import (
	"sync"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

type actorHandle struct {
	id       uint64
	mailbox  chan value.Value
	mu       sync.Mutex
	handler  *value.Function
	state    value.Value
	runnerVM *VM
}

type actorTable struct {
	mu     sync.Mutex
	nextID uint64
	actors map[uint64]*actorHandle
}

func newActorTable() *actorTable {
	return &actorTable{actors: map[uint64]*actorHandle{}}
}

func (t *actorTable) register(a *actorHandle) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	a.id = t.nextID
	t.actors[a.id] = a
	return a.id
}

func (t *actorTable) get(id uint64) (*actorHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.actors[id]
	return a, ok
}

// opCreateActor implements CreateActor(state, handler) (spec §4.6):
// handler must be a real callable Function value, popped and
// type-checked off the stack rather than hardcoded from the instruction
// operand, so an actor's handler can be a closure that captures outer
// bindings. Grounded on fluentai-vm/src/vm.rs's create_actor(initial_state,
// handler), which pops and validates the same two values.
func (vm *VM) opCreateActor(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	handlerVal, err := vm.popChecked()
	if err != nil {
		return err
	}
	initialState, err := vm.popChecked()
	if err != nil {
		return err
	}
	fn, ok := handlerVal.Obj.(*value.Function)
	if handlerVal.Kind != value.KindFunction || !ok {
		return vmerrors.NewTypeError("CreateActor", "Function", handlerVal.Kind.String())
	}
	a := &actorHandle{
		mailbox:  make(chan value.Value, 1024),
		handler:  fn,
		state:    initialState,
		runnerVM: vm.forkChild(),
	}
	a.runnerVM.actorCtx = a
	id := vm.shared.actors.register(a)
	go a.run()
	return vm.push(value.Actor(id))
}

// run is the actor's dedicated goroutine. It repeatedly invokes the
// handler on a single state argument; the handler's own ActorReceive
// opcode blocks on a.mailbox to obtain the message that invocation is
// processing.
func (a *actorHandle) run() {
	for {
		a.mu.Lock()
		state := a.state
		a.mu.Unlock()

		result, err := a.runnerVM.RunTask(a.handler, []value.Value{state})
		if err != nil {
			return
		}
		a.mu.Lock()
		a.state = result
		a.mu.Unlock()
	}
}

func (vm *VM) opActorSend(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	msg, err := vm.popChecked()
	if err != nil {
		return err
	}
	av, err := vm.popChecked()
	if err != nil {
		return err
	}
	if av.Kind != value.KindActor {
		return vmerrors.NewTypeError("ActorSend", "Actor", av.Kind.String())
	}
	a, ok := vm.shared.actors.get(uint64(av.I))
	if !ok {
		return vmerrors.New(vmerrors.AsyncError, "send to unknown actor")
	}
	a.mailbox <- msg
	return nil
}

// opActorReceive only has meaningful behavior inside an actor's own
// handler frame (vm.actorCtx set by opCreateActor's forked runner VM); it
// blocks on that actor's mailbox for the next message.
func (vm *VM) opActorReceive(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if vm.actorCtx == nil {
		return vmerrors.New(vmerrors.AsyncError, "ActorReceive outside an actor handler")
	}
	msg := <-vm.actorCtx.mailbox
	return vm.push(msg)
}

// opBecome overwrites the current actor's state directly (spec §4.6:
// "The Become(new_state) opcode ... overwrites the current actor's state
// directly"), matching fluentai-vm/src/vm.rs's update_actor_state(actor_id,
// new_state) rather than swapping which handler chunk runs next.
func (vm *VM) opBecome(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if vm.actorCtx == nil {
		return vmerrors.New(vmerrors.AsyncError, "Become outside an actor handler")
	}
	newState, err := vm.popChecked()
	if err != nil {
		return err
	}
	vm.actorCtx.mu.Lock()
	vm.actorCtx.state = newState
	vm.actorCtx.mu.Unlock()
	return nil
}
