package vm

import (
	"sync"

	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

// cellTable is the process-wide vector of mutable cells backing shared
// captured bindings (spec §3 GLOSSARY "Cell"), grounded on
// original_source/rust/fluentai-vm/src/vm.rs's Vec<Rc<RefCell<Value>>>.
type cellTable struct {
	mu    sync.RWMutex
	cells []value.Value
}

func newCellTable() *cellTable { return &cellTable{} }

func (t *cellTable) alloc(v value.Value) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cells = append(t.cells, v)
	return len(t.cells) - 1
}

func (t *cellTable) load(idx int) (value.Value, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if idx < 0 || idx >= len(t.cells) {
		return value.Nil(), vmerrors.New(vmerrors.CellError, "cell index %d out of range", idx)
	}
	return t.cells[idx], nil
}

func (t *cellTable) store(idx int, v value.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.cells) {
		return vmerrors.New(vmerrors.CellError, "cell index %d out of range", idx)
	}
	t.cells[idx] = v
	return nil
}

func (t *cellTable) snapshot() []value.Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]value.Value(nil), t.cells...)
}

func (vm *VM) opMakeCell(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	idx := vm.shared.cells.alloc(v)
	return vm.push(value.Cell(idx))
}

func (vm *VM) opLoadCell(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	cv, err := vm.popChecked()
	if err != nil {
		return err
	}
	if cv.Kind != value.KindCell {
		return vmerrors.NewTypeError("LoadCell", "Cell", cv.Kind.String())
	}
	v, err := vm.shared.cells.load(int(cv.I))
	if err != nil {
		return err
	}
	return vm.push(v)
}

func (vm *VM) opStoreCell(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	cv, err := vm.popChecked()
	if err != nil {
		return err
	}
	if cv.Kind != value.KindCell {
		return vmerrors.NewTypeError("StoreCell", "Cell", cv.Kind.String())
	}
	return vm.shared.cells.store(int(cv.I), v)
}
