// Module loading, spec §4.3: LoadModule/BeginModule/EndModule bracket a
// module's top-level code and collect its exports; ImportBinding/
// ImportAll/LoadQualified bring exports into the importer's scope.
// Grounded on the teacher's lack of a module system at all — built fresh
// from original_source/rust/fluentai-vm/src/vm.rs's Module/load_module,
// adapted onto the moduleloader.Loader external collaborator.
package vm

import (
	"sync"

	"corevm/internal/bytecode"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

type bytecodeChunk = bytecode.Chunk

func unpackHiLo(arg uint32) (uint16, uint16) { return bytecode.UnpackHiLo(arg) }

// moduleScope tracks exports accumulated between a BeginModule and its
// matching EndModule.
type moduleScope struct {
	name    string
	exports map[string]value.Value
}

// moduleTable is the process-wide cache of fully loaded modules, plus
// cycle detection for modules that (directly or transitively) import
// themselves.
type moduleTable struct {
	mu      sync.Mutex
	loaded  map[string]value.Value
	loading map[string]bool
}

func newModuleTable() *moduleTable {
	return &moduleTable{loaded: map[string]value.Value{}, loading: map[string]bool{}}
}

func (vm *VM) moduleName(chunk *bytecodeChunk, arg uint32) string {
	idx := int(arg)
	if idx < 0 || idx >= len(chunk.Constants) {
		return ""
	}
	return chunk.Constants[idx].S
}

func (vm *VM) opBeginModule(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	name := vm.moduleName(chunk, arg)
	vm.moduleScopes = append(vm.moduleScopes, &moduleScope{name: name, exports: map[string]value.Value{}})
	return nil
}

func (vm *VM) opExportBinding(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if len(vm.moduleScopes) == 0 {
		return vmerrors.New(vmerrors.ModuleError, "ExportBinding outside BeginModule/EndModule")
	}
	name := vm.moduleName(chunk, arg)
	v, err := vm.popChecked()
	if err != nil {
		return err
	}
	vm.moduleScopes[len(vm.moduleScopes)-1].exports[name] = v
	return nil
}

func (vm *VM) opEndModule(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	if len(vm.moduleScopes) == 0 {
		return vmerrors.New(vmerrors.ModuleError, "EndModule without matching BeginModule")
	}
	scope := vm.moduleScopes[len(vm.moduleScopes)-1]
	vm.moduleScopes = vm.moduleScopes[:len(vm.moduleScopes)-1]
	mv := value.ModuleValue(scope.name, scope.exports)

	vm.shared.modules.mu.Lock()
	vm.shared.modules.loaded[scope.name] = mv
	delete(vm.shared.modules.loading, scope.name)
	vm.shared.modules.mu.Unlock()

	return vm.push(mv)
}

func (vm *VM) opLoadModule(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	name := vm.moduleName(chunk, arg)
	mv, err := vm.loadModule(name)
	if err != nil {
		return err
	}
	return vm.push(mv)
}

// loadModule resolves name to a loaded value.Module, running its entry
// chunk to completion on a forked VM the first time it's requested (spec
// §4.3, §6 "load_module(name)").
func (vm *VM) loadModule(name string) (value.Value, error) {
	vm.shared.modules.mu.Lock()
	if mv, ok := vm.shared.modules.loaded[name]; ok {
		vm.shared.modules.mu.Unlock()
		return mv, nil
	}
	if vm.shared.modules.loading[name] {
		vm.shared.modules.mu.Unlock()
		return value.Nil(), vmerrors.NewModuleError(name, "cyclic module import")
	}
	if vm.Loader == nil {
		vm.shared.modules.mu.Unlock()
		return value.Nil(), vmerrors.NewModuleError(name, "no module loader configured")
	}
	vm.shared.modules.loading[name] = true
	vm.shared.modules.mu.Unlock()

	src, err := vm.Loader.Load(name)
	if err != nil {
		vm.shared.modules.mu.Lock()
		delete(vm.shared.modules.loading, name)
		vm.shared.modules.mu.Unlock()
		return value.Nil(), vmerrors.NewModuleError(name, err.Error())
	}

	child := &VM{
		Image:    src.Image,
		Stdlib:   vm.Stdlib,
		Effect:   vm.Effect,
		Loader:   vm.Loader,
		Debug:    vm.Debug,
		Sched:    vm.Sched,
		Cfg:      vm.Cfg,
		Security: vm.Security,
		GC:       vm.GC,
		Usage:    vm.Usage,
		JIT:      vm.JIT,
		shared:   vm.shared,
	}
	if err := child.pushFrame(&CallFrame{ChunkID: src.EntryChunk, IP: 0, StackBase: 0}); err != nil {
		return value.Nil(), err
	}
	if _, err := child.loop(); err != nil {
		vm.shared.modules.mu.Lock()
		delete(vm.shared.modules.loading, name)
		vm.shared.modules.mu.Unlock()
		return value.Nil(), err
	}

	vm.shared.modules.mu.Lock()
	mv, ok := vm.shared.modules.loaded[name]
	vm.shared.modules.mu.Unlock()
	if !ok {
		return value.Nil(), vmerrors.NewModuleError(name, "module entry chunk did not call EndModule")
	}
	return mv, nil
}

func (vm *VM) opImportBinding(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	hi, lo := unpackHiLo(arg)
	modName := vm.constStr(chunk, int(hi))
	bindName := vm.constStr(chunk, int(lo))
	mv, err := vm.loadModule(modName)
	if err != nil {
		return err
	}
	mod, ok := mv.Obj.(*value.Module)
	if !ok {
		return vmerrors.NewModuleError(modName, "not a module value")
	}
	v, ok := mod.Exports[bindName]
	if !ok {
		return vmerrors.NewModuleError(modName, "module has no export "+bindName)
	}
	return vm.push(v)
}

func (vm *VM) opLoadQualified(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	return vm.opImportBinding(frame, chunk, arg)
}

func (vm *VM) opImportAll(frame *CallFrame, chunk *bytecodeChunk, arg uint32) error {
	name := vm.moduleName(chunk, arg)
	mv, err := vm.loadModule(name)
	if err != nil {
		return err
	}
	mod, ok := mv.Obj.(*value.Module)
	if !ok {
		return vmerrors.NewModuleError(name, "not a module value")
	}
	for k, v := range mod.Exports {
		vm.shared.Globals.Set(k, v)
	}
	return nil
}

func (vm *VM) constStr(chunk *bytecodeChunk, idx int) string {
	if idx < 0 || idx >= len(chunk.Constants) {
		return ""
	}
	return chunk.Constants[idx].S
}
