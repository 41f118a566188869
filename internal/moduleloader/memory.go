package moduleloader

import "fmt"

// MemoryLoader is an in-process name -> ModuleSource map, used by tests
// to register modules assembled with
// internal/bytecode/builder without a real package manager in front of
// the VM.
type MemoryLoader struct {
	modules map[string]*ModuleSource
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{modules: make(map[string]*ModuleSource)}
}

func (m *MemoryLoader) Register(name string, src *ModuleSource) {
	m.modules[name] = src
}

func (m *MemoryLoader) Load(name string) (*ModuleSource, error) {
	src, ok := m.modules[name]
	if !ok {
		return nil, fmt.Errorf("module %q not found", name)
	}
	return src, nil
}
