// Package stdlib implements the standard library registry external
// collaborator from spec §6: a name -> native-function table with
// declared arity. Grounded on the teacher's vm.DefineNative pattern in
// internal/vm/vm.go (a flat map[string]*ObjNative), generalized into a
// standalone, swappable registry so the VM core never constructs natives
// itself.
package stdlib

import (
	"fmt"
	"strings"

	"corevm/internal/value"
)

type Registry struct {
	fns map[string]*value.NativeFunction
}

func New() *Registry {
	return &Registry{fns: make(map[string]*value.NativeFunction)}
}

func (r *Registry) Register(name string, arity int, fn value.NativeFunc) {
	r.fns[name] = &value.NativeFunction{Name: name, Arity: arity, Fn: fn}
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.fns[name]
	return ok
}

func (r *Registry) Lookup(name string) (*value.NativeFunction, bool) {
	nf, ok := r.fns[name]
	return nf, ok
}

// Invoke checks arity and calls the native, converting the result into a
// Value, per spec §6 ("check arity, call with collected args, convert the
// result into a Value").
func (r *Registry) Invoke(name string, args []value.Value) (value.Value, error) {
	nf, ok := r.fns[name]
	if !ok {
		return value.Nil(), fmt.Errorf("unknown native function %q", name)
	}
	if nf.Arity >= 0 && len(args) != nf.Arity {
		return value.Nil(), fmt.Errorf("%s: expected %d args, got %d", name, nf.Arity, len(args))
	}
	return nf.Fn(args)
}

// NewDefault registers the small set of pure, arity-checked natives the
// teacher's own vm.go ships inline (string/list helpers), kept here
// instead since the registry, not the VM, owns native definitions.
func NewDefault() *Registry {
	r := New()
	r.Register("string_join", -1, func(args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		return value.String(strings.Join(parts, "")), nil
	})
	return r
}
