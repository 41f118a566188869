// Package value implements the tagged runtime value union the VM operates
// on (spec §3). Every Value carries one Kind and only the payload fields
// that Kind uses; Obj holds the heap-shaped payloads (lists, maps, tagged
// constructors, closures, handles) so the struct itself stays small and
// copyable, the way the teacher's value.Value{Type, AsBool, AsInt, AsFloat,
// Obj} does.
package value

import (
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindList
	KindVector
	KindMap
	KindTagged
	KindFunction
	KindFuture
	KindNativeFunction
	KindPromise
	KindChannel
	KindActor
	KindCell
	KindGcHandle
	KindModule
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindSymbol:
		return "Symbol"
	case KindList:
		return "List"
	case KindVector:
		return "Vector"
	case KindMap:
		return "Map"
	case KindTagged:
		return "Tagged"
	case KindFunction:
		return "Function"
	case KindFuture:
		return "Future"
	case KindNativeFunction:
		return "NativeFunction"
	case KindPromise:
		return "Promise"
	case KindChannel:
		return "Channel"
	case KindActor:
		return "Actor"
	case KindCell:
		return "Cell"
	case KindGcHandle:
		return "GcHandle"
	case KindModule:
		return "Module"
	case KindError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Value is the tagged union described in spec §3.
type Value struct {
	Kind  Kind
	B     bool
	I     int64
	F     float64
	S     string // String and Symbol payload
	Obj   any
}

// Tagged is an algebraic data constructor: Tagged{tag, values}.
type Tagged struct {
	Tag    string
	Values []Value
}

// Function is a closure: a code pointer plus captured environment.
type Function struct {
	ChunkID int
	Env     []Value
}

// Future is a function value that has not yet been scheduled.
type Future struct {
	ChunkID int
	Env     []Value
}

// NativeFunc is the Go-side implementation of a NativeFunction value.
type NativeFunc func(args []Value) (Value, error)

type NativeFunction struct {
	Name  string
	Arity int
	Fn    NativeFunc
}

// Module is a frozen, loaded module's export table.
type Module struct {
	Name    string
	Exports map[string]Value
}

func Nil() Value                { return Value{Kind: KindNil} }
func Bool(b bool) Value         { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value         { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, F: f} }
func String(s string) Value     { return Value{Kind: KindString, S: s} }
func Symbol(s string) Value     { return Value{Kind: KindSymbol, S: s} }
func List(vs []Value) Value     { return Value{Kind: KindList, Obj: append([]Value(nil), vs...)} }
func Vector(vs []Value) Value   { return Value{Kind: KindVector, Obj: append([]Value(nil), vs...)} }
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindMap, Obj: m}
}
func TaggedValue(tag string, vs []Value) Value {
	return Value{Kind: KindTagged, Obj: &Tagged{Tag: tag, Values: append([]Value(nil), vs...)}}
}
func FunctionValue(chunkID int, env []Value) Value {
	return Value{Kind: KindFunction, Obj: &Function{ChunkID: chunkID, Env: env}}
}
func FutureValue(chunkID int, env []Value) Value {
	return Value{Kind: KindFuture, Obj: &Future{ChunkID: chunkID, Env: env}}
}
func NativeFunctionValue(name string, arity int, fn NativeFunc) Value {
	return Value{Kind: KindNativeFunction, Obj: &NativeFunction{Name: name, Arity: arity, Fn: fn}}
}
func Promise(id uint64) Value { return Value{Kind: KindPromise, I: int64(id)} }
func Channel(id uint64) Value { return Value{Kind: KindChannel, I: int64(id)} }
func Actor(id uint64) Value   { return Value{Kind: KindActor, I: int64(id)} }
func Cell(idx int) Value      { return Value{Kind: KindCell, I: int64(idx)} }
func GcHandle(handle any) Value {
	return Value{Kind: KindGcHandle, Obj: handle}
}
func ModuleValue(name string, exports map[string]Value) Value {
	return Value{Kind: KindModule, Obj: &Module{Name: name, Exports: exports}}
}

// ErrorValue wraps a runtime error as a first-class value (for try/catch).
// Message and Kind are duplicated here (rather than referencing
// internal/errors directly) to avoid an import cycle between value and
// errors; the VM is responsible for keeping the two in sync at throw time.
func ErrorValue(kind string, message string, stack any) Value {
	return Value{Kind: KindError, S: message, Obj: errorPayload{Kind: kind, Stack: stack}}
}

type errorPayload struct {
	Kind  string
	Stack any
}

func (v Value) ErrorKind() string {
	if p, ok := v.Obj.(errorPayload); ok {
		return p.Kind
	}
	return ""
}

func (v Value) ErrorStack() any {
	if p, ok := v.Obj.(errorPayload); ok {
		return p.Stack
	}
	return nil
}

// Truthy implements spec §3: Nil, false, 0, 0.0, empty string/list/
// vector/map, and Error are falsy; everything else is truthy.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString, KindSymbol:
		return v.S != ""
	case KindList, KindVector:
		return len(v.asSlice()) != 0
	case KindMap:
		return len(v.asMap()) != 0
	case KindError:
		return false
	default:
		return true
	}
}

func (v Value) asSlice() []Value {
	if s, ok := v.Obj.([]Value); ok {
		return s
	}
	return nil
}

func (v Value) asMap() map[string]Value {
	if m, ok := v.Obj.(map[string]Value); ok {
		return m
	}
	return nil
}

// Elements returns the backing slice for List/Vector values.
func (v Value) Elements() []Value { return v.asSlice() }

// Entries returns the backing map for Map values.
func (v Value) Entries() map[string]Value { return v.asMap() }

// Equal implements spec §3: structural equality for data variants, identity
// for IDs, and identity of (chunk id, env) for functions.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.B == b.B
	case KindInt:
		return a.I == b.I
	case KindFloat:
		return a.F == b.F
	case KindString, KindSymbol:
		return a.S == b.S
	case KindList, KindVector:
		as, bs := a.asSlice(), b.asSlice()
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	case KindMap:
		am, bm := a.asMap(), b.asMap()
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindTagged:
		at, bt := a.Obj.(*Tagged), b.Obj.(*Tagged)
		if at.Tag != bt.Tag || len(at.Values) != len(bt.Values) {
			return false
		}
		for i := range at.Values {
			if !Equal(at.Values[i], bt.Values[i]) {
				return false
			}
		}
		return true
	case KindFunction:
		af, bf := a.Obj.(*Function), b.Obj.(*Function)
		return af == bf || (af.ChunkID == bf.ChunkID && sameEnv(af.Env, bf.Env))
	case KindFuture:
		af, bf := a.Obj.(*Future), b.Obj.(*Future)
		return af == bf
	case KindNativeFunction:
		return a.Obj.(*NativeFunction) == b.Obj.(*NativeFunction)
	case KindPromise, KindChannel, KindActor, KindCell:
		return a.I == b.I
	case KindGcHandle:
		return a.Obj == b.Obj
	case KindModule:
		return a.Obj.(*Module) == b.Obj.(*Module)
	case KindError:
		return a.S == b.S && a.ErrorKind() == b.ErrorKind()
	default:
		return false
	}
}

func sameEnv(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if &a[i] != &b[i] {
			return false
		}
	}
	return true
}

// String renders a value the way spec §6 defines for debug/logging output.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindString:
		return fmt.Sprintf("%q", v.S)
	case KindSymbol:
		return v.S
	case KindList, KindVector:
		parts := make([]string, 0, len(v.asSlice()))
		for _, e := range v.asSlice() {
			parts = append(parts, e.String())
		}
		open, close := "[", "]"
		if v.Kind == KindVector {
			open, close = "#[", "]"
		}
		return open + strings.Join(parts, ", ") + close
	case KindMap:
		keys := make([]string, 0, len(v.asMap()))
		for k := range v.asMap() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v.asMap()[k].String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindTagged:
		t := v.Obj.(*Tagged)
		parts := make([]string, 0, len(t.Values))
		for _, e := range t.Values {
			parts = append(parts, e.String())
		}
		if len(parts) == 0 {
			return t.Tag
		}
		return t.Tag + "(" + strings.Join(parts, ", ") + ")"
	case KindFunction:
		return fmt.Sprintf("<fn chunk=%d>", v.Obj.(*Function).ChunkID)
	case KindFuture:
		return fmt.Sprintf("<future chunk=%d>", v.Obj.(*Future).ChunkID)
	case KindNativeFunction:
		return fmt.Sprintf("<native fn %s>", v.Obj.(*NativeFunction).Name)
	case KindPromise:
		return fmt.Sprintf("<promise %d>", v.I)
	case KindChannel:
		return fmt.Sprintf("<channel %d>", v.I)
	case KindActor:
		return fmt.Sprintf("<actor %d>", v.I)
	case KindCell:
		return fmt.Sprintf("<cell %d>", v.I)
	case KindGcHandle:
		return "<gc-handle>"
	case KindModule:
		return fmt.Sprintf("<module %s>", v.Obj.(*Module).Name)
	case KindError:
		return fmt.Sprintf("<error %s: %s>", v.ErrorKind(), v.S)
	default:
		return "<unknown>"
	}
}
