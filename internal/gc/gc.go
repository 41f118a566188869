// Package gc implements the optional tracing garbage collector of spec
// §4.7: a mark-and-sweep collector over the set of allocated GcHandle
// values. When disabled, GcAlloc still wraps its value in a GcHandle; only
// collection cycles are skipped (see Alloc).
// Grounded on original_source/rust/fluentai-vm/src/gc.go (GarbageCollector
// / GcScope / GcHandle); the teacher has no GC at all.
package gc

import "sync"

// Handle is the opaque GcHandle payload wrapped in value.GcHandle.
type Handle struct {
	id    uint64
	value func() any
	set   func(any)
}

func (h *Handle) Get() any    { return h.value() }
func (h *Handle) Set(v any)   { h.set(v) }
func (h *Handle) ID() uint64  { return h.id }

// RootsFunc lets the collector enumerate every GC root without the gc
// package importing the vm package (avoids an import cycle): operand
// stack, frame envs, globals, actor states, pending promise payloads, and
// loaded module exports, per spec §4.7.
type RootsFunc func() []any

// Collector is a simple mark-and-sweep collector over a flat table of
// allocated cells, each holding an `any` payload plus outgoing references
// discovered via a Tracer callback supplied by the VM (so List/Vector/Map/
// Tagged/Function.Env/GcHandle indirection, which all live in the value
// package, stay the VM's concern to walk).
type Collector struct {
	mu        sync.Mutex
	enabled   bool
	cells     []*cell
	nextID    uint64
	threshold int
	allocated int
	tracer    Tracer
	roots     RootsFunc
}

type cell struct {
	id     uint64
	value  any
	marked bool
}

// Tracer walks one payload's outgoing GcHandle references, given the
// roots enumerated by RootsFunc and the live value graph; the VM supplies
// this since only it knows how to walk value.Value.
type Tracer func(root any, mark func(handle *Handle))

func New(enabled bool, threshold int, tracer Tracer, roots RootsFunc) *Collector {
	return &Collector{enabled: enabled, threshold: threshold, tracer: tracer, roots: roots}
}

func (c *Collector) Enabled() bool { return c.enabled }

// Alloc wraps v in a handle. When the collector is disabled this still
// allocates a handle object (so GcDeref/GcSet keep working identically),
// it simply never runs a collection cycle.
func (c *Collector) Alloc(v any) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	cl := &cell{id: id, value: v}
	c.cells = append(c.cells, cl)
	c.allocated++

	h := &Handle{
		id:    id,
		value: func() any { return cl.value },
		set:   func(nv any) { cl.value = nv },
	}
	if c.enabled && c.threshold > 0 && c.allocated >= c.threshold {
		c.collectLocked()
	}
	return h
}

// Collect runs a full synchronous mark-and-sweep cycle (the GcCollect
// opcode, spec §4.7). A no-op when the collector is disabled.
func (c *Collector) Collect() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collectLocked()
}

func (c *Collector) collectLocked() {
	for _, cl := range c.cells {
		cl.marked = false
	}
	mark := func(h *Handle) {
		for _, cl := range c.cells {
			if cl.id == h.id {
				cl.marked = true
				return
			}
		}
	}
	if c.roots != nil && c.tracer != nil {
		for _, r := range c.roots() {
			c.tracer(r, mark)
		}
	}
	live := c.cells[:0]
	for _, cl := range c.cells {
		if cl.marked {
			live = append(live, cl)
		}
	}
	c.cells = live
	c.allocated = 0
}

func (c *Collector) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cells)
}
