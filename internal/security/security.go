// Package security implements the resource-limit policy hooks of spec §5:
// an instruction budget, a call-depth cap, and an optional allocation
// budget enforced by the VM's per-instruction security pre-check (spec
// §4.2 step 5). Grounded on original_source/rust/fluentai-vm/src/safety
// (ResourceLimits / checked_ops); the teacher has no resource limiting at
// all.
package security

import (
	"sync/atomic"

	vmerrors "corevm/internal/errors"
)

type Limits struct {
	MaxCallDepth      int
	MaxOperandStack   int
	InstructionBudget int64 // 0 == unbounded
	MaxAllocBytes     uint64 // 0 == unbounded; compared with host RSS (see CheckAllocBudget)
}

// Manager tracks consumption against Limits and is consulted once per
// dispatched instruction.
type Manager struct {
	limits       Limits
	instrCount   int64
	hostSnapshot HostSnapshotFunc
}

// HostSnapshotFunc samples host process resource usage; see
// hostsnapshot.go for the gopsutil-backed default.
type HostSnapshotFunc func() (rssBytes uint64, err error)

func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

func (m *Manager) WithHostSnapshot(fn HostSnapshotFunc) *Manager {
	m.hostSnapshot = fn
	return m
}

// CheckInstruction is the per-cycle security pre-check (spec §4.2 step 5).
func (m *Manager) CheckInstruction() error {
	n := atomic.AddInt64(&m.instrCount, 1)
	if m.limits.InstructionBudget > 0 && n > m.limits.InstructionBudget {
		return vmerrors.New(vmerrors.ResourceLimitExceeded, "instruction budget of %d exceeded", m.limits.InstructionBudget)
	}
	return nil
}

func (m *Manager) CheckCallDepth(depth int) error {
	if m.limits.MaxCallDepth > 0 && depth > m.limits.MaxCallDepth {
		return vmerrors.New(vmerrors.CallStackOverflow, "call depth %d exceeds max_call_depth %d", depth, m.limits.MaxCallDepth)
	}
	return nil
}

func (m *Manager) CheckOperandStack(depth int) error {
	if m.limits.MaxOperandStack > 0 && depth > m.limits.MaxOperandStack {
		return vmerrors.New(vmerrors.StackOverflow, "operand stack depth %d exceeds cap %d", depth, m.limits.MaxOperandStack)
	}
	return nil
}

// CheckAllocBudget is advisory only (spec §5: "optional allocation
// budget"): a host snapshot failing, or no snapshot being configured,
// never blocks execution.
func (m *Manager) CheckAllocBudget() error {
	if m.limits.MaxAllocBytes == 0 || m.hostSnapshot == nil {
		return nil
	}
	rss, err := m.hostSnapshot()
	if err != nil {
		return nil
	}
	if rss > m.limits.MaxAllocBytes {
		return vmerrors.New(vmerrors.ResourceLimitExceeded, "host RSS %d exceeds allocation budget %d", rss, m.limits.MaxAllocBytes)
	}
	return nil
}

func (m *Manager) InstructionsExecuted() int64 {
	return atomic.LoadInt64(&m.instrCount)
}
