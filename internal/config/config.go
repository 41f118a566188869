// Package config loads VM tunables from a TOML file, the way go-probeum's
// node loads its config.toml, via github.com/naoina/toml. The teacher has
// no configuration file at all; this is an ambient-stack addition (see
// SPEC_FULL.md §2.1).
package config

import (
	"os"

	"github.com/naoina/toml"
)

// Config holds every tunable named in spec §5/§9: resource limits, and
// feature switches for the GC and debug tracing. JITEnabled is loaded but
// the VM does not read it: the JIT gate is always installed. The security
// limits have no on/off switch.
type Config struct {
	MaxCallDepth      int  `toml:"max_call_depth"`
	MaxOperandStack   int  `toml:"max_operand_stack"`
	InstructionBudget int64 `toml:"instruction_budget"`

	GCEnabled       bool `toml:"gc_enabled"`
	GCAllocThreshold int `toml:"gc_alloc_threshold"`

	JITEnabled        bool `toml:"jit_enabled"`
	HotPathThreshold  int64 `toml:"hot_path_threshold"`

	DebugEnabled bool `toml:"debug_enabled"`

	ChannelDefaultCapacity int `toml:"channel_default_capacity"`
}

// Default mirrors the hard caps spec §3/§4 state explicitly.
func Default() Config {
	return Config{
		MaxCallDepth:           64,
		MaxOperandStack:        10000,
		InstructionBudget:      0, // 0 == unbounded
		GCEnabled:              false,
		GCAllocThreshold:       10000,
		JITEnabled:             false,
		HotPathThreshold:       1000,
		DebugEnabled:           false,
		ChannelDefaultCapacity: 100,
	}
}

// Load reads a TOML file, overlaying it onto Default().
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
