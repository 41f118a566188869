// Package effectruntime implements the effect runtime external
// collaborator (spec §6): it executes side-effecting operations (IO,
// time, random) when no user handler intercepts them. Grounded in the
// teacher's inline natives for time/random in internal/vm/vm.go, pulled
// out into a standalone, swappable collaborator the way spec §6 requires.
package effectruntime

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"corevm/internal/value"
)

// Runtime is the perform(effect_type, operation, args) -> Value
// collaborator from spec §6.
type Runtime interface {
	Perform(effectType, operation string, args []value.Value) (value.Value, error)
	PerformAsync(effectType, operation string, args []value.Value) (chan value.Value, error)
}

// Default implements IO/time/random, the three effect families spec §1
// names explicitly ("IO, time, or random") as the effect runtime's job
// when no handler intercepts the operation.
type Default struct {
	Out func(string)
}

func NewDefault() *Default {
	return &Default{Out: func(s string) { fmt.Print(s) }}
}

func (d *Default) Perform(effectType, operation string, args []value.Value) (value.Value, error) {
	switch effectType {
	case "io":
		return d.performIO(operation, args)
	case "time":
		return d.performTime(operation, args)
	case "random":
		return d.performRandom(operation, args)
	default:
		return value.Nil(), fmt.Errorf("effect runtime: no handler for effect %q", effectType)
	}
}

func (d *Default) performIO(operation string, args []value.Value) (value.Value, error) {
	switch operation {
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			if a.Kind == value.KindString {
				parts[i] = a.S
			} else {
				parts[i] = a.String()
			}
		}
		d.Out(strings.Join(parts, " ") + "\n")
		return value.Nil(), nil
	default:
		return value.Nil(), fmt.Errorf("effect runtime: unknown io operation %q", operation)
	}
}

func (d *Default) performTime(operation string, args []value.Value) (value.Value, error) {
	switch operation {
	case "now":
		return value.Int(time.Now().UnixNano()), nil
	case "format":
		return d.performTimeFormat(args)
	default:
		return value.Nil(), fmt.Errorf("effect runtime: unknown time operation %q", operation)
	}
}

// performTimeFormat implements perform("time","format",[unix_nanos,layout]),
// the real strftime the teacher's own date_format instruction approximates
// with manual "%Y"/"%m"/... string replacement (internal/vm/vm.go in
// estevaofon-noxy); here it's the genuine article via
// github.com/ncruces/go-strftime.
func (d *Default) performTimeFormat(args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Kind != value.KindInt || args[1].Kind != value.KindString {
		return value.Nil(), fmt.Errorf("time.format expects (Int unix_nanos, String layout)")
	}
	t := time.Unix(0, args[0].I).UTC()
	s, err := strftime.Format(args[1].S, t)
	if err != nil {
		return value.Nil(), fmt.Errorf("time.format: %w", err)
	}
	return value.String(s), nil
}

func (d *Default) performRandom(operation string, args []value.Value) (value.Value, error) {
	switch operation {
	case "float":
		return value.Float(rand.Float64()), nil
	case "int":
		if len(args) != 1 || args[0].Kind != value.KindInt {
			return value.Nil(), fmt.Errorf("random.int expects one Int bound")
		}
		if args[0].I <= 0 {
			return value.Int(0), nil
		}
		return value.Int(rand.Int63n(args[0].I)), nil
	default:
		return value.Nil(), fmt.Errorf("effect runtime: unknown random operation %q", operation)
	}
}

// PerformAsync runs Perform on a goroutine and delivers the result over a
// one-shot channel. No opcode of internal/vm calls it: Perform there always
// goes through the synchronous Perform.
func (d *Default) PerformAsync(effectType, operation string, args []value.Value) (chan value.Value, error) {
	ch := make(chan value.Value, 1)
	go func() {
		v, err := d.Perform(effectType, operation, args)
		if err != nil {
			v = value.ErrorValue("RuntimeError", err.Error(), nil)
		}
		ch <- v
	}()
	return ch, nil
}
