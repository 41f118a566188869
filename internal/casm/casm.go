// Package casm is a minimal textual assembler for hand-written bytecode
// programs (spec §9's "no compiler front end" note, and SPEC_FULL.md §2.1's
// `asm` subcommand). It is a thin text layer over
// internal/bytecode/builder: the same Func/Image emit-then-patch calls the
// Go test fixtures make directly, just driven from a `.casm` source file
// instead of Go source.
//
// Grammar, line-oriented:
//
//	.func NAME          start a chunk, becomes current
//	label:              define a jump target at the current position
//	Mnemonic             zero-operand instruction
//	Mnemonic OPERAND      one-operand instruction
//	Mnemonic A,B          packed hi:lo instruction (MakeClosure, Perform, ...)
//	.end                close the current chunk
//	.main NAME           mark NAME as the program's entry chunk
//
// An OPERAND is one of: a bare integer, `@label` (resolved against labels
// in the current chunk, or a function name for a chunk-id operand like
// MakeFunc/MakeClosure), or `const LITERAL` (adds LITERAL to the current
// chunk's constant pool and uses its index). LITERAL is an int, a float
// (written with a '.' or an 'e'/'E' exponent), true/false, nil, or a
// double-quoted string.
// `;` starts a line comment outside of quotes.
package casm

import (
	"fmt"
	"strconv"
	"strings"

	"corevm/internal/bytecode"
	"corevm/internal/bytecode/builder"
	"corevm/internal/value"
)

type sourceLine struct {
	n    int
	text string
}

type pendingPatch struct {
	at    int
	label string
}

// Parse assembles src into a BytecodeImage, ready to pass to vm.New.
func Parse(src string) (*bytecode.BytecodeImage, error) {
	lines := scanLines(src)

	funcOrder, err := collectFuncNames(lines)
	if err != nil {
		return nil, err
	}
	if len(funcOrder) == 0 {
		return nil, fmt.Errorf("casm: no .func declarations found")
	}

	img := builder.NewImage()
	chunkID := make(map[string]int, len(funcOrder))
	funcByName := make(map[string]*builder.Func, len(funcOrder))
	for _, name := range funcOrder {
		f, id := img.AddFunc(name)
		chunkID[name] = id
		funcByName[name] = f
	}

	var (
		cur      *builder.Func
		labels   map[string]int
		pending  []pendingPatch
		mainName string
	)

	flush := func(lineNo int) error {
		for _, p := range pending {
			idx, ok := labels[p.label]
			if !ok {
				return fmt.Errorf("casm:%d: undefined label %q", lineNo, p.label)
			}
			cur.Patch(p.at, uint32(idx))
		}
		pending = nil
		return nil
	}

	for _, ln := range lines {
		text := ln.text
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, ".func "):
			name := strings.TrimSpace(strings.TrimPrefix(text, ".func "))
			f, ok := funcByName[name]
			if !ok {
				return nil, fmt.Errorf("casm:%d: unknown function %q", ln.n, name)
			}
			cur = f
			labels = map[string]int{}
			pending = nil
		case text == ".end":
			if cur == nil {
				return nil, fmt.Errorf("casm:%d: .end without .func", ln.n)
			}
			if err := flush(ln.n); err != nil {
				return nil, err
			}
			cur = nil
		case strings.HasPrefix(text, ".main "):
			mainName = strings.TrimSpace(strings.TrimPrefix(text, ".main "))
		case isLabel(text):
			if cur == nil {
				return nil, fmt.Errorf("casm:%d: label outside .func", ln.n)
			}
			labels[strings.TrimSuffix(text, ":")] = cur.Here()
		default:
			if cur == nil {
				return nil, fmt.Errorf("casm:%d: instruction outside .func: %q", ln.n, text)
			}
			if err := emitInstr(cur, text, chunkID, labels, &pending, ln.n); err != nil {
				return nil, err
			}
		}
	}

	if cur != nil {
		return nil, fmt.Errorf("casm: missing .end directive before end of source")
	}
	if mainName == "" {
		return nil, fmt.Errorf("casm: no .main directive")
	}
	id, ok := chunkID[mainName]
	if !ok {
		return nil, fmt.Errorf("casm: .main refers to unknown function %q", mainName)
	}
	img.SetMain(id)
	return img.Build(), nil
}

func collectFuncNames(lines []sourceLine) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	for _, ln := range lines {
		if name, ok := strings.CutPrefix(ln.text, ".func "); ok {
			name = strings.TrimSpace(name)
			if seen[name] {
				return nil, fmt.Errorf("casm:%d: duplicate function %q", ln.n, name)
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

func isLabel(text string) bool {
	if !strings.HasSuffix(text, ":") || strings.Contains(text, " ") {
		return false
	}
	name := strings.TrimSuffix(text, ":")
	return name != "" && !strings.HasPrefix(name, ".")
}

func scanLines(src string) []sourceLine {
	var out []sourceLine
	for i, raw := range strings.Split(src, "\n") {
		text := strings.TrimSpace(stripComment(raw))
		out = append(out, sourceLine{n: i + 1, text: text})
	}
	return out
}

func stripComment(s string) string {
	inQuote := false
	for i, r := range s {
		if r == '"' {
			inQuote = !inQuote
		}
		if r == ';' && !inQuote {
			return s[:i]
		}
	}
	return s
}

func emitInstr(cur *builder.Func, text string, chunkID map[string]int, labels map[string]int, pending *[]pendingPatch, lineNo int) error {
	mnemonic, rest, _ := strings.Cut(text, " ")
	op, ok := bytecode.ParseOpcode(mnemonic)
	if !ok {
		return fmt.Errorf("casm:%d: unknown opcode %q", lineNo, mnemonic)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		cur.Emit(op, 0)
		return nil
	}

	parts := splitTopLevel(rest)
	switch len(parts) {
	case 1:
		arg, label, err := resolveOperand(cur, parts[0], chunkID, labels)
		if err != nil {
			return fmt.Errorf("casm:%d: %w", lineNo, err)
		}
		at := cur.Emit(op, arg)
		if label != "" {
			*pending = append(*pending, pendingPatch{at: at, label: label})
		}
		return nil
	case 2:
		hi, hiLabel, err := resolveOperand(cur, parts[0], chunkID, labels)
		if err != nil {
			return fmt.Errorf("casm:%d: %w", lineNo, err)
		}
		lo, loLabel, err := resolveOperand(cur, parts[1], chunkID, labels)
		if err != nil {
			return fmt.Errorf("casm:%d: %w", lineNo, err)
		}
		if hiLabel != "" || loLabel != "" {
			return fmt.Errorf("casm:%d: forward label refs unsupported in packed operands", lineNo)
		}
		cur.Emit(op, bytecode.PackHiLo(uint16(hi), uint16(lo)))
		return nil
	default:
		return fmt.Errorf("casm:%d: too many operands for %s", lineNo, mnemonic)
	}
}

// resolveOperand returns either a resolved Arg, or (0, label) when the
// operand is a same-chunk forward label reference the caller must patch
// once the whole chunk has been scanned.
func resolveOperand(cur *builder.Func, token string, chunkID map[string]int, labels map[string]int) (uint32, string, error) {
	token = strings.TrimSpace(token)
	switch {
	case strings.HasPrefix(token, "@"):
		name := token[1:]
		if idx, ok := labels[name]; ok {
			return uint32(idx), "", nil
		}
		if id, ok := chunkID[name]; ok {
			return uint32(id), "", nil
		}
		return 0, name, nil
	case strings.HasPrefix(token, "const "):
		lit := strings.TrimSpace(strings.TrimPrefix(token, "const "))
		v, err := ParseLiteral(lit)
		if err != nil {
			return 0, "", err
		}
		return cur.AddConstant(v), "", nil
	default:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("bad operand %q: %w", token, err)
		}
		return uint32(n), "", nil
	}
}

// ParseLiteral parses one `const` literal (int, float, bool, nil, or a
// double-quoted string). Exported so the REPL can push inline literals
// without a two-pass assemble.
func ParseLiteral(lit string) (value.Value, error) {
	switch {
	case lit == "true":
		return value.Bool(true), nil
	case lit == "false":
		return value.Bool(false), nil
	case lit == "nil":
		return value.Nil(), nil
	case strings.HasPrefix(lit, `"`):
		s, err := strconv.Unquote(lit)
		if err != nil {
			return value.Nil(), fmt.Errorf("bad string literal %q: %w", lit, err)
		}
		return value.String(s), nil
	case strings.ContainsAny(lit, ".eE") && !strings.HasPrefix(lit, "0x"):
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return value.Nil(), fmt.Errorf("bad float literal %q: %w", lit, err)
		}
		return value.Float(f), nil
	default:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return value.Nil(), fmt.Errorf("bad int literal %q: %w", lit, err)
		}
		return value.Int(n), nil
	}
}

// splitTopLevel splits on ',' outside of double-quoted spans.
func splitTopLevel(s string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
