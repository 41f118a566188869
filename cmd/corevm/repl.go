package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"corevm/internal/bytecode"
	"corevm/internal/bytecode/builder"
	"corevm/internal/casm"
	"corevm/internal/vm"
)

var replCommand = &cli.Command{
	Name:   "repl",
	Usage:  "interactive line-at-a-time assembler/execution session",
	Flags:  commonFlags,
	Action: runREPL,
}

// runREPL mirrors the teacher's cmd/noxy/main.go startREPL: a persistent
// VM (here, persistent Shared state across transient VM instances) so
// globals/modules/actors/channels survive from one line to the next, plus
// a buffer for multi-line input. Unlike the teacher, each line here is one
// bare instruction mnemonic (no compiler front end, per spec §9); the
// session builds up a single growing chunk and re-runs it from the top on
// every line, the same "recompile-the-whole-buffer" idiom the teacher's
// REPL uses for its own statement buffer.
func runREPL(ctx context.Context, cmd *cli.Command) error {
	useColor := isatty.IsTerminal(os.Stdout.Fd())
	prompt := "corevm> "
	if useColor {
		prompt = color.CyanString("corevm> ")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("repl: init readline: %w", err)
	}
	defer rl.Close()

	opts, err := vmOptions(ctx, cmd)
	if err != nil {
		return err
	}

	shared := vm.NewShared()
	var lines []string

	errorColor := fmt.Sprintf
	resultColor := fmt.Sprintf
	if useColor {
		errorColor = color.New(color.FgRed).Sprintf
		resultColor = color.New(color.FgGreen).Sprintf
	}

	fmt.Println("corevm REPL — one instruction per line (operands: bare int, @label, or \"const LITERAL\"); \"exit\" to quit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF || err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		lines = append(lines, line)
		img, err := assembleSession(lines)
		if err != nil {
			fmt.Println(errorColor("assemble error: %v", err))
			lines = lines[:len(lines)-1]
			continue
		}

		machine := vm.New(img, append(append([]vm.Option{}, opts...), vm.WithShared(shared))...)
		result, runErr := machine.Run()
		if runErr != nil {
			fmt.Println(errorColor("runtime error: %v", runErr))
			lines = lines[:len(lines)-1]
			continue
		}
		fmt.Println(resultColor("=> %s", result.String()))
	}
}

// assembleSession wraps the accumulated instruction lines in an implicit
// .func/.main pair and an appended Return, so the REPL user only ever
// types bare opcodes.
func assembleSession(lines []string) (*bytecode.BytecodeImage, error) {
	img := builder.NewImage()
	main, mainID := img.AddFunc("repl")
	img.SetMain(mainID)

	labels := map[string]int{}
	for i, line := range lines {
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			labels[strings.TrimSuffix(line, ":")] = main.Here()
			continue
		}
		if err := emitReplLine(main, line, labels); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	main.Emit(bytecode.OpReturn, 0)
	return img.Build(), nil
}

func emitReplLine(main *builder.Func, line string, labels map[string]int) error {
	mnemonic, rest, _ := strings.Cut(line, " ")
	op, ok := bytecode.ParseOpcode(mnemonic)
	if !ok {
		return fmt.Errorf("unknown opcode %q", mnemonic)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		main.Emit(op, 0)
		return nil
	}
	if target, ok := strings.CutPrefix(rest, "@"); ok {
		idx, ok := labels[target]
		if !ok {
			return fmt.Errorf("undefined label %q (forward labels aren't supported in the REPL)", target)
		}
		main.Emit(op, uint32(idx))
		return nil
	}
	if lit, ok := strings.CutPrefix(rest, "const "); ok {
		v, err := casm.ParseLiteral(strings.TrimSpace(lit))
		if err != nil {
			return err
		}
		main.Emit(op, main.AddConstant(v))
		return nil
	}
	var n uint32
	if _, err := fmt.Sscanf(rest, "%d", &n); err != nil {
		return fmt.Errorf("bad operand %q", rest)
	}
	main.Emit(op, n)
	return nil
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.corevm_history"
}
