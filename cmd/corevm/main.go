// Command corevm is the front door onto the VM core: it assembles and
// runs hand-written .casm programs, offers a persistent REPL, and can
// fan the VM's debug event stream out over a small HTTP/websocket
// transport. None of this lives inside internal/vm; the VM core only
// ever writes to the debugevent.Sink interface (SPEC_FULL.md §6).
//
// Grounded on the teacher's cmd/noxy/main.go (flag parsing, REPL loop,
// disassembly flag) restructured onto github.com/urfave/cli/v3 the way
// wudi-hey's cmd/hey/main.go structures its own command tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	app := &cli.Command{
		Name:    "corevm",
		Usage:   "assemble, run, and inspect bytecode programs for the effect/async/actor VM",
		Version: version,
		Commands: []*cli.Command{
			runCommand,
			asmCommand,
			replCommand,
			serveCommand,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "corevm: %v\n", err)
		os.Exit(1)
	}
}
