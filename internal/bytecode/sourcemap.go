package bytecode

import (
	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// decodeVLQLine resolves a source line for instruction ip using a standard
// VLQ-encoded source map (as github.com/go-sourcemap/sourcemap parses),
// addressed by treating the instruction stream as a single logical line
// of "generated columns" (one column per instruction). This lets an
// external compiler ship a conventional source map instead of the
// teacher's parallel Chunk.Lines array.
func decodeVLQLine(raw []byte, ip int) (int, bool) {
	smap, err := gosourcemap.Parse("", raw)
	if err != nil {
		return 0, false
	}
	_, _, line, _, ok := smap.Source(1, ip)
	return line, ok
}
