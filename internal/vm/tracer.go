package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/dsnet/golib/unitconv"
	"golang.org/x/crypto/sha3"
)

// Tracer logs per-instruction execution, generalizing the teacher's
// loggingRunner (go/interpreter/lfvm/instruction_logger.go) from EVM
// opcode/gas/stack-top lines to FuzzerK's opcode/iptr/step lines. It
// also reports I/O bridge throughput (via unitconv, a teacher
// dependency) and a short content fingerprint (via golang.org/x/crypto/
// sha3, also a teacher dependency) so long fuzzing runs can be
// correlated against captured traffic without re-printing whole
// buffers.
type Tracer struct {
	out io.Writer
}

// NewTracer returns a Tracer writing to w. A nil w defaults to stderr.
func NewTracer(w io.Writer) *Tracer {
	if w == nil {
		w = os.Stderr
	}
	return &Tracer{out: w}
}

// Trace logs one instruction before it executes: opcode, instruction
// pointer and current fuzz step.
func (t *Tracer) Trace(ctx *Context, instr Instruction) {
	fmt.Fprintf(t.out, "%04d: %-14s step=%d calls=%d\n", ctx.iptr, instr.Op, ctx.stepu, len(ctx.callstack))
}

// TraceWrite logs the volume and a short fingerprint of a record
// written through an I/O bridge.
func (t *Tracer) TraceWrite(n int, data []byte) {
	sum := sha3.Sum256(data)
	fmt.Fprintf(t.out, "  iobwrite: %sB (%x)\n", unitconv.FormatPrefix(float64(n), unitconv.IEC, 2), sum[:4])
}

// TraceIOError logs a non-fatal I/O bridge failure (spec §7: "Reported
// non-fatal"); execution continues regardless.
func (t *Tracer) TraceIOError(op string, err error) {
	fmt.Fprintf(t.out, "  %s: error (non-fatal): %v\n", op, err)
}
