// Package vm implements FuzzerK's VM context and instruction
// interpreter (spec §4.F, §4.G): a cooperative, single-threaded,
// synchronous execution engine over a flat instruction stream with
// labels, user-defined functions, a call stack, and locals-aliasing
// frames for pass-by-name arguments.
//
// Grounded on the teacher's run/step loop
// (go/interpreter/lfvm/interpreter.go): a context struct the
// interpreter mutates in place, a status/instruction-pointer pair
// driving a for-loop, and per-opcode helper functions dispatched from
// a single switch.
package vm

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/fuzzerk/fuzzerk/internal/iobridge"
	"github.com/fuzzerk/fuzzerk/internal/randsrc"
)

// Run executes prog against ctx starting at instruction 0 until the
// instruction pointer runs off the end of the program, a fatal error is
// raised, or maxSteps instructions have executed (0 = unlimited).
func Run(ctx *Context, prog *Program, maxSteps int) error {
	ctx.lbls = prog.Labels
	ctx.funcs = prog.Funcs
	ctx.iptr = 0

	executed := 0
	for ctx.iptr >= 0 && ctx.iptr < len(prog.Instructions) {
		if maxSteps > 0 && executed >= maxSteps {
			return nil
		}
		instr := prog.Instructions[ctx.iptr]
		ctx.commonUpdate = true

		if ctx.Tracer != nil {
			ctx.Tracer.Trace(ctx, instr)
		}

		if err := execOne(ctx, instr); err != nil {
			return err
		}

		if ctx.commonUpdate {
			ctx.iptr++
		}
		executed++
	}
	return nil
}

func execOne(ctx *Context, instr Instruction) error {
	switch instr.Op {
	case OpNop:
		// nothing

	case OpLetStr:
		s, err := ctx.readStr(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "letstr", err)
		}
		ctx.SetStr(instr.Dst, s)

	case OpLetInt:
		i, err := ctx.readInt(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "letint", err)
		}
		ctx.SetInt(instr.Dst, i)

	case OpInc, OpDec:
		v, ok := ctx.GetInt(instr.Dst)
		if !ok {
			return runtimeErr(ctx.iptr, instr.Op.String(), fmt.Errorf("%w: %q", ErrLookupMiss, instr.Dst))
		}
		if instr.Op == OpInc {
			v++
		} else {
			v--
		}
		ctx.SetInt(instr.Dst, v)

	case OpAdd, OpSub, OpMult, OpDiv, OpMod:
		a, err := ctx.readInt(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, instr.Op.String(), err)
		}
		b, err := ctx.readInt(instr.Srcs[1])
		if err != nil {
			return runtimeErr(ctx.iptr, instr.Op.String(), err)
		}
		res, err := alu(instr.Op, a, b)
		if err != nil {
			return runtimeErr(ctx.iptr, instr.Op.String(), err)
		}
		ctx.SetInt(instr.Dst, res)

	case OpIobNew:
		if err := execIobNew(ctx, instr); err != nil {
			return err
		}

	case OpIobWrite:
		b, ok := ctx.GetIOBridge(instr.Dst)
		if !ok {
			return runtimeErr(ctx.iptr, "iobwrite", fmt.Errorf("%w: bridge %q", ErrLookupMiss, instr.Dst))
		}
		buf, err := ctx.readBuf(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "iobwrite", err)
		}
		if _, err := b.Write(buf); err != nil {
			logBridgeError(ctx, "iobwrite", err)
		} else if ctx.Tracer != nil {
			ctx.Tracer.TraceWrite(len(buf), buf)
		}

	case OpIobFlush:
		b, ok := ctx.GetIOBridge(instr.Dst)
		if !ok {
			return runtimeErr(ctx.iptr, "iobflush", fmt.Errorf("%w: bridge %q", ErrLookupMiss, instr.Dst))
		}
		if err := b.Flush(); err != nil {
			logBridgeError(ctx, "iobflush", err)
		}

	case OpIobRead:
		b, ok := ctx.GetIOBridge(instr.Dst)
		if !ok {
			return runtimeErr(ctx.iptr, "iobread", fmt.Errorf("%w: bridge %q", ErrLookupMiss, instr.Dst))
		}
		scratch := make([]byte, 4096)
		n, err := b.Read(scratch)
		if err != nil {
			logBridgeError(ctx, "iobread", err)
		} else {
			ctx.SetBuf(instr.Srcs[0].VarName, scratch[:n])
		}

	case OpIobClose:
		ctx.CloseIOBridge(instr.Dst)

	case OpIfLtInt, OpIfGtInt, OpIfLeInt, OpIfGeInt, OpIfEqBuf, OpIfNeBuf:
		taken, err := evalCondition(ctx, instr)
		if err != nil {
			return runtimeErr(ctx.iptr, instr.Op.String(), err)
		}
		if taken {
			return takeBranch(ctx, instr.Target, instr.Args, instr.IsCall, instr.Op.String())
		}

	case OpCheckJump:
		return execCheckJump(ctx, instr)

	case OpJump:
		if instr.Target == NextLabel {
			return nil
		}
		idx, ok := ctx.Label(instr.Target)
		if !ok {
			return runtimeErr(ctx.iptr, "jump", fmt.Errorf("%w: label %q", ErrLookupMiss, instr.Target))
		}
		ctx.iptr = idx
		ctx.commonUpdate = false

	case OpCall:
		return doCall(ctx, instr.Target, instr.Args, ctx.iptr+1)

	case OpRet:
		return doRet(ctx)

	case OpSleepMsec:
		ms, err := ctx.readInt(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "sleepmsec", err)
		}
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}

	case OpFcGet:
		chain, ok := ctx.Chains[instr.Target]
		if !ok {
			return runtimeErr(ctx.iptr, "fcget", fmt.Errorf("%w: fuzz chain %q", ErrLookupMiss, instr.Target))
		}
		buf := chain.Get()
		ctx.stepu++
		ctx.SetBuf(instr.Dst, buf)

	case OpBufNew:
		size, err := ctx.readUsize(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "bufnew", err)
		}
		ctx.SetBuf(instr.Dst, make([]byte, size))

	case OpLetBuf:
		b, err := ctx.readBuf(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "letbuf", err)
		}
		ctx.SetBuf(instr.Dst, b)

	case OpLetBufString:
		s, err := ctx.readStr(instr.Srcs[0])
		if err != nil {
			return runtimeErr(ctx.iptr, "letbuf.s", err)
		}
		ctx.SetBuf(instr.Dst, []byte(s))

	case OpBuf8Randomize:
		if err := execBuf8Randomize(ctx, instr); err != nil {
			return runtimeErr(ctx.iptr, "buf8randomize", err)
		}

	case OpBufsMerge:
		if err := execBufsMerge(ctx, instr); err != nil {
			return runtimeErr(ctx.iptr, "bufsmerge", err)
		}

	case OpBufMerged:
		if err := execBufMerged(ctx, instr, false); err != nil {
			return runtimeErr(ctx.iptr, "bufmerged", err)
		}

	case OpBufMergedString:
		if err := execBufMerged(ctx, instr, true); err != nil {
			return runtimeErr(ctx.iptr, "bufmerged.s", err)
		}

	default:
		return runtimeErr(ctx.iptr, instr.Op.String(), ErrUnknownOpcode)
	}
	return nil
}

func alu(op Opcode, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMult:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, ErrDivByZero
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return 0, ErrDivByZero
		}
		return a % b, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownOpcode, op)
	}
}

// evalCondition evaluates the primitive/derived predicate for an if<op>
// instruction (spec §4.F condition ops): IfLtInt and IfEqBuf are
// primitives; IfGtInt = Lt(b,a), IfLeInt = Lt(a,b+1), IfGeInt =
// Lt(b,a+1), IfNeBuf = not Eq(a,b).
func evalCondition(ctx *Context, instr Instruction) (bool, error) {
	switch instr.Op {
	case OpIfLtInt, OpIfGtInt, OpIfLeInt, OpIfGeInt:
		a, err := ctx.readInt(instr.Srcs[0])
		if err != nil {
			return false, err
		}
		b, err := ctx.readInt(instr.Srcs[1])
		if err != nil {
			return false, err
		}
		switch instr.Op {
		case OpIfLtInt:
			return a < b, nil
		case OpIfGtInt:
			return b < a, nil
		case OpIfLeInt:
			return a < b+1, nil
		case OpIfGeInt:
			return b < a+1, nil
		}
	case OpIfEqBuf, OpIfNeBuf:
		a, err := ctx.readBuf(instr.Srcs[0])
		if err != nil {
			return false, err
		}
		b, err := ctx.readBuf(instr.Srcs[1])
		if err != nil {
			return false, err
		}
		eq := bytes.Equal(a, b)
		if instr.Op == OpIfNeBuf {
			return !eq, nil
		}
		return eq, nil
	}
	return false, fmt.Errorf("%w: %v is not a condition opcode", ErrUnknownOpcode, instr.Op)
}

func takeBranch(ctx *Context, target string, args []string, isCall bool, opName string) error {
	if isCall {
		return doCall(ctx, target, args, ctx.iptr+1)
	}
	if target == NextLabel {
		return nil
	}
	idx, ok := ctx.Label(target)
	if !ok {
		return runtimeErr(ctx.iptr, opName, fmt.Errorf("%w: label %q", ErrLookupMiss, target))
	}
	ctx.iptr = idx
	ctx.commonUpdate = false
	return nil
}

func execCheckJump(ctx *Context, instr Instruction) error {
	a, err := ctx.readInt(instr.Srcs[0])
	if err != nil {
		return runtimeErr(ctx.iptr, "checkjump", err)
	}
	b, err := ctx.readInt(instr.Srcs[1])
	if err != nil {
		return runtimeErr(ctx.iptr, "checkjump", err)
	}

	var target string
	switch {
	case a < b:
		target = instr.Targets[0]
	case a == b:
		target = instr.Targets[1]
	default:
		target = instr.Targets[2]
	}
	if target == NextLabel {
		return nil
	}
	idx, ok := ctx.Label(target)
	if !ok {
		return runtimeErr(ctx.iptr, "checkjump", fmt.Errorf("%w: label %q", ErrLookupMiss, target))
	}
	ctx.iptr = idx
	ctx.commonUpdate = false
	return nil
}

// doCall resolves actuals against the caller's current frame, pushes a
// new locals frame binding formals to those resolved actuals, pushes
// returnAddr onto the call stack, and transfers control to fn's entry
// point (spec §4.F call/ret and argument aliasing).
func doCall(ctx *Context, fn string, actualArgs []string, returnAddr int) error {
	def, ok := ctx.Func(fn)
	if !ok {
		return runtimeErr(ctx.iptr, "call", fmt.Errorf("%w: function %q", ErrLookupMiss, fn))
	}
	if len(actualArgs) != len(def.Params) {
		return runtimeErr(ctx.iptr, "call", fmt.Errorf("%w: %s expects %d arguments, got %d", ErrArityMismatch, fn, len(def.Params), len(actualArgs)))
	}

	frame := make(map[string]string, len(def.Params))
	for i, formal := range def.Params {
		frame[formal] = ctx.resolveLocal(actualArgs[i])
	}

	ctx.callstack = append(ctx.callstack, returnAddr)
	ctx.locals = append(ctx.locals, frame)

	ctx.iptr = def.Entry
	ctx.commonUpdate = false
	return nil
}

func doRet(ctx *Context) error {
	if len(ctx.callstack) == 0 {
		return runtimeErr(ctx.iptr, "ret", ErrOrphanRet)
	}
	n := len(ctx.callstack)
	addr := ctx.callstack[n-1]
	ctx.callstack = ctx.callstack[:n-1]
	ctx.locals = ctx.locals[:len(ctx.locals)-1]

	ctx.iptr = addr
	ctx.commonUpdate = false
	return nil
}

func execIobNew(ctx *Context, instr Instruction) error {
	ctx.CloseIOBridge(instr.Dst)
	b, err := iobridge.Open(instr.Addr, instr.IOOpts)
	if err != nil {
		logBridgeError(ctx, "iobnew", err)
		ctx.iobs[ctx.resolveLocal(instr.Dst)] = iobridge.None()
		return nil
	}
	ctx.iobs[ctx.resolveLocal(instr.Dst)] = b
	return nil
}

func logBridgeError(ctx *Context, op string, err error) {
	if ctx.Tracer != nil {
		ctx.Tracer.TraceIOError(op, err)
		return
	}
	log.Printf("fuzzerk: %s: %v", op, err)
}

func execBuf8Randomize(ctx *Context, instr Instruction) error {
	buf, ok := ctx.GetBuf(instr.Dst)
	if !ok {
		return fmt.Errorf("%w: buffer %q", ErrLookupMiss, instr.Dst)
	}
	n, err := ctx.readInt(instr.Srcs[0])
	if err != nil {
		return err
	}
	s, err := ctx.readInt(instr.Srcs[1])
	if err != nil {
		return err
	}
	e, err := ctx.readInt(instr.Srcs[2])
	if err != nil {
		return err
	}
	lo, err := ctx.readInt(instr.Srcs[3])
	if err != nil {
		return err
	}
	hi, err := ctx.readInt(instr.Srcs[4])
	if err != nil {
		return err
	}

	length := len(buf)
	if length == 0 {
		return nil
	}
	start := int(s)
	if s < 0 {
		start = 0
	}
	end := int(e)
	if e < 0 {
		end = length - 1
	}
	if start > end || end >= length {
		return fmt.Errorf("buf8randomize: offset range [%d,%d] out of bounds for buffer of length %d", start, end, length)
	}
	count := int(n)
	if n < 0 {
		count = randsrc.Intn(length)
	}
	for i := 0; i < count; i++ {
		off := randsrc.IntRange(start, end)
		buf[off] = byte(randsrc.IntRange(int(lo), int(hi)))
	}
	ctx.bufs[ctx.resolveLocal(instr.Dst)] = buf
	return nil
}

func execBufsMerge(ctx *Context, instr Instruction) error {
	if len(instr.Srcs) == 0 {
		log.Printf("fuzzerk: bufsmerge %s: zero source arguments, leaving destination unset", instr.Dst)
		return nil
	}
	if len(instr.Srcs) == 1 {
		log.Printf("fuzzerk: bufsmerge %s: only one source argument, this is a plain copy", instr.Dst)
	}
	var out []byte
	for _, src := range instr.Srcs {
		b, err := ctx.readBuf(src)
		if err != nil {
			return err
		}
		out = append(out, b...)
	}
	ctx.SetBuf(instr.Dst, out)
	return nil
}

func execBufMerged(ctx *Context, instr Instruction, asString bool) error {
	var out []byte
	for _, src := range instr.Srcs {
		var b []byte
		var err error
		if asString {
			var s string
			s, err = ctx.readStr(src)
			b = []byte(s)
		} else {
			b, err = ctx.readBuf(src)
		}
		if err != nil {
			return err
		}
		out = append(out, b...)
	}
	ctx.SetBuf(instr.Dst, out)
	return nil
}
