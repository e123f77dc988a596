package asm

import (
	"fmt"
	"strings"

	"github.com/fuzzerk/fuzzerk/internal/datam"
	"github.com/fuzzerk/fuzzerk/internal/vm"
)

// splitOperands splits s on whitespace, treating a double-quoted region
// (with backslash-escaping) as a single token even if it contains
// spaces.
func splitOperands(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		if inQuotes {
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				cur.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == '"' {
				inQuotes = false
			}
			i++
			continue
		}
		if c == '"' {
			inQuotes = true
			cur.WriteByte(c)
			i++
			continue
		}
		if c == ' ' {
			flush()
			i++
			continue
		}
		cur.WriteByte(c)
		i++
	}
	flush()
	return out
}

func assembleInstruction(line string, lineNo int) (vm.Instruction, error) {
	fields := strings.SplitN(line, " ", 2)
	mnemonic := fields[0]
	rest := ""
	if len(fields) == 2 {
		rest = fields[1]
	}
	op, ok := vm.LookupOpcode(mnemonic)
	if !ok {
		return vm.Instruction{}, compileErr(lineNo, mnemonic, fmt.Errorf("%w: %q", vm.ErrUnknownOpcode, mnemonic))
	}
	args := splitOperands(rest)

	instr := vm.Instruction{Op: op, Line: lineNo}

	switch op {
	case vm.OpNop, vm.OpRet:
		return requireArgs(instr, args, 0, lineNo, mnemonic)

	case vm.OpInc, vm.OpDec, vm.OpIobFlush, vm.OpIobClose:
		if err := requireArity(args, 1, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Dst = args[0]
		return instr, nil

	case vm.OpLetStr:
		return assembleLet(instr, args, datam.ExpectString, lineNo, mnemonic)
	case vm.OpLetInt:
		return assembleLet(instr, args, datam.ExpectInt, lineNo, mnemonic)
	case vm.OpLetBuf, vm.OpLetBufString:
		kind := datam.ExpectAny
		if op == vm.OpLetBufString {
			kind = datam.ExpectString
		}
		return assembleLet(instr, args, kind, lineNo, mnemonic)

	case vm.OpAdd, vm.OpSub, vm.OpMult, vm.OpDiv, vm.OpMod:
		if err := requireArity(args, 3, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Dst = args[0]
		a, err := compileOperand(args[1], datam.ExpectInt, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		b, err := compileOperand(args[2], datam.ExpectInt, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		instr.Srcs = []datam.Operand{a, b}
		return instr, nil

	case vm.OpBufNew:
		if err := requireArity(args, 2, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Dst = args[0]
		size, err := compileOperand(args[1], datam.ExpectInt, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		instr.Srcs = []datam.Operand{size}
		return instr, nil

	case vm.OpIobNew:
		if len(args) < 2 {
			return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected id and address", vm.ErrWrongArgumentCount))
		}
		instr.Dst = args[0]
		instr.Addr = args[1]
		opts := map[string]string{}
		for _, kv := range args[2:] {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: malformed option %q", vm.ErrWrongArgumentCount, kv))
			}
			opts[parts[0]] = parts[1]
		}
		instr.IOOpts = opts
		return instr, nil

	case vm.OpIobWrite:
		if err := requireArity(args, 2, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Dst = args[0]
		src, err := compileOperand(args[1], datam.ExpectAny, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		instr.Srcs = []datam.Operand{src}
		return instr, nil

	case vm.OpIobRead:
		if err := requireArity(args, 2, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Dst = args[0]
		src, err := compileOperand(args[1], datam.ExpectAny, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		instr.Srcs = []datam.Operand{src}
		return instr, nil

	case vm.OpIfLtInt, vm.OpIfGtInt, vm.OpIfLeInt, vm.OpIfGeInt, vm.OpIfEqBuf, vm.OpIfNeBuf:
		return assembleIfOp(instr, args, lineNo, mnemonic)

	case vm.OpCheckJump:
		if err := requireArity(args, 5, lineNo, mnemonic); err != nil {
			return instr, err
		}
		a, err := compileOperand(args[0], datam.ExpectInt, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		b, err := compileOperand(args[1], datam.ExpectInt, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		instr.Srcs = []datam.Operand{a, b}
		instr.Targets = [3]string{args[2], args[3], args[4]}
		return instr, nil

	case vm.OpJump:
		if err := requireArity(args, 1, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Target = args[0]
		return instr, nil

	case vm.OpCall:
		if len(args) < 1 {
			return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected a function name", vm.ErrWrongArgumentCount))
		}
		instr.Target = args[0]
		instr.Args = args[1:]
		return instr, nil

	case vm.OpSleepMsec:
		if err := requireArity(args, 1, lineNo, mnemonic); err != nil {
			return instr, err
		}
		e, err := compileOperand(args[0], datam.ExpectInt, lineNo, mnemonic)
		if err != nil {
			return instr, err
		}
		instr.Srcs = []datam.Operand{e}
		return instr, nil

	case vm.OpFcGet:
		if err := requireArity(args, 2, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Target = args[0]
		instr.Dst = args[1]
		return instr, nil

	case vm.OpBuf8Randomize:
		if err := requireArity(args, 6, lineNo, mnemonic); err != nil {
			return instr, err
		}
		instr.Dst = args[0]
		srcs := make([]datam.Operand, 5)
		for i := 0; i < 5; i++ {
			o, err := compileOperand(args[i+1], datam.ExpectInt, lineNo, mnemonic)
			if err != nil {
				return instr, err
			}
			srcs[i] = o
		}
		instr.Srcs = srcs
		return instr, nil

	case vm.OpBufsMerge:
		if len(args) < 2 {
			return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected a destination and at least one source", vm.ErrWrongArgumentCount))
		}
		instr.Dst = args[0]
		srcs := make([]datam.Operand, 0, len(args)-1)
		for _, a := range args[1:] {
			o, err := compileOperand(a, datam.ExpectAny, lineNo, mnemonic)
			if err != nil {
				return instr, err
			}
			srcs = append(srcs, o)
		}
		instr.Srcs = srcs
		return instr, nil

	case vm.OpBufMerged, vm.OpBufMergedString:
		if len(args) < 2 {
			return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected a destination and at least one source", vm.ErrWrongArgumentCount))
		}
		instr.Dst = args[0]
		srcs := make([]datam.Operand, 0, len(args)-1)
		for _, a := range args[1:] {
			o, err := compileOperand(a, datam.ExpectAny, lineNo, mnemonic)
			if err != nil {
				return instr, err
			}
			srcs = append(srcs, o)
		}
		instr.Srcs = srcs
		return instr, nil

	default:
		return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: %q", vm.ErrUnknownOpcode, mnemonic))
	}
}

func assembleLet(instr vm.Instruction, args []string, kind datam.ExpectedKind, lineNo int, mnemonic string) (vm.Instruction, error) {
	if err := requireArity(args, 2, lineNo, mnemonic); err != nil {
		return instr, err
	}
	instr.Dst = args[0]
	e, err := compileOperand(args[1], kind, lineNo, mnemonic)
	if err != nil {
		return instr, err
	}
	instr.Srcs = []datam.Operand{e}
	return instr, nil
}

// assembleIfOp handles `if<op> A, B, goto/call LABEL [args...]`.
func assembleIfOp(instr vm.Instruction, args []string, lineNo int, mnemonic string) (vm.Instruction, error) {
	if len(args) < 4 {
		return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected A, B, goto/call and a target", vm.ErrWrongArgumentCount))
	}
	kind := datam.ExpectInt
	if instr.Op == vm.OpIfEqBuf || instr.Op == vm.OpIfNeBuf {
		kind = datam.ExpectAny
	}
	a, err := compileOperand(args[0], kind, lineNo, mnemonic)
	if err != nil {
		return instr, err
	}
	b, err := compileOperand(args[1], kind, lineNo, mnemonic)
	if err != nil {
		return instr, err
	}
	instr.Srcs = []datam.Operand{a, b}

	verb := args[2]
	switch verb {
	case "goto":
		instr.Target = args[3]
		instr.IsCall = false
		if len(args) > 4 {
			return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: goto takes no call arguments", vm.ErrWrongArgumentCount))
		}
	case "call":
		instr.Target = args[3]
		instr.Args = args[4:]
		instr.IsCall = true
	default:
		return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected goto or call, got %q", vm.ErrWrongArgumentCount, verb))
	}
	return instr, nil
}

func requireArity(args []string, n int, lineNo int, mnemonic string) error {
	if len(args) != n {
		return compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected %d argument(s), got %d", vm.ErrWrongArgumentCount, n, len(args)))
	}
	return nil
}

func requireArgs(instr vm.Instruction, args []string, n int, lineNo int, mnemonic string) (vm.Instruction, error) {
	if len(args) != n {
		return instr, compileErr(lineNo, mnemonic, fmt.Errorf("%w: expected %d argument(s), got %d", vm.ErrWrongArgumentCount, n, len(args)))
	}
	return instr, nil
}

