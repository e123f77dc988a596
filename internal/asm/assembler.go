// Package asm implements FuzzerK's program assembler (spec §4.E): a
// one-pass, line-oriented translator from program source text to a
// flat vm.Program, recording label and function directives into symbol
// tables as it goes so branches may reference instructions that appear
// later in the source (forward references resolved at run time, spec
// §4.F/§9).
//
// Grounded on the teacher's codeBuilder (go/interpreter/lfvm/
// converter.go): an append-only instruction builder driven by a single
// forward scan, generalized from byte-opcode scanning to line scanning.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fuzzerk/fuzzerk/internal/datam"
	"github.com/fuzzerk/fuzzerk/internal/vm"
)

// Assemble reads program source from r and produces a vm.Program, or a
// *vm.Error with Kind == vm.KindCompile describing the first problem
// encountered.
func Assemble(r io.Reader) (*vm.Program, error) {
	prog := &vm.Program{
		Labels: map[string]int{},
		Funcs:  map[string]vm.FuncDef{},
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(strings.TrimSpace(raw), "#") {
			continue
		}
		line := removeExtraWhitespace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "!") {
			if err := assembleDirective(prog, line, lineNo); err != nil {
				return nil, err
			}
			continue
		}

		instr, err := assembleInstruction(line, lineNo)
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("asm: reading source: %w", err)
	}
	return prog, nil
}

func assembleDirective(prog *vm.Program, line string, lineNo int) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "!label":
		if len(fields) != 2 {
			return compileErr(lineNo, "!label", fmt.Errorf("%w: expected exactly one name", vm.ErrWrongArgumentCount))
		}
		prog.Labels[fields[1]] = len(prog.Instructions)
	case "!func":
		if len(fields) < 2 {
			return compileErr(lineNo, "!func", fmt.Errorf("%w: expected a name", vm.ErrWrongArgumentCount))
		}
		prog.Funcs[fields[1]] = vm.FuncDef{
			Entry:  len(prog.Instructions),
			Params: append([]string(nil), fields[2:]...),
		}
	default:
		return compileErr(lineNo, fields[0], fmt.Errorf("%w: unknown directive", vm.ErrUnknownOpcode))
	}
	return nil
}

// removeExtraWhitespace normalizes whitespace outside double-quoted
// regions to a single space, preserving everything inside quotes
// (including backslash-escaped characters) verbatim. It is idempotent:
// applying it twice yields the same result as applying it once.
func removeExtraWhitespace(line string) string {
	var b strings.Builder
	inQuotes := false
	lastWasSpace := false
	i := 0
	trimmed := strings.TrimSpace(line)
	for i < len(trimmed) {
		c := trimmed[i]
		if inQuotes {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(trimmed) {
				b.WriteByte(trimmed[i+1])
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
			b.WriteByte(c)
			lastWasSpace = false
			i++
			continue
		}
		if c == ' ' || c == '\t' {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			i++
			continue
		}
		b.WriteByte(c)
		lastWasSpace = false
		i++
	}
	return strings.TrimRight(b.String(), " ")
}

func compileErr(line int, op string, err error) *vm.Error {
	return &vm.Error{Kind: vm.KindCompile, Op: op, Pos: line, Err: err}
}

func compileOperand(token string, kind datam.ExpectedKind, line int, op string) (datam.Operand, error) {
	operand, err := datam.Compile(token, kind)
	if err != nil {
		return datam.Operand{}, compileErr(line, op, mapDatamError(err))
	}
	return operand, nil
}

// datamErrMap pairs each datam-local sentinel with the vm.Error sentinel
// a caller outside internal/datam should see. internal/datam cannot
// import internal/vm (vm already imports datam), so the two sentinel
// sets are declared independently and bridged here, the one place that
// imports both.
var datamErrMap = map[error]vm.ConstError{
	datam.ErrMalformedLiteral: vm.ErrMalformedLiteral,
	datam.ErrUnknownSpecial:   vm.ErrUnknownSpecial,
	datam.ErrBadVariableName:  vm.ErrBadVariableName,
	datam.ErrMismatchedQuotes: vm.ErrMismatchedQuotes,
	datam.ErrOddLengthHexBlob: vm.ErrOddLengthHexBlob,
}

// mapDatamError rewrites a datam-local sentinel into its vm.Error
// equivalent, preserving the original message as wrapped context. Errors
// datam didn't tag with one of its sentinels (e.g. the plain "empty
// operand" message) pass through unchanged.
func mapDatamError(err error) error {
	for datamErr, vmErr := range datamErrMap {
		if errors.Is(err, datamErr) {
			return fmt.Errorf("%w: %v", vmErr, err)
		}
	}
	return err
}
