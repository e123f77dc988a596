// Package datam implements FuzzerK's expression compiler (spec §4.D):
// translating a whitespace-trimmed source token plus an expected kind
// into a typed Operand, the compiled reference the interpreter resolves
// against a VM context at run time.
//
// Grounded on the teacher's bytecode-to-instruction translation shape
// (go/interpreter/lfvm/converter.go): a one-pass, no-backtracking
// translation from raw source to a typed, closed representation, with
// every failure returned as an error rather than panicking.
package datam

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ExpectedKind is the kind of operand an instruction's grammar requires
// at a given operand position.
type ExpectedKind int

const (
	// ExpectInt compiles a variable reference as an int-namespace
	// variable. Literals are classified by their own form whatever the
	// expected kind, and are coerced when the instruction reads them.
	ExpectInt ExpectedKind = iota
	// ExpectString compiles a variable reference as a string-namespace
	// variable; literals are handled as for ExpectInt.
	ExpectString
	// ExpectAny allows a literal of any kind, or a variable resolved at
	// read time by searching int -> string -> buffer.
	ExpectAny
)

// OperandKind identifies which alternative a compiled Operand holds.
type OperandKind int

const (
	OpIntLiteral OperandKind = iota
	OpStringLiteral
	OpBufLiteral
	OpIntVar
	OpStringVar
	OpAnyVar
	OpTimestamp
	OpRandomBytes
)

// Operand is a compiled, typed reference produced by Compile: either a
// literal value, a named variable of an expected kind, or a special.
type Operand struct {
	Kind OperandKind

	IntLit    int64
	StringLit string
	BufLit    []byte
	VarName   string
	RandomN   int
}

func (o Operand) String() string {
	switch o.Kind {
	case OpIntLiteral:
		return fmt.Sprintf("%d", o.IntLit)
	case OpStringLiteral:
		return fmt.Sprintf("%q", o.StringLit)
	case OpBufLiteral:
		return "$0x" + hex.EncodeToString(o.BufLit)
	case OpIntVar, OpStringVar, OpAnyVar:
		return o.VarName
	case OpTimestamp:
		return "__TIME__STAMP__"
	case OpRandomBytes:
		return fmt.Sprintf("__RANDOM__BYTES__%d", o.RandomN)
	default:
		return "<invalid operand>"
	}
}

const (
	timestampTag   = "__TIME__STAMP__"
	randomBytesTag = "__RANDOM__BYTES__"
)

// Compile classifies and parses a single token per spec §4.D's dispatch
// table. Failures are fatal at compile time: the caller (internal/asm)
// wraps them with source position.
func Compile(token string, expect ExpectedKind) (Operand, error) {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return Operand{}, fmt.Errorf("datam: empty operand")
	}

	switch {
	case tok == timestampTag:
		return Operand{Kind: OpTimestamp}, nil

	case strings.HasPrefix(tok, randomBytesTag):
		nStr := tok[len(randomBytesTag):]
		n, err := strconv.Atoi(nStr)
		if err != nil {
			return Operand{}, fmt.Errorf("datam: %w: invalid %s suffix %q: %v", ErrMalformedLiteral, randomBytesTag, nStr, err)
		}
		return Operand{Kind: OpRandomBytes, RandomN: n}, nil

	case strings.HasPrefix(tok, "__") && strings.HasSuffix(tok, "__") && len(tok) > 4:
		// Looks like one of the double-underscore specials but matches
		// neither __TIME__STAMP__ nor __RANDOM__BYTES__<n>.
		return Operand{}, fmt.Errorf("datam: %w: %q", ErrUnknownSpecial, tok)

	case tok[0] == '"':
		s, err := parseStringLiteral(tok)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OpStringLiteral, StringLit: s}, nil

	case strings.HasPrefix(tok, "$0x") || strings.HasPrefix(tok, "$0X"):
		hexDigits := tok[3:]
		if len(hexDigits)%2 != 0 {
			return Operand{}, fmt.Errorf("datam: %w: buffer literal %q has an odd number of hex digits", ErrOddLengthHexBlob, tok)
		}
		b, err := hex.DecodeString(hexDigits)
		if err != nil {
			return Operand{}, fmt.Errorf("datam: %w: invalid buffer literal %q: %v", ErrMalformedLiteral, tok, err)
		}
		return Operand{Kind: OpBufLiteral, BufLit: b}, nil

	case isIntLiteralStart(tok[0]):
		i, err := parseIntLiteral(tok)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OpIntLiteral, IntLit: i}, nil

	case isAlpha(tok[0]):
		return compileVar(tok, expect), nil

	default:
		// Every recognized literal form has been ruled out above, so
		// this token was meant to name a variable but its first
		// character isn't a letter (spec.md §4.D/§7: "variable starting
		// with non-letter").
		return Operand{}, fmt.Errorf("datam: %w: %q", ErrBadVariableName, tok)
	}
}

func compileVar(name string, expect ExpectedKind) Operand {
	switch expect {
	case ExpectInt:
		return Operand{Kind: OpIntVar, VarName: name}
	case ExpectString:
		return Operand{Kind: OpStringVar, VarName: name}
	default:
		return Operand{Kind: OpAnyVar, VarName: name}
	}
}

func isIntLiteralStart(b byte) bool {
	return (b >= '0' && b <= '9') || b == '+' || b == '-'
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func parseIntLiteral(tok string) (int64, error) {
	neg := false
	s := tok
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("datam: %w: malformed integer literal %q", ErrMalformedLiteral, tok)
	}

	var v int64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		var u uint64
		u, err = strconv.ParseUint(s[2:], 16, 64)
		v = int64(u)
	} else {
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("datam: %w: malformed integer literal %q: %v", ErrMalformedLiteral, tok, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// parseStringLiteral consumes a "..." literal with backslash-escaping of
// any single following character. Interior whitespace is preserved.
// Trailing data after the closing quote is a compile error.
func parseStringLiteral(tok string) (string, error) {
	if len(tok) < 2 || tok[0] != '"' {
		return "", fmt.Errorf("datam: %w: malformed string literal %q", ErrMalformedLiteral, tok)
	}
	var b strings.Builder
	i := 1
	closed := false
	for i < len(tok) {
		c := tok[i]
		if c == '\\' {
			if i+1 >= len(tok) {
				return "", fmt.Errorf("datam: %w: dangling escape in string literal %q", ErrMalformedLiteral, tok)
			}
			b.WriteByte(tok[i+1])
			i += 2
			continue
		}
		if c == '"' {
			closed = true
			i++
			break
		}
		b.WriteByte(c)
		i++
	}
	if !closed {
		return "", fmt.Errorf("datam: %w: unterminated string literal %q", ErrMismatchedQuotes, tok)
	}
	if i != len(tok) {
		return "", fmt.Errorf("datam: %w: trailing data after closing quote in %q", ErrMismatchedQuotes, tok)
	}
	return b.String(), nil
}
