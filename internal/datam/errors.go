package datam

// ConstError is a string-typed sentinel error, mirroring the
// vm.ConstError pattern (internal/vm/errors.go). It is duplicated here
// rather than imported because internal/vm imports internal/datam, and
// the reverse import would cycle. internal/asm bridges the two
// packages: compileOperand (assembler.go) maps each of these onto the
// matching vm.Error-wrapped sentinel before the error reaches a caller.
type ConstError string

func (e ConstError) Error() string { return string(e) }

const (
	ErrMalformedLiteral ConstError = "malformed literal"
	ErrUnknownSpecial   ConstError = "unknown special tag"
	ErrBadVariableName  ConstError = "variable name does not start with a letter"
	ErrMismatchedQuotes ConstError = "mismatched quotes"
	ErrOddLengthHexBlob ConstError = "odd-length hex blob"
)
