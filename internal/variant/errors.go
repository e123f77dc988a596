package variant

// ConstError is a string-typed sentinel error, mirroring vm.ConstError
// (internal/vm/errors.go). It is duplicated here rather than imported
// because internal/vm imports internal/variant, and the reverse import
// would cycle. internal/vm's readInt/readUsize (operand.go) bridge the
// two packages, mapping these onto the matching vm.Error-wrapped
// sentinel before the error reaches a caller.
type ConstError string

func (e ConstError) Error() string { return string(e) }

const (
	ErrLengthMismatch ConstError = "integer/buffer length mismatch in byte-to-int decode"
	ErrNegativeLength ConstError = "negative length where an unsigned length was required"
)
