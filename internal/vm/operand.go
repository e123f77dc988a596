package vm

import (
	"errors"
	"fmt"

	"github.com/fuzzerk/fuzzerk/internal/datam"
	"github.com/fuzzerk/fuzzerk/internal/variant"
)

// variantErrMap bridges internal/variant's local sentinels onto their
// vm.Error equivalents, the same way asm.mapDatamError bridges
// internal/datam: internal/variant cannot import internal/vm (vm
// already imports variant), so the two sentinel sets are declared
// independently and joined here.
var variantErrMap = map[error]ConstError{
	variant.ErrLengthMismatch: ErrLengthMismatch,
	variant.ErrNegativeLength: ErrNegativeLength,
}

func mapVariantError(err error) error {
	for variantErr, vmErr := range variantErrMap {
		if errors.Is(err, variantErr) {
			return fmt.Errorf("%w: %v", vmErr, err)
		}
	}
	return err
}

// readOperand resolves a compiled Operand against the Context, applying
// the any-var resolution order (int -> string -> buffer) where relevant.
func (c *Context) readOperand(op datam.Operand) (variant.Variant, error) {
	switch op.Kind {
	case datam.OpIntLiteral:
		return variant.Int(op.IntLit), nil
	case datam.OpStringLiteral:
		return variant.Str(op.StringLit), nil
	case datam.OpBufLiteral:
		return variant.Buf(op.BufLit), nil
	case datam.OpTimestamp:
		return variant.Timestamp(), nil
	case datam.OpRandomBytes:
		return variant.RandomBytes(op.RandomN), nil
	case datam.OpIntVar:
		v, ok := c.GetInt(op.VarName)
		if !ok {
			return variant.Variant{}, fmt.Errorf("%w: int variable %q", ErrLookupMiss, op.VarName)
		}
		return variant.Int(v), nil
	case datam.OpStringVar:
		v, ok := c.GetStr(op.VarName)
		if !ok {
			return variant.Variant{}, fmt.Errorf("%w: string variable %q", ErrLookupMiss, op.VarName)
		}
		return variant.Str(v), nil
	case datam.OpAnyVar:
		v, ok := c.ResolveAny(op.VarName)
		if !ok {
			return variant.Variant{}, fmt.Errorf("%w: variable %q", ErrLookupMiss, op.VarName)
		}
		return v, nil
	default:
		return variant.Variant{}, fmt.Errorf("%w: operand kind %d", ErrMalformedLiteral, op.Kind)
	}
}

func (c *Context) readInt(op datam.Operand) (int64, error) {
	v, err := c.readOperand(op)
	if err != nil {
		return 0, err
	}
	i, err := v.Int()
	if err != nil {
		return 0, mapVariantError(err)
	}
	return i, nil
}

func (c *Context) readStr(op datam.Operand) (string, error) {
	v, err := c.readOperand(op)
	if err != nil {
		return "", err
	}
	return v.Str()
}

func (c *Context) readBuf(op datam.Operand) ([]byte, error) {
	v, err := c.readOperand(op)
	if err != nil {
		return nil, err
	}
	return v.Buf()
}

func (c *Context) readUsize(op datam.Operand) (uint64, error) {
	v, err := c.readOperand(op)
	if err != nil {
		return 0, err
	}
	n, err := v.Usize()
	if err != nil {
		return 0, mapVariantError(err)
	}
	return n, nil
}
