// Package variant implements FuzzerK's tagged value type: the single
// dynamically-typed value that flows through every VM namespace
// (integers, strings, buffers) plus the two parameter-less specials
// (timestamp, random bytes).
//
// Variant is a closed tagged union, not a class hierarchy: Kind pins
// down exactly which of the five representations is live, and every
// coercion is read-only — converting a Variant to a different view
// never mutates the value it was read from.
package variant

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fuzzerk/fuzzerk/internal/randsrc"
)

// Kind identifies which representation a Variant holds.
type Kind int

const (
	KindInt Kind = iota
	KindStr
	KindBuf
	KindTimestamp
	KindRandomBytes
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindStr:
		return "string"
	case KindBuf:
		return "buffer"
	case KindTimestamp:
		return "timestamp"
	case KindRandomBytes:
		return "random-bytes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Variant is a tagged value. The zero value is the integer 0.
type Variant struct {
	kind      Kind
	intVal    int64
	strVal    string
	bufVal    []byte
	randBytes int // payload for KindRandomBytes
}

func Int(v int64) Variant  { return Variant{kind: KindInt, intVal: v} }
func Str(v string) Variant { return Variant{kind: KindStr, strVal: v} }

// Buf copies bytes into the Variant so later mutation of the caller's
// slice cannot change a value already stored.
func Buf(v []byte) Variant {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Variant{kind: KindBuf, bufVal: cp}
}

func Timestamp() Variant { return Variant{kind: KindTimestamp} }

func RandomBytes(n int) Variant { return Variant{kind: KindRandomBytes, randBytes: n} }

func (v Variant) Kind() Kind { return v.kind }

// wordSize is the machine word size used for native-endian encode/decode
// of the integer view. This pins byte-image round-trips to 8 bytes
// regardless of GOARCH, which keeps captured fuzzing programs portable
// between 32- and 64-bit hosts running the same FuzzerK build.
const wordSize = 8

// Int returns the integer view of the Variant.
func (v Variant) Int() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.intVal, nil
	case KindStr:
		s := v.strVal
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			u, err := strconv.ParseUint(s[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("variant: %q is not a valid hex integer: %w", s, err)
			}
			return int64(u), nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("variant: %q is not a valid decimal integer: %w", s, err)
		}
		return i, nil
	case KindBuf:
		if len(v.bufVal) != wordSize {
			return 0, fmt.Errorf("variant: %w: buffer of length %d cannot be decoded as an integer (need %d)", ErrLengthMismatch, len(v.bufVal), wordSize)
		}
		return int64(binary.NativeEndian.Uint64(v.bufVal)), nil
	case KindTimestamp:
		return nowMillis(), nil
	case KindRandomBytes:
		n := v.randBytes
		if n > wordSize {
			n = wordSize
		}
		buf := make([]byte, wordSize)
		randRead(buf[:n])
		return int64(binary.NativeEndian.Uint64(buf)), nil
	default:
		return 0, fmt.Errorf("variant: unknown kind %v", v.kind)
	}
}

// Usize is Int with an additional non-negative check, used wherever the
// VM needs a length or offset.
func (v Variant) Usize() (uint64, error) {
	i, err := v.Int()
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("variant: %w: negative value %d where an unsigned length was required", ErrNegativeLength, i)
	}
	return uint64(i), nil
}

// Str returns the string view of the Variant.
func (v Variant) Str() (string, error) {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.intVal, 10), nil
	case KindStr:
		return v.strVal, nil
	case KindBuf:
		return hex.EncodeToString(v.bufVal), nil
	case KindTimestamp:
		return strconv.FormatInt(nowMillis(), 10), nil
	case KindRandomBytes:
		buf := make([]byte, v.randBytes)
		randRead(buf)
		return string(buf), nil
	default:
		return "", fmt.Errorf("variant: unknown kind %v", v.kind)
	}
}

// Buf returns the byte-slice view of the Variant. The returned slice is
// always freshly allocated; mutating it never affects the Variant.
func (v Variant) Buf() ([]byte, error) {
	switch v.kind {
	case KindInt:
		buf := make([]byte, wordSize)
		binary.NativeEndian.PutUint64(buf, uint64(v.intVal))
		return buf, nil
	case KindStr:
		return []byte(v.strVal), nil
	case KindBuf:
		cp := make([]byte, len(v.bufVal))
		copy(cp, v.bufVal)
		return cp, nil
	case KindTimestamp:
		buf := make([]byte, wordSize)
		binary.NativeEndian.PutUint64(buf, uint64(nowMillis()))
		return buf, nil
	case KindRandomBytes:
		buf := make([]byte, v.randBytes)
		randRead(buf)
		return buf, nil
	default:
		return nil, fmt.Errorf("variant: unknown kind %v", v.kind)
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// randRead draws fresh entropy per call from the shared process-wide
// generator; Specials are never memoized (spec §4.A).
func randRead(dst []byte) {
	randsrc.Read(dst)
}
