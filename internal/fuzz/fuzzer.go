// Package fuzz implements FuzzerK's pattern-generator registry and the
// fuzz chains that compose generator output into one record per step
// (spec §4.B, §4.C).
package fuzz

import (
	"github.com/fuzzerk/fuzzerk/internal/randsrc"
)

// Fuzzer is a named byte-producing generator. Implementations only ever
// append to the destination slice passed in by the caller; they never
// truncate or replace existing content (spec §4.B).
type Fuzzer interface {
	// Append produces the bytes for the given step and appends them to
	// dst, returning the extended slice.
	Append(dst []byte, step int) []byte
}

// LoopFixedStrings appends list[step mod len(list)] at every step. It is
// periodic and restartable: the same step always yields the same entry.
type LoopFixedStrings struct {
	List []string
}

func (f LoopFixedStrings) Append(dst []byte, step int) []byte {
	if len(f.List) == 0 {
		return dst
	}
	idx := step % len(f.List)
	if idx < 0 {
		idx += len(f.List)
	}
	return append(dst, f.List[idx]...)
}

// RandomFixedStrings appends a uniformly chosen entry from List,
// ignoring step. It is not restartable: repeated calls at the same step
// may yield different entries.
type RandomFixedStrings struct {
	List []string
}

func (f RandomFixedStrings) Append(dst []byte, _ int) []byte {
	if len(f.List) == 0 {
		return dst
	}
	return append(dst, f.List[randsrc.Intn(len(f.List))]...)
}

// NewPrintables is the preset charset for RandomFixedFuzzer: ASCII 32..126.
func NewPrintables() []byte {
	cs := make([]byte, 0, 126-32+1)
	for b := 32; b <= 126; b++ {
		cs = append(cs, byte(b))
	}
	return cs
}

// RandomFixedFuzzer picks a length uniformly in [Min, Max], then samples
// that many bytes uniformly from Charset.
type RandomFixedFuzzer struct {
	Min, Max int
	Charset  []byte
}

func (f RandomFixedFuzzer) Append(dst []byte, _ int) []byte {
	if len(f.Charset) == 0 {
		return dst
	}
	n := randsrc.IntRange(f.Min, f.Max)
	for i := 0; i < n; i++ {
		dst = append(dst, f.Charset[randsrc.Intn(len(f.Charset))])
	}
	return dst
}

// RandomRandomFuzzer picks a length uniformly in [Min, Max], then
// samples that many bytes uniformly over the full 0..255 range.
type RandomRandomFuzzer struct {
	Min, Max int
}

func (f RandomRandomFuzzer) Append(dst []byte, _ int) []byte {
	n := randsrc.IntRange(f.Min, f.Max)
	if n <= 0 {
		return dst
	}
	buf := make([]byte, n)
	randsrc.Read(buf)
	return append(dst, buf...)
}
