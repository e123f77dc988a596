package variant

import (
	"testing"
)

func TestIntRoundTripsThroughStringAndBuf(t *testing.T) {
	v := Int(-1234)

	s, err := v.Str()
	if err != nil {
		t.Fatalf("Str: %v", err)
	}
	if s != "-1234" {
		t.Fatalf("Str() = %q, want -1234", s)
	}

	buf, err := v.Buf()
	if err != nil {
		t.Fatalf("Buf: %v", err)
	}
	if len(buf) != wordSize {
		t.Fatalf("Buf() length = %d, want %d", len(buf), wordSize)
	}

	back, err := Buf(buf).Int()
	if err != nil {
		t.Fatalf("decode back to int: %v", err)
	}
	if back != -1234 {
		t.Fatalf("round trip = %d, want -1234", back)
	}
}

func TestStrIntCoercionDecimalAndHex(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{"-7", -7},
		{"0x2a", 42},
		{"0X2A", 42},
	}
	for _, c := range cases {
		got, err := Str(c.in).Int()
		if err != nil {
			t.Fatalf("Str(%q).Int(): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Str(%q).Int() = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBufToIntStrictLength(t *testing.T) {
	if _, err := Buf([]byte{1, 2, 3}).Int(); err == nil {
		t.Fatalf("expected error decoding a short buffer as int")
	}
}

func TestBufToStringIsLowercaseHex(t *testing.T) {
	s, err := Buf([]byte{0xde, 0xad, 0xbe, 0xef}).Str()
	if err != nil {
		t.Fatalf("Str: %v", err)
	}
	if s != "deadbeef" {
		t.Fatalf("Str() = %q, want deadbeef", s)
	}
}

func TestUsizeRejectsNegative(t *testing.T) {
	if _, err := Int(-1).Usize(); err == nil {
		t.Fatalf("expected error for negative usize")
	}
	u, err := Int(5).Usize()
	if err != nil || u != 5 {
		t.Fatalf("Usize() = (%d, %v), want (5, nil)", u, err)
	}
}

func TestRandomBytesNotMemoized(t *testing.T) {
	v := RandomBytes(32)
	a, err := v.Buf()
	if err != nil {
		t.Fatalf("Buf: %v", err)
	}
	b, err := v.Buf()
	if err != nil {
		t.Fatalf("Buf: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected 32-byte draws, got %d and %d", len(a), len(b))
	}
	// Not a strict guarantee, but with 32 random bytes a collision across
	// two independent draws is astronomically unlikely; a spurious match
	// here would indicate memoization creeping in.
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("two RandomBytes draws produced identical output; expected fresh entropy per call")
	}
}

func TestMutatingSourceSliceDoesNotAffectVariant(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	v := Buf(src)
	src[0] = 0xff

	got, err := v.Buf()
	if err != nil {
		t.Fatalf("Buf: %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("Variant was mutated via the original slice: got[0] = %d, want 1", got[0])
	}
}

func TestKindString(t *testing.T) {
	if KindInt.String() != "int" || KindBuf.String() != "buffer" {
		t.Fatalf("unexpected Kind.String() output")
	}
}
