package wordcodec

import (
	"testing"

	"github.com/n0call/ale1052/internal/symbol"
)

func TestASCIIRoundTrip(t *testing.T) {
	cases := [][3]byte{
		{'K', '6', 'K'},
		{'W', '1', 'A'},
		{' ', ' ', ' '},
		{'?', '.', '-'},
	}
	for _, s := range cases {
		payload, err := EncodeASCII(s)
		if err != nil {
			t.Fatalf("EncodeASCII(%s): %v", s, err)
		}
		got, err := DecodeASCII(payload)
		if err != nil {
			t.Fatalf("DecodeASCII: %v", err)
		}
		if got != s {
			t.Errorf("round trip: got %s, want %s", got, s)
		}
	}
}

func TestEncodeASCII_InvalidChar(t *testing.T) {
	if _, err := EncodeASCII([3]byte{'a', 'B', 'C'}); err == nil {
		t.Error("expected error for lowercase character outside restricted set")
	}
}

func TestMajorityVote(t *testing.T) {
	cases := []struct {
		a, b, c bool
		want    bool
	}{
		{false, false, false, false},
		{true, false, false, false},
		{true, true, false, true},
		{true, true, true, true},
		{false, true, true, true},
	}
	for _, c := range cases {
		if got := MajorityVote(c.a, c.b, c.c); got != c.want {
			t.Errorf("MajorityVote(%v,%v,%v) = %v, want %v", c.a, c.b, c.c, got, c.want)
		}
		// commutativity / order invariance
		if got := MajorityVote(c.c, c.a, c.b); got != c.want {
			t.Errorf("MajorityVote not order-invariant for %v,%v,%v", c.a, c.b, c.c)
		}
	}
}

func TestDecodeWordWithVoting_Agreement(t *testing.T) {
	var want uint32 = 0x123456 & 0xFFFFFF
	var syms [SymbolsPerWord * 3]symbol.Symbol
	for bitIdx := 0; bitIdx < WordBits; bitIdx++ {
		symIdx := bitIdx / 3
		bitInSymbol := bitIdx % 3
		bit := (want >> uint(bitIdx)) & 1
		for rep := 0; rep < 3; rep++ {
			idx := symIdx + rep*SymbolsPerWord
			v := syms[idx].Value
			if bit == 1 {
				v |= 1 << uint(bitInSymbol)
			}
			syms[idx].Value = v
			syms[idx].Valid = true
		}
	}

	got, corrected := DecodeWordWithVoting(syms)
	if got != want {
		t.Errorf("got word %06x, want %06x", got, want)
	}
	if corrected != 0 {
		t.Errorf("got %d corrections, want 0", corrected)
	}
}

func TestParseFromBits_InvalidPayload(t *testing.T) {
	p := NewParser()
	// preamble REP (not CMD), first codepoint 0 (' ', printable, so this
	// doesn't route to AQC), second codepoint 0x7F which is outside the
	// restricted set.
	payload := uint32(0) | uint32(0x7F)<<7
	wordBits := (payload << 3) | uint32(Rep)
	w := p.ParseFromBits(wordBits, 1000)
	if w.IsAQC {
		t.Fatal("expected restricted-ASCII routing, got AQC")
	}
	if w.Valid {
		t.Error("expected invalid word for out-of-range ASCII codepoints")
	}
	if w.Address != [3]byte{'?', '?', '?'} {
		t.Errorf("expected ??? placeholder, got %s", w.Address)
	}
}

func TestParseFromBits_CmdPreambleRoutesToAQC(t *testing.T) {
	p := NewParser()
	// DE2=5, DE3=9, DE4=20, DE9=2, DE1=3, DE8=1 (scenario S4 from spec.md).
	payload := uint32(5) | uint32(9)<<3 | uint32(20)<<7 | uint32(2)<<12 | uint32(3)<<15 | uint32(1)<<18
	wordBits := (payload << 3) | uint32(Cmd)

	w := p.ParseFromBits(wordBits, 1000)
	if !w.IsAQC {
		t.Fatal("expected CMD preamble to route to AQC Data Elements")
	}
	if w.AQC.DE2 != 5 || w.AQC.DE4 != 20 || w.AQC.DE1 != 3 || w.AQC.DE8 != 1 {
		t.Errorf("unexpected data elements: %+v", w.AQC)
	}
}

func TestParseFromBits_NonPrintableFirstCharRoutesToAQC(t *testing.T) {
	p := NewParser()
	// preamble TO (not CMD), first codepoint 0x7F maps to no restricted
	// ASCII character so firstChar is the zero value, which is
	// non-printable and triggers the AQC heuristic.
	payload := uint32(0x7F)
	wordBits := (payload << 3) | uint32(To)

	w := p.ParseFromBits(wordBits, 1000)
	if !w.IsAQC {
		t.Fatal("expected non-printable first character to route to AQC Data Elements")
	}
}
