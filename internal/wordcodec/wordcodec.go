// Package wordcodec implements the ALE word layer: triple-redundancy
// majority-vote symbol decoding, the 24-bit word partition into preamble
// and payload, and the restricted-ASCII payload codec.
//
// Grounded on original_source/src/fsk/symbol_decoder.cpp (majority_vote,
// decode_word_with_voting) and include/ale_word.h (WordType, ALEWord,
// WordParser). Golay(24,12) is an independently exposed facility
// (internal/golay) rather than folded into voting, per spec.md §9's
// resolution that triple-redundancy voting is authoritative for
// word-level decode and Golay is a separate tool.
package wordcodec

import (
	"fmt"

	"github.com/n0call/ale1052/internal/aqc"
	"github.com/n0call/ale1052/internal/symbol"
)

const (
	SymbolsPerWord = 49
	WordBits       = 24
	PayloadBits    = 21
)

// WordType is the 3-bit preamble per MIL-STD-188-141B Table A-II.
type WordType uint8

const (
	Data WordType = iota
	Thru
	To
	Tws
	From
	Tis
	Cmd
	Rep
	Unknown WordType = 0xFF
)

func (t WordType) String() string {
	switch t {
	case Data:
		return "DATA"
	case Thru:
		return "THRU"
	case To:
		return "TO"
	case Tws:
		return "TWS"
	case From:
		return "FROM"
	case Tis:
		return "TIS"
	case Cmd:
		return "CMD"
	case Rep:
		return "REP"
	default:
		return "UNKNOWN"
	}
}

// restrictedASCII is the ALE payload character set: space, 0-9, @, A-Z,
// ?, ., -, /.
const restrictedASCII = " 0123456789@ABCDEFGHIJKLMNOPQRSTUVWXYZ?.-/"

var charToCode map[byte]uint8
var codeToChar map[uint8]byte

func init() {
	charToCode = make(map[byte]uint8, len(restrictedASCII))
	codeToChar = make(map[uint8]byte, len(restrictedASCII))
	for i := 0; i < len(restrictedASCII); i++ {
		c := restrictedASCII[i]
		charToCode[c] = uint8(i)
		codeToChar[uint8(i)] = c
	}
}

// IsValidALEChar reports whether ch belongs to the restricted ALE
// character set.
func IsValidALEChar(ch byte) bool {
	_, ok := charToCode[ch]
	return ok
}

// ALEWord is a decoded word with its preamble, address/content, and
// provenance. IsAQC reports whether the payload was interpreted as AQC
// Data Elements rather than restricted-ASCII; when true, Address is
// unset and AQC holds the parsed elements.
type ALEWord struct {
	Type        WordType
	Address     [3]byte
	RawPayload  uint32 // 21-bit payload
	FECErrors   uint8
	Valid       bool
	TimestampMs uint32
	IsAQC       bool
	AQC         aqc.DataElements
}

// MajorityVote returns 1 iff at least two of a, b, c are set; it is
// commutative and order-invariant by construction.
func MajorityVote(a, b, c bool) bool {
	n := 0
	if a {
		n++
	}
	if b {
		n++
	}
	if c {
		n++
	}
	return n >= 2
}

// DecodeWordWithVoting takes 147 symbols (49 source symbols replicated
// three times) and reconstructs the 24-bit word by majority vote on each
// bit position. Returns the word and the number of corrected bit
// disagreements.
func DecodeWordWithVoting(symbols [SymbolsPerWord * 3]symbol.Symbol) (word uint32, corrected int) {
	for bitIdx := 0; bitIdx < WordBits; bitIdx++ {
		symIdx := bitIdx / 3
		bitInSymbol := bitIdx % 3

		s0 := symbols[symIdx]
		s1 := symbols[symIdx+SymbolsPerWord]
		s2 := symbols[symIdx+2*SymbolsPerWord]

		b0 := bitOfSymbol(s0.Value, bitInSymbol)
		b1 := bitOfSymbol(s1.Value, bitInSymbol)
		b2 := bitOfSymbol(s2.Value, bitInSymbol)

		if b0 != b1 || b1 != b2 {
			corrected++
		}

		if MajorityVote(b0, b1, b2) {
			word |= 1 << uint(bitIdx)
		}
	}
	return word, corrected
}

func bitOfSymbol(value uint8, bitInSymbol int) bool {
	return value&(1<<uint(bitInSymbol)) != 0
}

// ExtractPreamble returns the 3-bit word type from a 24-bit word.
func ExtractPreamble(wordBits uint32) WordType {
	return WordType(wordBits & 0x7)
}

// ExtractPayload returns the 21-bit payload from a 24-bit word.
func ExtractPayload(wordBits uint32) uint32 {
	return (wordBits >> 3) & 0x1FFFFF
}

// EncodeASCII packs 3 restricted-ASCII characters into a 21-bit payload,
// LSB-first (c0 occupies bits 0..6, c1 bits 7..13, c2 bits 14..20). It
// returns an error if any character is outside the restricted set.
func EncodeASCII(chars [3]byte) (uint32, error) {
	var payload uint32
	for i, c := range chars {
		code, ok := charToCode[c]
		if !ok {
			return 0, fmt.Errorf("wordcodec: character %q at position %d not in restricted ALE set", c, i)
		}
		payload |= uint32(code) << uint(i*7)
	}
	return payload, nil
}

// DecodeASCII unpacks a 21-bit payload into 3 restricted-ASCII
// characters. It returns an error if any of the three 7-bit codepoints
// falls outside the restricted set.
func DecodeASCII(payload uint32) ([3]byte, error) {
	var out [3]byte
	for i := 0; i < 3; i++ {
		code := uint8((payload >> uint(i*7)) & 0x7F)
		c, ok := codeToChar[code]
		if !ok {
			return [3]byte{}, fmt.Errorf("wordcodec: payload codepoint %d at position %d not in restricted ALE set", code, i)
		}
		out[i] = c
	}
	return out, nil
}

// Parser turns decoded symbols or raw word bits into ALEWords.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFromBits builds an ALEWord from an already-decoded 24-bit word.
// If the preamble is CMD, or the first payload character falls outside
// printable ASCII, the payload is parsed as AQC Data Elements instead of
// restricted-ASCII (spec.md §4.6's AQC detection heuristic). Otherwise,
// if the payload's three characters don't all belong to the restricted
// set, address is "???" and Valid is false.
func (p *Parser) ParseFromBits(wordBits uint32, timestampMs uint32) ALEWord {
	w := ALEWord{
		Type:        ExtractPreamble(wordBits),
		RawPayload:  ExtractPayload(wordBits),
		TimestampMs: timestampMs,
		Valid:       true,
	}

	firstCode := uint8(w.RawPayload & 0x7F)
	firstChar := codeToChar[firstCode] // zero value if code is unmapped, itself non-printable

	if aqc.IsAQCFormat(w.Type == Cmd, firstChar) {
		w.IsAQC = true
		w.AQC = aqc.ExtractDataElements(w.RawPayload)
		return w
	}

	chars, err := DecodeASCII(w.RawPayload)
	if err != nil {
		w.Address = [3]byte{'?', '?', '?'}
		w.Valid = false
		return w
	}
	w.Address = chars
	return w
}

// ParseWord decodes 147 symbols via majority voting and then parses the
// resulting word.
func (p *Parser) ParseWord(symbols [SymbolsPerWord * 3]symbol.Symbol, timestampMs uint32) ALEWord {
	wordBits, corrected := DecodeWordWithVoting(symbols)
	w := p.ParseFromBits(wordBits, timestampMs)
	if corrected > 255 {
		corrected = 255
	}
	w.FECErrors = uint8(corrected)
	return w
}
