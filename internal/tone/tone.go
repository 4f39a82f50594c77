// Package tone implements the 8-FSK tone generator: a fixed-point
// numerically-controlled oscillator per tone, producing signed 16-bit PCM
// samples at 8000 Hz.
//
// Grounded on original_source/src/fsk/tone_generator.cpp (NCO phase
// accumulators, 256-entry sine table with linear interpolation) and the
// teacher's struct-with-Reset idiom (internal/modem's Modulator/Demodulator
// shape in the copied playok-audio-modem tree).
package tone

import "math"

const (
	SampleRateHz     = 8000
	SymbolRateBaud   = 125
	SamplesPerSymbol = SampleRateHz / SymbolRateBaud // 64
	NumTones         = 8
	sineTableSize    = 256
)

// ToneFreqsHz are the 8 tones, 125 Hz apart, centered in a 3 kHz SSB
// passband.
var ToneFreqsHz = [NumTones]float64{750, 875, 1000, 1125, 1250, 1375, 1500, 1625}

var sineTable [sineTableSize + 1]float64 // one extra entry so interpolation never wraps

func init() {
	for i := range sineTable {
		sineTable[i] = math.Sin(2 * math.Pi * float64(i) / float64(sineTableSize))
	}
}

// Generator is a per-tone NCO bank. Phase accumulators persist across
// calls so that re-invoking the same tone across symbol boundaries
// produces a continuous waveform with no phase discontinuity.
type Generator struct {
	phaseAccum [NumTones]uint32
	phaseIncr  [NumTones]uint32
}

// NewGenerator builds a Generator with phase increments precomputed for
// the standard 8-tone plan.
func NewGenerator() *Generator {
	g := &Generator{}
	for i, freq := range ToneFreqsHz {
		g.phaseIncr[i] = uint32(math.Round(freq * (1 << 32) / SampleRateHz))
	}
	return g
}

// Reset zeroes all phase accumulators.
func (g *Generator) Reset() {
	for i := range g.phaseAccum {
		g.phaseAccum[i] = 0
	}
}

// sineInterpolate looks up a linearly interpolated sine value for a
// 32-bit phase: the top 8 bits index the table, the next 24 bits are the
// interpolation fraction between that entry and the next.
func sineInterpolate(phase uint32) float64 {
	index := phase >> 24
	frac := float64(phase&0x00FFFFFF) / float64(1<<24)
	a := sineTable[index]
	b := sineTable[index+1]
	return a + (b-a)*frac
}

func clip16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// GenerateTone returns n samples of the given 3-bit symbol's tone,
// scaled by amp (0..1), continuing from and advancing that tone's phase
// accumulator.
func (g *Generator) GenerateTone(symbol uint8, n int, amp float64) []int16 {
	if symbol >= NumTones {
		symbol = 0
	}
	out := make([]int16, n)
	incr := g.phaseIncr[symbol]
	phase := g.phaseAccum[symbol]
	for i := 0; i < n; i++ {
		s := sineInterpolate(phase)
		out[i] = clip16(s * amp * 32767)
		phase += incr
	}
	g.phaseAccum[symbol] = phase
	return out
}

// GenerateSymbols renders a sequence of 3-bit symbols to PCM samples,
// SamplesPerSymbol samples each, using the same persistent per-tone phase
// accumulators as GenerateTone.
func (g *Generator) GenerateSymbols(symbols []uint8, amp float64) []int16 {
	out := make([]int16, 0, len(symbols)*SamplesPerSymbol)
	for _, sym := range symbols {
		out = append(out, g.GenerateTone(sym, SamplesPerSymbol, amp)...)
	}
	return out
}
