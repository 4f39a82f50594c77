// Package symbol maps a 64-bin magnitude vector to a 3-bit ALE symbol.
//
// Grounded on original_source/src/fsk/symbol_decoder.cpp: detect_symbol
// scans the 8 contiguous bins spanning the tone plan and reports the
// argmax bin; the header's comment describing "every 2 bins 6-22" is
// stale relative to the .cpp, which scans bins 6-13 — the .cpp is
// authoritative and is what's followed here.
package symbol

import "math"

const (
	BinOffset  = 6  // first tone bin
	BinSpan    = 8  // number of tone bins (8-FSK)
	TotalBins  = 64
	minNoise   = 0.001
)

// Symbol is one detected 3-bit tone value plus its quality metrics, or a
// failure marker (Valid == false) if no bin stood out from the rest.
type Symbol struct {
	Value       uint8
	Magnitude   float64
	SNRDb       float64
	SampleIndex uint64
	Valid       bool
}

// Detector turns magnitude vectors into Symbols. It tracks a running
// sample index so every emitted Symbol carries a monotonic position.
type Detector struct {
	sampleIndex uint64
}

// NewDetector returns a Detector starting at sample index 0.
func NewDetector() *Detector {
	return &Detector{}
}

// Reset zeroes the sample-index counter.
func (d *Detector) Reset() {
	d.sampleIndex = 0
}

// Detect classifies one magnitude vector (as produced once per block by
// the spectral estimator) into a Symbol. The sample index it stamps the
// result with is then advanced by one block (64 samples).
func (d *Detector) Detect(mag [TotalBins]float64) Symbol {
	s := detectSymbol(mag)
	s.SampleIndex = d.sampleIndex
	d.sampleIndex += 64
	return s
}

func detectSymbol(mag [TotalBins]float64) Symbol {
	peakBin := -1
	peakVal := -1.0
	tieCount := 0
	for k := BinOffset; k < BinOffset+BinSpan; k++ {
		v := mag[k]
		switch {
		case v > peakVal:
			peakVal = v
			peakBin = k
			tieCount = 1
		case v == peakVal:
			tieCount++
		}
	}

	if peakBin < 0 || tieCount > 1 {
		return Symbol{Valid: false}
	}

	noiseFloor := minNoise
	first := true
	for k := 0; k < TotalBins; k++ {
		if k >= BinOffset && k < BinOffset+BinSpan {
			continue
		}
		if first || mag[k] < noiseFloor {
			noiseFloor = mag[k]
			first = false
		}
	}
	if noiseFloor < minNoise {
		noiseFloor = minNoise
	}

	snr := 20 * math.Log10(peakVal/noiseFloor)

	return Symbol{
		Value:     uint8(peakBin - BinOffset),
		Magnitude: peakVal,
		SNRDb:     snr,
		Valid:     true,
	}
}
