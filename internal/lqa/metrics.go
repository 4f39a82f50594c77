package lqa

import "math"

const (
	DefaultAveragingWindow  = 10
	DefaultDistortionDb     = -30.0
	DefaultMultipathThresholdDb = 6.0
	DefaultNoiseFloorDbm    = -120.0
)

// MetricsSample is one raw measurement fed into the collector.
type MetricsSample struct {
	SNRDb            float64
	SignalPowerDbm   float64
	NoisePowerDbm    float64
	FECErrors        uint64
	Decoded          bool
	MultipathDelayMs float64
	TimestampMs      uint32
}

// MetricsConfig tunes the collector's windowing and derived-metric
// assumptions.
type MetricsConfig struct {
	AveragingWindow      int
	DistortionDb         float64
	MultipathThresholdDb float64
}

// DefaultMetricsConfig returns the documented defaults.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		AveragingWindow:      DefaultAveragingWindow,
		DistortionDb:         DefaultDistortionDb,
		MultipathThresholdDb: DefaultMultipathThresholdDb,
	}
}

// Metrics accumulates raw samples in a fixed-length window and, once
// full, folds an averaged update into the Database.
type Metrics struct {
	db      *Database
	cfg     MetricsConfig
	window  []MetricsSample
	tail    *MetricsSample
}

// NewMetrics returns a Metrics collector that updates db.
func NewMetrics(db *Database) *Metrics {
	return &Metrics{db: db, cfg: DefaultMetricsConfig()}
}

// SetConfig overrides the collector's configuration.
func (m *Metrics) SetConfig(cfg MetricsConfig) { m.cfg = cfg }

// AddSample accumulates one sample for (freq, station). Once the window
// fills, it computes averaged SNR/BER/SINAD/multipath/noise-floor,
// updates the database, and retains the last sample for continuity
// across windows.
func (m *Metrics) AddSample(freq uint32, station string, s MetricsSample) {
	m.window = append(m.window, s)
	if len(m.window) < m.cfg.AveragingWindow {
		return
	}

	var sumSNR float64
	var totalErrors uint64
	var totalWords uint64
	for _, w := range m.window {
		sumSNR += w.SNRDb
		totalErrors += w.FECErrors
		if w.Decoded {
			totalWords++
		}
	}
	n := float64(len(m.window))
	avgSNR := sumSNR / n

	ber := estimateBER(totalErrors, totalWords)
	sinad := sinadFromSNR(avgSNR, m.cfg.DistortionDb)
	multipath := detectMultipath(m.window, m.cfg.MultipathThresholdDb)
	noiseFloor := measureNoiseFloor(m.window)

	lastTs := m.window[len(m.window)-1].TimestampMs
	m.db.UpdateEntryExtended(freq, station, avgSNR, ber, sinad, multipath, noiseFloor, totalErrors, totalWords, lastTs)

	tail := m.window[len(m.window)-1]
	m.tail = &tail
	m.window = m.window[:0]
	if m.tail != nil {
		m.window = append(m.window, *m.tail)
	}
}

func estimateBER(errorsCorrected, totalWords uint64) float64 {
	if totalWords == 0 {
		return 0
	}
	ber := float64(errorsCorrected) / (24.0 * float64(totalWords))
	return clamp(ber, 0, 1)
}

func detectMultipath(window []MetricsSample, thresholdDb float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, w := range window {
		sum += w.SignalPowerDbm
	}
	mean := sum / float64(len(window))
	var variance float64
	for _, w := range window {
		d := w.SignalPowerDbm - mean
		variance += d * d
	}
	variance /= float64(len(window))
	stddev := math.Sqrt(variance)
	return clamp(stddev/thresholdDb, 0, 1)
}

func measureNoiseFloor(window []MetricsSample) float64 {
	if len(window) == 0 {
		return DefaultNoiseFloorDbm
	}
	min := window[0].NoisePowerDbm
	for _, w := range window[1:] {
		if w.NoisePowerDbm < min {
			min = w.NoisePowerDbm
		}
	}
	return min
}
