package lqa

import (
	"fmt"
	"sort"
)

const (
	DefaultMinAcceptableScore = 10.0
	DefaultSoundingIntervalMs = 300_000
)

// ChannelRank associates a channel with its quality score for selection.
type ChannelRank struct {
	FrequencyHz   uint32
	Score         float64
	BestStation   string
	LastUpdateMs  uint32
}

// AnalyzerConfig tunes channel-selection and sounding-cadence policy.
type AnalyzerConfig struct {
	MinAcceptableScore    float64
	SoundingIntervalMs    uint32
	PreferRecentContacts  bool
	EnableAutomaticSounding bool
}

// DefaultAnalyzerConfig returns the documented defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinAcceptableScore: DefaultMinAcceptableScore,
		SoundingIntervalMs: DefaultSoundingIntervalMs,
	}
}

// Analyzer ranks channels and selects the best one for a call, backed by
// a shared Database. Per spec.md §5, the Analyzer and Metrics both mutate
// the Database by pointer; callers must not invoke them concurrently —
// this type holds a plain pointer and does no internal locking.
type Analyzer struct {
	db          *Database
	cfg         AnalyzerConfig
	soundingCb  func(freq uint32)
}

// NewAnalyzer returns an Analyzer over db.
func NewAnalyzer(db *Database) *Analyzer {
	return &Analyzer{db: db, cfg: DefaultAnalyzerConfig()}
}

// SetConfig overrides the analyzer's configuration.
func (a *Analyzer) SetConfig(cfg AnalyzerConfig) { a.cfg = cfg }

// Config returns the analyzer's current configuration.
func (a *Analyzer) Config() AnalyzerConfig { return a.cfg }

// SetDatabase replaces the database the analyzer reads and writes.
func (a *Analyzer) SetDatabase(db *Database) { a.db = db }

// ProcessSounding records a received TIS sounding as an update to the
// database.
func (a *Analyzer) ProcessSounding(station string, freq uint32, snrDb, ber float64, timestampMs uint32) {
	a.db.UpdateEntry(freq, station, snrDb, ber, 0, timestampMs)
}

// ProcessSoundingExtended records a full metrics sample for a sounding.
func (a *Analyzer) ProcessSoundingExtended(station string, freq uint32, sample MetricsSample) {
	a.db.UpdateEntryExtended(freq, station, sample.SNRDb, 0, sinadFromSNR(sample.SNRDb, DefaultDistortionDb), 0, sample.NoisePowerDbm, sample.FECErrors, 1, sample.TimestampMs)
}

func (a *Analyzer) channelAggregateScore(freq uint32) (float64, string, uint32) {
	entries := a.db.GetEntriesForChannel(freq)
	if len(entries) == 0 {
		return 0, "", 0
	}
	var sum float64
	var bestStation string
	var bestScore float64
	var lastUpdate uint32
	first := true
	for _, e := range entries {
		sum += e.Score
		if first || e.Score > bestScore {
			bestScore = e.Score
			bestStation = e.Key.Station
			first = false
		}
		if u := latestActivity(e); u > lastUpdate {
			lastUpdate = u
		}
	}
	return sum / float64(len(entries)), bestStation, lastUpdate
}

func latestActivity(e *Entry) uint32 {
	if e.LastSoundingMs > e.LastContactMs {
		return e.LastSoundingMs
	}
	return e.LastContactMs
}

// BestChannelForStation returns the highest-scoring channel entry for a
// specific station, if any entry meets MinAcceptableScore.
func (a *Analyzer) BestChannelForStation(station string) (*ChannelRank, bool) {
	entries := a.db.GetEntriesForStation(station)
	var best *Entry
	for _, e := range entries {
		if best == nil || e.Score > best.Score {
			best = e
		}
	}
	if best == nil || best.Score < a.cfg.MinAcceptableScore {
		return nil, false
	}
	return &ChannelRank{
		FrequencyHz:  best.Key.FrequencyHz,
		Score:        best.Score,
		BestStation:  station,
		LastUpdateMs: latestActivity(best),
	}, true
}

// BestChannel returns the channel with the highest aggregate score
// across all stations heard on it.
func (a *Analyzer) BestChannel() (*ChannelRank, bool) {
	ranks := a.RankAllChannels()
	if len(ranks) == 0 {
		return nil, false
	}
	return &ranks[0], true
}

// RankAllChannels returns every channel with at least one entry, ranked
// by descending aggregate score.
func (a *Analyzer) RankAllChannels() []ChannelRank {
	freqSet := make(map[uint32]struct{})
	for _, e := range a.db.GetAllEntries() {
		freqSet[e.Key.FrequencyHz] = struct{}{}
	}

	ranks := make([]ChannelRank, 0, len(freqSet))
	for freq := range freqSet {
		score, station, lastUpdate := a.channelAggregateScore(freq)
		ranks = append(ranks, ChannelRank{
			FrequencyHz:  freq,
			Score:        score,
			BestStation:  station,
			LastUpdateMs: lastUpdate,
		})
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Score > ranks[j].Score })
	return ranks
}

// RankChannelsForStation ranks channels a given station has been heard
// on, by descending score.
func (a *Analyzer) RankChannelsForStation(station string) []ChannelRank {
	entries := a.db.GetEntriesForStation(station)
	ranks := make([]ChannelRank, 0, len(entries))
	for _, e := range entries {
		ranks = append(ranks, ChannelRank{
			FrequencyHz:  e.Key.FrequencyHz,
			Score:        e.Score,
			BestStation:  station,
			LastUpdateMs: latestActivity(e),
		})
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Score > ranks[j].Score })
	return ranks
}

// IsSoundingDue reports whether enough time has passed since the last
// sounding on freq.
func (a *Analyzer) IsSoundingDue(freq uint32, nowMs uint32) bool {
	var lastSounding uint32
	found := false
	for _, e := range a.db.GetEntriesForChannel(freq) {
		if e.Key.Station != "" {
			continue
		}
		found = true
		if e.LastSoundingMs > lastSounding {
			lastSounding = e.LastSoundingMs
		}
	}
	if !found {
		return true
	}
	return nowMs-lastSounding >= a.cfg.SoundingIntervalMs
}

// ChannelsNeedingSounding returns every known frequency whose sounding is
// currently due.
func (a *Analyzer) ChannelsNeedingSounding(nowMs uint32) []uint32 {
	freqSet := make(map[uint32]struct{})
	for _, e := range a.db.GetAllEntries() {
		freqSet[e.Key.FrequencyHz] = struct{}{}
	}
	var due []uint32
	for freq := range freqSet {
		if a.IsSoundingDue(freq, nowMs) {
			due = append(due, freq)
		}
	}
	return due
}

// SetSoundingCallback registers a callback invoked by Update when
// automatic sounding is enabled and a channel's sounding comes due.
func (a *Analyzer) SetSoundingCallback(cb func(freq uint32)) {
	a.soundingCb = cb
}

// Update should be called periodically; when automatic sounding is
// enabled it invokes the sounding callback for every channel currently
// due.
func (a *Analyzer) Update(nowMs uint32) {
	if !a.cfg.EnableAutomaticSounding || a.soundingCb == nil {
		return
	}
	for _, freq := range a.ChannelsNeedingSounding(nowMs) {
		a.soundingCb(freq)
	}
}

func scoreToQualityLevel(score float64) string {
	switch {
	case score >= 25:
		return "Excellent"
	case score >= 18:
		return "Good"
	case score >= 10:
		return "Fair"
	default:
		return "Poor"
	}
}

// ChannelQualitySummary returns a human-readable summary of a channel's
// aggregate quality, e.g. "Good (Score: 22)".
func (a *Analyzer) ChannelQualitySummary(freq uint32) string {
	score, _, _ := a.channelAggregateScore(freq)
	return fmt.Sprintf("%s (Score: %.0f)", scoreToQualityLevel(score), score)
}

// StationQualitySummary returns a human-readable summary of one
// station's quality on a channel, e.g. "Good (SNR: 22dB, Score: 20)".
func (a *Analyzer) StationQualitySummary(station string, freq uint32) string {
	e, ok := a.db.GetEntry(freq, station)
	if !ok {
		return "No data"
	}
	return fmt.Sprintf("%s (SNR: %.0fdB, Score: %.0f)", scoreToQualityLevel(e.Score), e.SNRDb, e.Score)
}
