// Package link implements the ALE link state machine: scanning for
// incoming calls, initiating outbound calls, handshaking, sounding, and
// tracking per-channel link quality via the lqa package.
//
// Grounded on original_source/include/ale_state_machine.h and
// src/link/ale_state_machine.cpp. The state machine is cooperative and
// single-threaded: callers drive it with Update(nowMs) and feed it
// received words; it never spawns goroutines or blocks.
package link

import (
	"fmt"

	"github.com/n0call/ale1052/internal/addrbook"
	"github.com/n0call/ale1052/internal/lqa"
	"github.com/n0call/ale1052/internal/message"
	"github.com/n0call/ale1052/internal/wordcodec"
)

// State is one of the ALE link states.
type State uint8

const (
	Idle State = iota
	Scanning
	Calling
	Handshake
	Linked
	Sounding
	Error
)

var stateNames = [...]string{"IDLE", "SCANNING", "CALLING", "HANDSHAKE", "LINKED", "SOUNDING", "ERROR"}

func (s State) String() string {
	if int(s) >= len(stateNames) {
		return "ERROR"
	}
	return stateNames[s]
}

// Event drives state transitions.
type Event uint8

const (
	StartScan Event = iota
	StopScan
	CallRequest
	CallDetected
	HandshakeComplete
	LinkTimeout
	LinkTerminated
	SoundingRequest
	SoundingComplete
	ErrorOccurred
)

var eventNames = [...]string{
	"START_SCAN", "STOP_SCAN", "CALL_REQUEST", "CALL_DETECTED",
	"HANDSHAKE_COMPLETE", "LINK_TIMEOUT", "LINK_TERMINATED",
	"SOUNDING_REQUEST", "SOUNDING_COMPLETE", "ERROR_OCCURRED",
}

func (e Event) String() string {
	if int(e) >= len(eventNames) {
		return "UNKNOWN"
	}
	return eventNames[e]
}

// Timing constants per MIL-STD-188-141B, matching the 49-symbol word at
// 125 baud and the default scan/call/link timeouts.
const (
	WordDurationMs      = 392
	SymbolDurationMs    = 8
	ScanDwellMs         = 200
	CallTimeoutMs       = 30_000
	LinkTimeoutMs       = 120_000
	SoundingIntervalMs  = 60_000
)

// Channel is one entry on the scan list.
type Channel struct {
	FrequencyHz    uint32
	Mode           string
	LastScanTimeMs uint32
	CallCount      uint32
}

// ScanConfig configures the scan list and dwell time.
type ScanConfig struct {
	ScanList     []Channel
	DwellTimeMs  uint32
	ChannelIndex int
	Enabled      bool
}

// DefaultScanConfig returns an empty scan list with the default dwell.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{DwellTimeMs: ScanDwellMs}
}

// StateMachine is the core ALE link state machine.
type StateMachine struct {
	currentState  State
	previousState State

	scanConfig ScanConfig
	addrBook   *addrbook.Book
	lqaDB      *lqa.Database
	analyzer   *lqa.Analyzer

	activeCallTo   string
	activeCallFrom string

	linkStartTimeMs   uint32
	lastWordTimeMs    uint32
	stateEntryTimeMs  uint32
	lastScanHopTimeMs uint32
	currentTimeMs     uint32

	assembler *message.Assembler

	onStateChange func(old, new State)
	onTransmit    func(w wordcodec.ALEWord)
	onChannel     func(ch Channel)
}

// New returns a StateMachine in the IDLE state, backed by db for LQA
// tracking (a fresh lqa.NewDatabase() if the caller has none to share).
func New(db *lqa.Database) *StateMachine {
	return &StateMachine{
		scanConfig: DefaultScanConfig(),
		addrBook:   addrbook.New(),
		lqaDB:      db,
		analyzer:   lqa.NewAnalyzer(db),
		assembler:  message.NewAssembler(),
	}
}

// State returns the current state.
func (m *StateMachine) State() State { return m.currentState }

// SetStateCallback registers a callback invoked on every state change.
func (m *StateMachine) SetStateCallback(cb func(old, new State)) { m.onStateChange = cb }

// SetTransmitCallback registers a callback invoked whenever the state
// machine needs to transmit a word.
func (m *StateMachine) SetTransmitCallback(cb func(w wordcodec.ALEWord)) { m.onTransmit = cb }

// SetChannelCallback registers a callback invoked when the state
// machine switches scan channels.
func (m *StateMachine) SetChannelCallback(cb func(ch Channel)) { m.onChannel = cb }

// ConfigureScan replaces the scan configuration.
func (m *StateMachine) ConfigureScan(cfg ScanConfig) { m.scanConfig = cfg }

// AddScanChannel appends a channel to the scan list.
func (m *StateMachine) AddScanChannel(ch Channel) {
	m.scanConfig.ScanList = append(m.scanConfig.ScanList, ch)
}

// SetSelfAddress sets the station's own ALE address.
func (m *StateMachine) SetSelfAddress(address string) error {
	return m.addrBook.SetSelfAddress(address)
}

// CurrentChannel returns the scan list entry currently tuned, if any.
func (m *StateMachine) CurrentChannel() (Channel, bool) {
	if m.scanConfig.ChannelIndex < 0 || m.scanConfig.ChannelIndex >= len(m.scanConfig.ScanList) {
		return Channel{}, false
	}
	return m.scanConfig.ScanList[m.scanConfig.ChannelIndex], true
}

// ProcessEvent applies event against the current state, following the
// transition table below, and reports whether the state changed.
func (m *StateMachine) ProcessEvent(event Event) bool {
	switch m.currentState {
	case Idle:
		switch event {
		case StartScan:
			return m.transitionTo(Scanning)
		case CallRequest:
			return m.transitionTo(Calling)
		case SoundingRequest:
			return m.transitionTo(Sounding)
		}

	case Scanning:
		switch event {
		case StopScan:
			return m.transitionTo(Idle)
		case CallDetected:
			return m.transitionTo(Handshake)
		case CallRequest:
			return m.transitionTo(Calling)
		}

	case Calling:
		switch event {
		case HandshakeComplete:
			return m.transitionTo(Linked)
		case LinkTimeout:
			return m.transitionTo(Idle)
		}

	case Handshake:
		switch event {
		case HandshakeComplete:
			return m.transitionTo(Linked)
		case LinkTimeout:
			return m.transitionTo(Scanning)
		}

	case Linked:
		if event == LinkTerminated || event == LinkTimeout {
			return m.transitionTo(Idle)
		}

	case Sounding:
		if event == SoundingComplete {
			return m.transitionTo(Scanning)
		}

	case Error:
		if event == StartScan {
			return m.transitionTo(Scanning)
		}
		return m.transitionTo(Idle)
	}

	if event == ErrorOccurred {
		return m.transitionTo(Error)
	}
	return false
}

// Update should be called periodically (every 10-50ms of simulated or
// real time). It checks for timeouts and runs the current state's
// periodic processing.
func (m *StateMachine) Update(nowMs uint32) {
	m.currentTimeMs = nowMs

	if m.checkLinkTimeout() {
		m.ProcessEvent(LinkTimeout)
	}

	switch m.currentState {
	case Scanning:
		if m.checkScanDwellTimeout() {
			m.hopToNextChannel()
		}
	case Sounding:
		if nowMs-m.stateEntryTimeMs >= WordDurationMs {
			m.ProcessEvent(SoundingComplete)
		}
	}
}

func (m *StateMachine) transitionTo(newState State) bool {
	if m.currentState == newState {
		return false
	}

	m.exitState(m.currentState)

	m.previousState = m.currentState
	m.currentState = newState
	m.stateEntryTimeMs = m.currentTimeMs

	m.enterState(newState)

	if m.onStateChange != nil {
		m.onStateChange(m.previousState, m.currentState)
	}
	return true
}

func (m *StateMachine) enterState(newState State) {
	switch newState {
	case Scanning:
		m.scanConfig.ChannelIndex = 0
		m.lastScanHopTimeMs = m.currentTimeMs
		if len(m.scanConfig.ScanList) > 0 {
			m.setChannel(0)
		}

	case Calling, Handshake:
		m.linkStartTimeMs = m.currentTimeMs

	case Linked:
		m.linkStartTimeMs = m.currentTimeMs
		m.lastWordTimeMs = m.currentTimeMs

	case Sounding:
		if self := m.addrBook.SelfAddress(); self != "" {
			m.transmitWord(wordcodec.ALEWord{
				Type:        wordcodec.Tis,
				Address:     addressBytes(self),
				Valid:       true,
				TimestampMs: m.currentTimeMs,
			})
		}
	}
}

func (m *StateMachine) exitState(oldState State) {
	if oldState == Linked {
		m.activeCallTo = ""
		m.activeCallFrom = ""
	}
}

// InitiateCall starts an outbound individual call to toAddress, building
// and transmitting the TO and FROM words.
func (m *StateMachine) InitiateCall(toAddress string) (bool, error) {
	return m.initiate(toAddress, false)
}

// InitiateNetCall starts an outbound net call, building and
// transmitting the TWS and FROM words.
func (m *StateMachine) InitiateNetCall(netAddress string) (bool, error) {
	return m.initiate(netAddress, true)
}

func (m *StateMachine) initiate(toAddress string, isNet bool) (bool, error) {
	if m.currentState != Idle && m.currentState != Scanning {
		return false, fmt.Errorf("link: cannot call from state %s", m.currentState)
	}

	m.activeCallTo = toAddress
	m.activeCallFrom = m.addrBook.SelfAddress()

	if !m.ProcessEvent(CallRequest) {
		return false, nil
	}
	m.buildCallWords(toAddress, isNet)
	return true, nil
}

// RespondToCall completes a handshake in progress.
func (m *StateMachine) RespondToCall() bool {
	if m.currentState != Handshake {
		return false
	}
	m.ProcessEvent(HandshakeComplete)
	return true
}

// SendSounding transmits a TIS word from IDLE or SCANNING.
func (m *StateMachine) SendSounding() bool {
	if m.currentState != Idle && m.currentState != Scanning {
		return false
	}
	return m.ProcessEvent(SoundingRequest)
}

// ProcessReceivedWord feeds a decoded word into the state machine: it
// updates LQA, detects incoming calls while scanning, and forwards the
// word to the message assembler.
func (m *StateMachine) ProcessReceivedWord(w wordcodec.ALEWord) {
	if !w.Valid {
		return
	}

	m.lastWordTimeMs = m.currentTimeMs

	if ch, ok := m.CurrentChannel(); ok {
		m.analyzer.ProcessSounding("", ch.FrequencyHz, 0, float64(w.FECErrors)/24.0, m.currentTimeMs)
	}

	if m.currentState == Scanning {
		addr := addrbook.TrimTrailingSpaces(string(w.Address[:]))
		if (w.Type == wordcodec.To || w.Type == wordcodec.Tws) && m.addrBook.IsSelf(addr) {
			m.activeCallTo = addr
			m.ProcessEvent(CallDetected)
		}
	}

	m.assembler.AddWord(w)
}

// GetMessage drains any fully assembled message, if one is ready.
func (m *StateMachine) GetMessage() (*message.Message, bool) {
	return m.assembler.GetMessage()
}

// SelectBestChannel delegates to the lqa.Analyzer to pick the
// highest-scoring known channel among the scan list.
func (m *StateMachine) SelectBestChannel() (Channel, bool) {
	for _, rank := range m.analyzer.RankAllChannels() {
		for _, ch := range m.scanConfig.ScanList {
			if ch.FrequencyHz == rank.FrequencyHz {
				return ch, true
			}
		}
	}
	return Channel{}, false
}

func (m *StateMachine) hopToNextChannel() {
	if len(m.scanConfig.ScanList) == 0 {
		return
	}
	next := (m.scanConfig.ChannelIndex + 1) % len(m.scanConfig.ScanList)
	m.setChannel(next)
	m.lastScanHopTimeMs = m.currentTimeMs
}

func (m *StateMachine) setChannel(index int) {
	if index < 0 || index >= len(m.scanConfig.ScanList) {
		return
	}
	m.scanConfig.ChannelIndex = index
	m.scanConfig.ScanList[index].LastScanTimeMs = m.currentTimeMs

	if m.onChannel != nil {
		m.onChannel(m.scanConfig.ScanList[index])
	}
}

func (m *StateMachine) checkLinkTimeout() bool {
	var timeoutMs uint32
	switch m.currentState {
	case Calling, Handshake:
		timeoutMs = CallTimeoutMs
	case Linked:
		timeoutMs = LinkTimeoutMs
	default:
		return false
	}
	return m.currentTimeMs-m.stateEntryTimeMs >= timeoutMs
}

func (m *StateMachine) checkScanDwellTimeout() bool {
	if m.currentState != Scanning {
		return false
	}
	return m.currentTimeMs-m.lastScanHopTimeMs >= m.scanConfig.DwellTimeMs
}

func (m *StateMachine) buildCallWords(toAddr string, isNet bool) {
	wordType := wordcodec.To
	if isNet {
		wordType = wordcodec.Tws
	}

	m.transmitWord(wordcodec.ALEWord{
		Type:        wordType,
		Address:     addressBytes(toAddr),
		Valid:       true,
		TimestampMs: m.currentTimeMs,
	})

	m.transmitWord(wordcodec.ALEWord{
		Type:        wordcodec.From,
		Address:     addressBytes(m.addrBook.SelfAddress()),
		Valid:       true,
		TimestampMs: m.currentTimeMs + WordDurationMs,
	})
}

func (m *StateMachine) transmitWord(w wordcodec.ALEWord) {
	if m.onTransmit != nil {
		m.onTransmit(w)
	}
}

func addressBytes(addr string) [3]byte {
	var out [3]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:], addr)
	return out
}
