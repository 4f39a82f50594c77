// Package message assembles consecutive ALE words into complete messages
// and classifies their call type.
//
// Grounded on spec.md §4.8-§4.9; no single original_source file maps
// directly since the reference splits this across ale_message.cpp and the
// state machine, but the assembler/classifier split here follows the
// teacher's pattern of one focused type per concern
// (internal/protocol/session.go owning a rolling buffer the way this
// Assembler owns a rolling word buffer).
package message

import "github.com/n0call/ale1052/internal/wordcodec"

// CallType classifies an assembled message.
type CallType uint8

const (
	Unknown CallType = iota
	Sounding
	AMD
	Individual
	Net
)

func (c CallType) String() string {
	switch c {
	case Sounding:
		return "SOUNDING"
	case AMD:
		return "AMD"
	case Individual:
		return "INDIVIDUAL"
	case Net:
		return "NET"
	default:
		return "UNKNOWN"
	}
}

// Message is a complete or in-progress assembled ALE message.
type Message struct {
	CallType     CallType
	ToAddresses  []string
	FromAddress  string
	DataContent  []string
	Words        []wordcodec.ALEWord
	StartTimeMs  uint32
	DurationMs   uint32
	Complete     bool
}

const DefaultWordTimeoutMs = 5000

// Assembler holds a rolling buffer of words for exactly one in-progress
// message at a time.
type Assembler struct {
	words        []wordcodec.ALEWord
	active       bool
	startTimeMs  uint32
	lastSeenMs   uint32
	wordTimeoutMs uint32
	pending      *Message
}

// NewAssembler returns an Assembler with the default word timeout.
func NewAssembler() *Assembler {
	return &Assembler{wordTimeoutMs: DefaultWordTimeoutMs}
}

// SetTimeout overrides the word timeout in milliseconds.
func (a *Assembler) SetTimeout(ms uint32) {
	a.wordTimeoutMs = ms
}

// Reset discards any in-progress message.
func (a *Assembler) Reset() {
	a.words = nil
	a.active = false
	a.startTimeMs = 0
	a.lastSeenMs = 0
	a.pending = nil
}

// AddWord appends a newly received valid word, starting a fresh message
// if the assembler was idle or the previous word is older than the
// configured timeout. It returns true when the message is now complete.
// Invalid words are silently dropped, matching spec.md §7's "message
// assembler silently drops invalid words".
func (a *Assembler) AddWord(w wordcodec.ALEWord) bool {
	if !w.Valid {
		return false
	}

	if !a.active || w.TimestampMs-a.lastSeenMs > a.wordTimeoutMs {
		a.words = nil
		a.active = true
		a.startTimeMs = w.TimestampMs
	}

	a.words = append(a.words, w)
	a.lastSeenMs = w.TimestampMs

	if !a.isComplete() {
		return false
	}

	a.finish()
	return true
}

func (a *Assembler) isComplete() bool {
	var hasTIS, hasToOrTws, hasFrom bool
	for _, w := range a.words {
		switch w.Type {
		case wordcodec.Tis:
			hasTIS = true
		case wordcodec.To, wordcodec.Tws:
			hasToOrTws = true
		case wordcodec.From:
			hasFrom = true
		}
	}
	if hasTIS {
		return true
	}
	return hasToOrTws && hasFrom
}

func (a *Assembler) finish() {
	msg := &Message{
		Words:       append([]wordcodec.ALEWord(nil), a.words...),
		StartTimeMs: a.startTimeMs,
		DurationMs:  a.lastSeenMs - a.startTimeMs,
		Complete:    true,
	}

	var hasTIS, hasTO, hasTWS, hasFrom, hasData bool
	for _, w := range msg.Words {
		addr := trimAddress(w.Address)
		switch w.Type {
		case wordcodec.Tis:
			hasTIS = true
			msg.FromAddress = addr
		case wordcodec.To:
			hasTO = true
			msg.ToAddresses = append(msg.ToAddresses, addr)
		case wordcodec.Tws:
			hasTWS = true
			msg.ToAddresses = append(msg.ToAddresses, addr)
		case wordcodec.From:
			hasFrom = true
			msg.FromAddress = addr
		case wordcodec.Data:
			hasData = true
			msg.DataContent = append(msg.DataContent, addr)
		}
	}

	msg.CallType = classify(hasTIS, hasTO, hasTWS, hasFrom, hasData)

	a.pending = msg
	a.active = false
	a.words = nil
}

func classify(hasTIS, hasTO, hasTWS, hasFrom, hasData bool) CallType {
	switch {
	case hasTIS:
		return Sounding
	case hasTO && hasFrom && hasData:
		return AMD
	case hasTO && hasFrom:
		return Individual
	case hasTWS && hasFrom:
		return Net
	default:
		return Unknown
	}
}

func trimAddress(addr [3]byte) string {
	n := len(addr)
	for n > 0 && addr[n-1] == ' ' {
		n--
	}
	return string(addr[:n])
}

// GetMessage transfers the pending completed message out and clears it,
// so only one message is held at a time. Returns nil, false if no
// message is pending.
func (a *Assembler) GetMessage() (*Message, bool) {
	if a.pending == nil {
		return nil, false
	}
	msg := a.pending
	a.pending = nil
	return msg, true
}
