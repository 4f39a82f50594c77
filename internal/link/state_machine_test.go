package link

import (
	"testing"

	"github.com/n0call/ale1052/internal/lqa"
	"github.com/n0call/ale1052/internal/wordcodec"
)

func newTestMachine(t *testing.T) *StateMachine {
	t.Helper()
	m := New(lqa.NewDatabase())
	if err := m.SetSelfAddress("K6K"); err != nil {
		t.Fatalf("SetSelfAddress: %v", err)
	}
	return m
}

func TestProcessEvent_IdleToScanningToIdle(t *testing.T) {
	m := newTestMachine(t)

	if !m.ProcessEvent(StartScan) {
		t.Fatal("expected IDLE -> SCANNING transition")
	}
	if m.State() != Scanning {
		t.Fatalf("state = %v, want SCANNING", m.State())
	}

	if !m.ProcessEvent(StopScan) {
		t.Fatal("expected SCANNING -> IDLE transition")
	}
	if m.State() != Idle {
		t.Fatalf("state = %v, want IDLE", m.State())
	}
}

func TestProcessEvent_SameStateIsNoOp(t *testing.T) {
	m := newTestMachine(t)
	if m.ProcessEvent(StopScan) {
		t.Fatal("STOP_SCAN from IDLE should not transition")
	}
}

func TestInitiateCall_TransmitsToThenFrom(t *testing.T) {
	m := newTestMachine(t)

	var transmitted []wordcodec.ALEWord
	m.SetTransmitCallback(func(w wordcodec.ALEWord) {
		transmitted = append(transmitted, w)
	})

	ok, err := m.InitiateCall("W1A")
	if err != nil {
		t.Fatalf("InitiateCall: %v", err)
	}
	if !ok {
		t.Fatal("expected call to initiate")
	}
	if m.State() != Calling {
		t.Fatalf("state = %v, want CALLING", m.State())
	}
	if len(transmitted) != 2 {
		t.Fatalf("expected 2 transmitted words, got %d", len(transmitted))
	}
	if transmitted[0].Type != wordcodec.To {
		t.Errorf("first word type = %v, want TO", transmitted[0].Type)
	}
	if transmitted[1].Type != wordcodec.From {
		t.Errorf("second word type = %v, want FROM", transmitted[1].Type)
	}
}

func TestInitiateCall_RejectedWhileLinked(t *testing.T) {
	m := newTestMachine(t)
	m.ProcessEvent(CallRequest)
	m.ProcessEvent(HandshakeComplete)
	if m.State() != Linked {
		t.Fatalf("state = %v, want LINKED", m.State())
	}

	if _, err := m.InitiateCall("W1A"); err == nil {
		t.Fatal("expected error initiating call while LINKED")
	}
}

func TestUpdate_CallTimeoutReturnsToIdle(t *testing.T) {
	m := newTestMachine(t)
	m.Update(0)
	m.ProcessEvent(CallRequest)
	if m.State() != Calling {
		t.Fatalf("state = %v, want CALLING", m.State())
	}

	m.Update(CallTimeoutMs + 1)
	if m.State() != Idle {
		t.Fatalf("state = %v after timeout, want IDLE", m.State())
	}
}

func TestUpdate_CallTimeoutFiresAtExactBoundary(t *testing.T) {
	m := newTestMachine(t)
	m.Update(0)
	m.ProcessEvent(CallRequest)
	if m.State() != Calling {
		t.Fatalf("state = %v, want CALLING", m.State())
	}

	m.Update(CallTimeoutMs)
	if m.State() != Idle {
		t.Fatalf("state = %v at exact timeout boundary, want IDLE", m.State())
	}
}

func TestUpdate_SoundingCompletesAtExactWordDuration(t *testing.T) {
	m := newTestMachine(t)
	m.Update(0)
	m.ProcessEvent(SoundingRequest)
	if m.State() != Sounding {
		t.Fatalf("state = %v, want SOUNDING", m.State())
	}

	m.Update(WordDurationMs)
	if m.State() != Scanning {
		t.Fatalf("state = %v at exact word-duration boundary, want SCANNING", m.State())
	}
}

func TestScanning_HopsChannelsOnDwellTimeout(t *testing.T) {
	m := newTestMachine(t)
	m.AddScanChannel(Channel{FrequencyHz: 2500000})
	m.AddScanChannel(Channel{FrequencyHz: 3000000})

	var seen []uint32
	m.SetChannelCallback(func(ch Channel) { seen = append(seen, ch.FrequencyHz) })

	m.Update(0)
	m.ProcessEvent(StartScan)
	if ch, ok := m.CurrentChannel(); !ok || ch.FrequencyHz != 2500000 {
		t.Fatalf("expected first channel 2500000, got %+v", ch)
	}

	m.Update(ScanDwellMs + 1)
	ch, ok := m.CurrentChannel()
	if !ok || ch.FrequencyHz != 3000000 {
		t.Fatalf("expected hop to 3000000, got %+v", ch)
	}
	if len(seen) < 2 {
		t.Fatalf("expected at least 2 channel callbacks, got %d", len(seen))
	}
}

func TestProcessReceivedWord_DetectsIncomingCall(t *testing.T) {
	m := newTestMachine(t)
	m.ProcessEvent(StartScan)
	m.Update(0)

	toWord := wordcodec.ALEWord{
		Type:        wordcodec.To,
		Address:     [3]byte{'K', '6', 'K'},
		Valid:       true,
		TimestampMs: 100,
	}
	m.ProcessReceivedWord(toWord)

	if m.State() != Handshake {
		t.Fatalf("state = %v, want HANDSHAKE after call detected", m.State())
	}
}

func TestErrorOccurred_AlwaysTransitionsToError(t *testing.T) {
	m := newTestMachine(t)
	if !m.ProcessEvent(ErrorOccurred) {
		t.Fatal("expected transition to ERROR")
	}
	if m.State() != Error {
		t.Fatalf("state = %v, want ERROR", m.State())
	}

	if !m.ProcessEvent(StartScan) {
		t.Fatal("expected ERROR -> SCANNING on START_SCAN")
	}
	if m.State() != Scanning {
		t.Fatalf("state = %v, want SCANNING", m.State())
	}
}
