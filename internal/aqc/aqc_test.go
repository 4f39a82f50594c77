package aqc

import (
	"testing"

	"github.com/n0call/ale1052/internal/fec"
)

// TestScenarioS4_AQCExtraction mirrors spec.md S4.
func TestScenarioS4_AQCExtraction(t *testing.T) {
	var payload uint32 = 5 | (9 << 3) | (20 << 7) | (2 << 12) | (3 << 15) | (1 << 18)

	de := ExtractDataElements(payload)

	if de.DE2 != 5 {
		t.Errorf("DE2 = %d, want 5", de.DE2)
	}
	if de.DE3 != PSKMsg {
		t.Errorf("DE3 = %v, want PSK_MSG", de.DE3)
	}
	if de.DE4 != 20 {
		t.Errorf("DE4 = %d, want 20", de.DE4)
	}
	if de.DE9 != TxnAckLast {
		t.Errorf("DE9 = %v, want ACK_LAST", de.DE9)
	}
	if de.DE1 != 3 {
		t.Errorf("DE1 = %d, want 3", de.DE1)
	}
	if de.DE8 != 1 {
		t.Errorf("DE8 = %d, want 1", de.DE8)
	}
	if de.DE5 != 0 || de.DE6 != 0 || de.DE7 != 0 {
		t.Errorf("DE5/DE6/DE7 should remain zero, got %d/%d/%d", de.DE5, de.DE6, de.DE7)
	}
}

func TestTrafficClassNames(t *testing.T) {
	if PSKMsg.String() != "PSK_MSG" {
		t.Errorf("PSKMsg.String() = %q, want PSK_MSG", PSKMsg.String())
	}
	if TxnAckLast.String() != "ACK_LAST" {
		t.Errorf("TxnAckLast.String() = %q, want ACK_LAST", TxnAckLast.String())
	}
}

// TestScenarioS5_CRC16Orderwire mirrors spec.md S5.
func TestScenarioS5_CRC16Orderwire(t *testing.T) {
	msg := []byte("HELLO")
	withCRC := fec.AppendCRC16(msg)

	if _, status := ValidateCRC16(withCRC); status != CRCOk {
		t.Fatalf("expected CRCOk on unmodified message")
	}

	for i := range withCRC {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), withCRC...)
			corrupted[i] ^= 1 << uint(bit)
			if _, status := ValidateCRC16(corrupted); status == CRCOk {
				t.Errorf("byte %d bit %d: expected CRC failure", i, bit)
			}
		}
	}
}

func TestAssignSlot_InRange(t *testing.T) {
	for _, addr := range []string{"K6K", "W1A", "NET1", "ABCDE"} {
		slot := AssignSlot(addr)
		if slot >= NumSlots {
			t.Errorf("AssignSlot(%q) = %d, out of range", addr, slot)
		}
	}
}
