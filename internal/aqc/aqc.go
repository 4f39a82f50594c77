// Package aqc implements the AQC-ALE (Advanced Quick Call) protocol
// extension: Data Element extraction from the 21-bit word payload,
// orderwire CRC validation, slot assignment, and the higher-level
// call-probe/handshake/inlink message parsers.
//
// Grounded on original_source/include/aqc_protocol.h and
// src/protocol/aqc_parser.cpp. AQC reuses the same 8-FSK modem as
// standard 2G ALE; this package only reinterprets the payload bits.
package aqc

import "github.com/n0call/ale1052/internal/fec"

// DE3TrafficClass names the DE3 traffic-class values (0-15).
type DE3TrafficClass uint8

const (
	ClearVoice DE3TrafficClass = iota
	DigitalVoice
	HFDVoice
	Reserved3
	SecureDigitalVoice
	Reserved5
	Reserved6
	Reserved7
	ALEMsg
	PSKMsg
	Tone39Msg
	HFEmail
	KY100Active
	Reserved13
	Reserved14
	Reserved15
)

var trafficClassNames = [16]string{
	"CLEAR_VOICE", "DIGITAL_VOICE", "HFD_VOICE", "RESERVED_3",
	"SECURE_DIGITAL_VOICE", "RESERVED_5", "RESERVED_6", "RESERVED_7",
	"ALE_MSG", "PSK_MSG", "TONE_39_MSG", "HF_EMAIL",
	"KY100_ACTIVE", "RESERVED_13", "RESERVED_14", "RESERVED_15",
}

func (t DE3TrafficClass) String() string {
	if int(t) < len(trafficClassNames) {
		return trafficClassNames[t]
	}
	return "UNKNOWN"
}

// DE9TransactionCode names the DE9 transaction-code values (0-7).
type DE9TransactionCode uint8

const (
	TxnReserved0 DE9TransactionCode = iota
	TxnMS141A
	TxnAckLast
	TxnNakLast
	TxnTerminate
	TxnOpAckNak
	TxnAQCCmd
	TxnReserved7
)

var transactionCodeNames = [8]string{
	"RESERVED_0", "MS_141A", "ACK_LAST", "NAK_LAST",
	"TERMINATE", "OP_ACKNAK", "AQC_CMD", "RESERVED_7",
}

func (c DE9TransactionCode) String() string {
	if int(c) < len(transactionCodeNames) {
		return transactionCodeNames[c]
	}
	return "UNKNOWN"
}

// DataElements holds the parsed AQC data elements. DE5, DE6, and DE7 are
// always zero: their exact bit positions are not defined by the source
// material this package is grounded on (spec.md §9's open question), and
// this implementation does not guess a layout for them.
type DataElements struct {
	DE1 uint8 // reserved, 0-7
	DE2 uint8 // slot position, 0-7
	DE3 DE3TrafficClass
	DE4 uint8 // LQA, 0-31
	DE5 uint8
	DE6 uint8
	DE7 uint8
	DE8 uint8 // orderwire command count, 0-7
	DE9 DE9TransactionCode
}

// ExtractDataElements pulls DE1/DE2/DE3/DE4/DE8/DE9 out of a 21-bit word
// payload per the bit layout in spec.md §4.6.
func ExtractDataElements(payload uint32) DataElements {
	return DataElements{
		DE2: uint8(payload & 0x7),
		DE3: DE3TrafficClass(uint8((payload >> 3) & 0xF)),
		DE4: uint8((payload >> 7) & 0x1F),
		DE9: DE9TransactionCode(uint8((payload >> 12) & 0x7)),
		DE1: uint8((payload >> 15) & 0x7),
		DE8: uint8((payload >> 18) & 0x7),
	}
}

// IsAQCFormat reports whether a word's payload should be interpreted as
// AQC data elements rather than restricted-ASCII: the preamble is CMD, or
// the first payload character is outside printable ASCII.
func IsAQCFormat(preambleIsCmd bool, firstPayloadChar byte) bool {
	if preambleIsCmd {
		return true
	}
	return firstPayloadChar < 0x20 || firstPayloadChar > 0x7E
}

// CRCStatus reports the outcome of an orderwire CRC validation.
type CRCStatus uint8

const (
	NotApplicable CRCStatus = iota
	CRCOk
	CRCError
)

// ValidateCRC8 checks a trailing CRC-8 byte against the message body.
func ValidateCRC8(messageWithCRC []byte) (payload []byte, status CRCStatus) {
	payload, ok := fec.VerifyCRC8(messageWithCRC)
	if !ok {
		return payload, CRCError
	}
	return payload, CRCOk
}

// ValidateCRC16 checks a trailing big-endian CRC-16 against the message
// body.
func ValidateCRC16(messageWithCRC []byte) (payload []byte, status CRCStatus) {
	payload, ok := fec.VerifyCRC16(messageWithCRC)
	if !ok {
		return payload, CRCError
	}
	return payload, CRCOk
}

const (
	NumSlots     = 8
	SlotSpacingMs = 200
)

// AssignSlot hashes a station address (sum of byte codes mod 8) into a
// slot 0..7 for net/group response scheduling.
func AssignSlot(address string) uint8 {
	sum := 0
	for i := 0; i < len(address); i++ {
		sum += int(address[i])
	}
	return uint8(sum % NumSlots)
}

// SlotTimeMs computes the absolute time a given slot should transmit,
// relative to a base time.
func SlotTimeMs(baseMs uint32, slot uint8) uint32 {
	return baseMs + uint32(slot)*SlotSpacingMs
}

// CallProbe is an AQC call probe (enhanced TO call).
type CallProbe struct {
	ToAddress   string
	TermAddress string
	DE          DataElements
	TimestampMs uint32
}

// CallHandshake is an AQC call handshake (enhanced response).
type CallHandshake struct {
	ToAddress    string
	FromAddress  string
	DE           DataElements
	CRCStatus    CRCStatus
	AckThisFlag  bool
	SlotPosition uint8
	TimestampMs  uint32
}

// Inlink is an AQC inlink message (link established).
type Inlink struct {
	ToAddress     string
	TermAddress   string
	DE            DataElements
	CRCStatus     CRCStatus
	AckThisFlag   bool
	NetAddressFlag bool
	SlotPosition  uint8
	TimestampMs   uint32
}

// ParseCallProbe builds a CallProbe from a TO word's address/payload and
// a terminator word's address, per original_source's aqc_parser.cpp.
func ParseCallProbe(toAddress, termAddress string, payload uint32, timestampMs uint32) CallProbe {
	return CallProbe{
		ToAddress:   toAddress,
		TermAddress: termAddress,
		DE:          ExtractDataElements(payload),
		TimestampMs: timestampMs,
	}
}

// ParseCallHandshake builds a CallHandshake from a responding station's
// words. AckThisFlag is set when DE9 is the ACK_LAST transaction code.
func ParseCallHandshake(toAddress, fromAddress string, payload uint32, crcStatus CRCStatus, timestampMs uint32) CallHandshake {
	de := ExtractDataElements(payload)
	return CallHandshake{
		ToAddress:    toAddress,
		FromAddress:  fromAddress,
		DE:           de,
		CRCStatus:    crcStatus,
		AckThisFlag:  de.DE9 == TxnAckLast,
		SlotPosition: de.DE2,
		TimestampMs:  timestampMs,
	}
}

// ParseInlink builds an Inlink message once a link has been established.
func ParseInlink(toAddress, termAddress string, payload uint32, crcStatus CRCStatus, netCall bool, timestampMs uint32) Inlink {
	de := ExtractDataElements(payload)
	return Inlink{
		ToAddress:      toAddress,
		TermAddress:    termAddress,
		DE:             de,
		CRCStatus:      crcStatus,
		AckThisFlag:    de.DE9 == TxnAckLast,
		NetAddressFlag: netCall,
		SlotPosition:   de.DE2,
		TimestampMs:    timestampMs,
	}
}
