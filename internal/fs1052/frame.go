// Package fs1052 implements Federal Standard 1052's data-link frame
// codec and Variable ARQ state machine for reliable data transfer.
//
// Grounded on original_source/include/fs1052_protocol.h and
// src/fs1052/frame_format.cpp, adapted so control-frame encode/decode
// round-trips symmetrically: the original wire format has no bit left
// to signal whether a bitmap/herald/message/extension block follows the
// fixed header, so its own parser always leaves those blocks unset.
// This package allocates bits 2-5 of the ack/nak byte as explicit
// presence flags instead, so ParseControlFrame recovers exactly what
// FormatControlFrame wrote (spec.md §9, Testable Property 9).
package fs1052

import (
	"fmt"

	"github.com/n0call/ale1052/internal/fec"
)

const (
	ProtocolVersion   = 0
	MaxDataBlockLen   = 1023
	AckMapSize        = 32
	MaxSequenceNumber = 255
)

// ARQMode is one of FS-1052's four operating modes.
type ARQMode uint8

const (
	ModeVariableARQ ARQMode = iota
	Broadcast
	Circuit
	FixedARQ
)

func (m ARQMode) String() string {
	switch m {
	case ModeVariableARQ:
		return "Variable ARQ"
	case Broadcast:
		return "Broadcast"
	case Circuit:
		return "Circuit"
	case FixedARQ:
		return "Fixed ARQ"
	default:
		return "Unknown"
	}
}

// LinkState is a control-frame link-management state.
type LinkState uint8

const (
	Calling LinkState = iota
	CallAck
	LinkUp
	Dropping
)

// FrameType identifies a frame on the wire.
type FrameType uint8

const (
	NoFrame FrameType = iota
	T1Control
	T2Control
	T3Control
	T4Control
	DataFrameType
)

// AddressMode selects abbreviated 2-byte or full 18-byte addressing.
type AddressMode uint8

const (
	Short2Byte AddressMode = iota
	Long18Byte
)

// AckNakType selects what, if any, acknowledgment field a control frame
// carries.
type AckNakType uint8

const (
	NullAck AckNakType = iota
	DataAck
	DataAckReq
	HeraldAck
)

// DataRate is an absolute rate supported by the MIL-STD-188-110A modem.
type DataRate uint8

const (
	Bps75 DataRate = iota
	Bps150
	Bps300
	Bps600
	Bps1200
	Bps2400
	Bps4800
	SameRate
)

func (r DataRate) Bps() uint16 {
	switch r {
	case Bps75:
		return 75
	case Bps150:
		return 150
	case Bps300:
		return 300
	case Bps600:
		return 600
	case Bps1200:
		return 1200
	case Bps2400:
		return 2400
	case Bps4800:
		return 4800
	default:
		return 0
	}
}

// BpsToDataRate maps a bps value to the smallest supported rate at or
// above it, per original_source's bps_to_data_rate.
func BpsToDataRate(bps uint16) DataRate {
	switch {
	case bps <= 75:
		return Bps75
	case bps <= 150:
		return Bps150
	case bps <= 300:
		return Bps300
	case bps <= 600:
		return Bps600
	case bps <= 1200:
		return Bps1200
	case bps <= 2400:
		return Bps2400
	default:
		return Bps4800
	}
}

// DataRateFormat says whether DataRate carries an absolute or relative
// value.
type DataRateFormat uint8

const (
	RateAbsolute DataRateFormat = iota
	RateRelative
)

// InterleaverLength selects the MIL-STD-188-110A interleaver depth.
type InterleaverLength uint8

const (
	InterleaverShort InterleaverLength = iota
	InterleaverLong
)

// NegotiationMode says when modem parameters are renegotiated.
type NegotiationMode uint8

const (
	ChangesOnly NegotiationMode = iota
	EveryTime
)

// ControlFrame carries link management, acknowledgment, and next-series
// negotiation fields.
type ControlFrame struct {
	ProtocolVersion uint8
	ARQMode         ARQMode
	NegMode         NegotiationMode
	AddressMode     AddressMode
	FrameType       FrameType

	SrcAddress string
	DesAddress string

	LinkState   LinkState
	LinkTimeout uint16

	AckNakType  AckNakType
	BitMap      [AckMapSize]byte
	FlowControl bool

	HeraldPresent      bool
	DataRateFormat     DataRateFormat
	DataRate           uint8
	InterleaverLength  InterleaverLength
	BytesInDataFrames  uint16
	FramesInNextSeries uint8

	MessagePresent   bool
	TxMsgSize        uint32
	TxMsgID          uint16
	TxConID          uint16
	TxMsgPriority    uint8
	TxMsgNextBytePos uint32
	RxMsgNextBytePos uint32

	ExtensionFunctionPresent bool
	FunctionBits             [2]uint32
}

// NewControlFrame returns a ControlFrame with the documented defaults
// (version 0, Variable ARQ, long interleaver, 2400 bps).
func NewControlFrame() ControlFrame {
	return ControlFrame{
		ProtocolVersion:   ProtocolVersion,
		ARQMode:           ModeVariableARQ,
		AddressMode:       Short2Byte,
		DataRate:          uint8(Bps2400),
		InterleaverLength: InterleaverLong,
	}
}

func hasBitmap(f FrameType, ackNak AckNakType, addrMode AddressMode) bool {
	isControlWithWindow := f == T2Control || f == T3Control || f == T4Control
	return isControlWithWindow && ackNak == DataAck && addrMode == Short2Byte
}

// FormatControlFrame serializes frame into the FS-1052 control-frame
// wire format with a trailing CRC-32.
func FormatControlFrame(frame ControlFrame) []byte {
	buf := make([]byte, 0, 64)

	header := byte(0x01) | 0x02
	header |= (frame.ProtocolVersion & 0x03) << 2
	header |= (uint8(frame.ARQMode) & 0x03) << 4
	header |= (uint8(frame.NegMode) & 0x01) << 6
	header |= (uint8(frame.AddressMode) & 0x01) << 7
	buf = append(buf, header)

	buf = appendAddress(buf, frame.SrcAddress, frame.AddressMode)
	buf = appendAddress(buf, frame.DesAddress, frame.AddressMode)

	buf = append(buf, byte(frame.LinkState))
	buf = append(buf, byte(frame.LinkTimeout>>8), byte(frame.LinkTimeout))

	bitmapPresent := hasBitmap(frame.FrameType, frame.AckNakType, frame.AddressMode)

	flags := uint8(frame.AckNakType) & 0x03
	if bitmapPresent {
		flags |= 0x20
	}
	if frame.HeraldPresent {
		flags |= 0x04
	}
	if frame.MessagePresent {
		flags |= 0x08
	}
	if frame.ExtensionFunctionPresent {
		flags |= 0x10
	}
	buf = append(buf, flags)

	if bitmapPresent {
		bm := frame.BitMap
		if frame.FlowControl {
			bm[AckMapSize-1] |= 0x80
		}
		buf = append(buf, bm[:]...)
	}

	if frame.HeraldPresent {
		buf = append(buf,
			(uint8(frame.DataRateFormat)<<7)|(frame.DataRate&0x07),
			byte(frame.InterleaverLength),
			byte(frame.BytesInDataFrames>>8), byte(frame.BytesInDataFrames),
			frame.FramesInNextSeries,
		)
	}

	if frame.MessagePresent {
		buf = append(buf,
			byte(frame.TxMsgSize>>24), byte(frame.TxMsgSize>>16), byte(frame.TxMsgSize>>8), byte(frame.TxMsgSize),
			byte(frame.TxMsgID>>8), byte(frame.TxMsgID),
			byte(frame.TxConID>>8), byte(frame.TxConID),
			frame.TxMsgPriority,
			byte(frame.TxMsgNextBytePos>>24), byte(frame.TxMsgNextBytePos>>16), byte(frame.TxMsgNextBytePos>>8), byte(frame.TxMsgNextBytePos),
			byte(frame.RxMsgNextBytePos>>24), byte(frame.RxMsgNextBytePos>>16), byte(frame.RxMsgNextBytePos>>8), byte(frame.RxMsgNextBytePos),
		)
	}

	if frame.ExtensionFunctionPresent {
		buf = append(buf,
			byte(frame.FunctionBits[0]>>24), byte(frame.FunctionBits[0]>>16), byte(frame.FunctionBits[0]>>8), byte(frame.FunctionBits[0]),
			byte(frame.FunctionBits[1]>>24), byte(frame.FunctionBits[1]>>16), byte(frame.FunctionBits[1]>>8), byte(frame.FunctionBits[1]),
		)
	}

	return fec.AppendCRC32(buf)
}

func appendAddress(buf []byte, addr string, mode AddressMode) []byte {
	if mode == Short2Byte {
		var a, b byte
		n := len(addr)
		if n >= 1 {
			a = addr[n-1]
		}
		if n >= 2 {
			b = addr[n-2]
		}
		return append(buf, a, b)
	}

	var long [18]byte
	copy(long[:], addr)
	return append(buf, long[:]...)
}

// ParseControlFrame validates the trailing CRC-32 and decodes a control
// frame, recovering every field FormatControlFrame wrote.
func ParseControlFrame(data []byte) (ControlFrame, error) {
	var frame ControlFrame

	payload, ok := fec.VerifyCRC32(data)
	if !ok {
		return frame, fmt.Errorf("fs1052: control frame CRC-32 invalid")
	}
	if len(payload) < 1 {
		return frame, fmt.Errorf("fs1052: control frame too short")
	}

	idx := 0
	header := payload[idx]
	idx++
	frame.ProtocolVersion = (header >> 2) & 0x03
	frame.ARQMode = ARQMode((header >> 4) & 0x03)
	frame.NegMode = NegotiationMode((header >> 6) & 0x01)
	frame.AddressMode = AddressMode((header >> 7) & 0x01)

	addrLen := 2
	if frame.AddressMode == Long18Byte {
		addrLen = 18
	}
	if len(payload) < idx+2*addrLen+4 {
		return frame, fmt.Errorf("fs1052: control frame truncated before addresses")
	}
	src, idx2 := readAddress(payload, idx, frame.AddressMode)
	frame.SrcAddress = src
	idx = idx2
	des, idx3 := readAddress(payload, idx, frame.AddressMode)
	frame.DesAddress = des
	idx = idx3

	if len(payload) < idx+4 {
		return frame, fmt.Errorf("fs1052: control frame truncated before link state")
	}
	frame.LinkState = LinkState(payload[idx])
	idx++
	frame.LinkTimeout = uint16(payload[idx])<<8 | uint16(payload[idx+1])
	idx += 2

	flags := payload[idx]
	idx++
	frame.AckNakType = AckNakType(flags & 0x03)
	bitmapPresent := flags&0x20 != 0
	frame.HeraldPresent = flags&0x04 != 0
	frame.MessagePresent = flags&0x08 != 0
	frame.ExtensionFunctionPresent = flags&0x10 != 0

	if bitmapPresent {
		if len(payload) < idx+AckMapSize {
			return frame, fmt.Errorf("fs1052: control frame truncated before bitmap")
		}
		copy(frame.BitMap[:], payload[idx:idx+AckMapSize])
		frame.FlowControl = frame.BitMap[AckMapSize-1]&0x80 != 0
		idx += AckMapSize
	}

	if frame.HeraldPresent {
		if len(payload) < idx+5 {
			return frame, fmt.Errorf("fs1052: control frame truncated before herald")
		}
		frame.DataRateFormat = DataRateFormat(payload[idx] >> 7)
		frame.DataRate = payload[idx] & 0x07
		idx++
		frame.InterleaverLength = InterleaverLength(payload[idx])
		idx++
		frame.BytesInDataFrames = uint16(payload[idx])<<8 | uint16(payload[idx+1])
		idx += 2
		frame.FramesInNextSeries = payload[idx]
		idx++
	}

	if frame.MessagePresent {
		if len(payload) < idx+17 {
			return frame, fmt.Errorf("fs1052: control frame truncated before message")
		}
		frame.TxMsgSize = be32(payload[idx:])
		idx += 4
		frame.TxMsgID = uint16(payload[idx])<<8 | uint16(payload[idx+1])
		idx += 2
		frame.TxConID = uint16(payload[idx])<<8 | uint16(payload[idx+1])
		idx += 2
		frame.TxMsgPriority = payload[idx]
		idx++
		frame.TxMsgNextBytePos = be32(payload[idx:])
		idx += 4
		frame.RxMsgNextBytePos = be32(payload[idx:])
		idx += 4
	}

	if frame.ExtensionFunctionPresent {
		if len(payload) < idx+8 {
			return frame, fmt.Errorf("fs1052: control frame truncated before extension")
		}
		frame.FunctionBits[0] = be32(payload[idx:])
		idx += 4
		frame.FunctionBits[1] = be32(payload[idx:])
		idx += 4
	}

	return frame, nil
}

func readAddress(payload []byte, idx int, mode AddressMode) (string, int) {
	if mode == Short2Byte {
		b := []byte{payload[idx+1], payload[idx]}
		return trimZeros(b), idx + 2
	}
	long := payload[idx : idx+18]
	return trimZeros(long), idx + 18
}

func trimZeros(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// DataFrame carries one sequenced block of payload bytes.
type DataFrame struct {
	DataRateFormat    DataRateFormat
	DataRate          uint8
	InterleaverLength InterleaverLength
	SequenceNumber    uint8
	MsgByteOffset     uint32
	Data              []byte
}

// FormatDataFrame serializes frame into the FS-1052 data-frame wire
// format with a trailing CRC-32.
func FormatDataFrame(frame DataFrame) ([]byte, error) {
	if len(frame.Data) > MaxDataBlockLen {
		return nil, fmt.Errorf("fs1052: data frame payload %d exceeds max %d", len(frame.Data), MaxDataBlockLen)
	}

	buf := make([]byte, 0, 8+len(frame.Data))
	header := byte(0x01)
	header |= uint8(frame.DataRateFormat) << 7
	header |= (frame.DataRate & 0x07) << 4
	buf = append(buf, header)
	buf = append(buf, byte(frame.InterleaverLength))
	buf = append(buf, frame.SequenceNumber)
	buf = append(buf,
		byte(frame.MsgByteOffset>>24), byte(frame.MsgByteOffset>>16),
		byte(frame.MsgByteOffset>>8), byte(frame.MsgByteOffset),
	)
	dataLen := uint16(len(frame.Data))
	buf = append(buf, byte(dataLen>>8), byte(dataLen))
	buf = append(buf, frame.Data...)

	return fec.AppendCRC32(buf), nil
}

// ParseDataFrame validates the trailing CRC-32 and decodes a data frame.
func ParseDataFrame(data []byte) (DataFrame, error) {
	var frame DataFrame

	payload, ok := fec.VerifyCRC32(data)
	if !ok {
		return frame, fmt.Errorf("fs1052: data frame CRC-32 invalid")
	}
	if len(payload) < 9 {
		return frame, fmt.Errorf("fs1052: data frame too short")
	}

	idx := 0
	frame.DataRateFormat = DataRateFormat(payload[idx] >> 7)
	frame.DataRate = (payload[idx] >> 4) & 0x07
	idx++
	frame.InterleaverLength = InterleaverLength(payload[idx])
	idx++
	frame.SequenceNumber = payload[idx]
	idx++
	frame.MsgByteOffset = be32(payload[idx:])
	idx += 4
	dataLen := int(payload[idx])<<8 | int(payload[idx+1])
	idx += 2

	if dataLen > MaxDataBlockLen || idx+dataLen != len(payload) {
		return frame, fmt.Errorf("fs1052: data frame length mismatch")
	}
	frame.Data = append([]byte(nil), payload[idx:idx+dataLen]...)

	return frame, nil
}
