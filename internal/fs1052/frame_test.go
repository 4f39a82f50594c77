package fs1052

import "testing"

func TestControlFrame_RoundTripShortAddressNoExtras(t *testing.T) {
	frame := NewControlFrame()
	frame.FrameType = T1Control
	frame.SrcAddress = "K6K"
	frame.DesAddress = "W1A"
	frame.LinkState = LinkUp
	frame.LinkTimeout = 30000
	frame.AckNakType = NullAck

	encoded := FormatControlFrame(frame)
	decoded, err := ParseControlFrame(encoded)
	if err != nil {
		t.Fatalf("ParseControlFrame: %v", err)
	}

	if decoded.LinkState != LinkUp {
		t.Errorf("LinkState = %v, want LinkUp", decoded.LinkState)
	}
	if decoded.LinkTimeout != 30000 {
		t.Errorf("LinkTimeout = %d, want 30000", decoded.LinkTimeout)
	}
	if decoded.SrcAddress != "6K" {
		t.Errorf("SrcAddress = %q, want %q (short address keeps only last 2 chars)", decoded.SrcAddress, "6K")
	}
	if decoded.DesAddress != "1A" {
		t.Errorf("DesAddress = %q, want %q", decoded.DesAddress, "1A")
	}
}

func TestControlFrame_RoundTripLongAddress(t *testing.T) {
	frame := NewControlFrame()
	frame.AddressMode = Long18Byte
	frame.FrameType = T1Control
	frame.SrcAddress = "STATION-ALPHA"
	frame.DesAddress = "STATION-BRAVO"

	encoded := FormatControlFrame(frame)
	decoded, err := ParseControlFrame(encoded)
	if err != nil {
		t.Fatalf("ParseControlFrame: %v", err)
	}

	if decoded.SrcAddress != "STATION-ALPHA" {
		t.Errorf("SrcAddress = %q, want %q", decoded.SrcAddress, "STATION-ALPHA")
	}
	if decoded.DesAddress != "STATION-BRAVO" {
		t.Errorf("DesAddress = %q, want %q", decoded.DesAddress, "STATION-BRAVO")
	}
}

func TestControlFrame_RoundTripBitmapAndFlowControl(t *testing.T) {
	frame := NewControlFrame()
	frame.FrameType = T2Control
	frame.AckNakType = DataAck
	frame.FlowControl = true
	for i := range frame.BitMap {
		frame.BitMap[i] = byte(i)
	}
	frame.BitMap[AckMapSize-1] = 0x00 // will be OR'd with the flow control bit

	encoded := FormatControlFrame(frame)
	decoded, err := ParseControlFrame(encoded)
	if err != nil {
		t.Fatalf("ParseControlFrame: %v", err)
	}

	if !decoded.FlowControl {
		t.Error("expected FlowControl true to round-trip")
	}
	for i := 0; i < AckMapSize-1; i++ {
		if decoded.BitMap[i] != byte(i) {
			t.Fatalf("BitMap[%d] = %d, want %d", i, decoded.BitMap[i], i)
		}
	}
	if decoded.BitMap[AckMapSize-1]&0x80 == 0 {
		t.Error("expected flow control bit set in last bitmap byte")
	}
}

func TestControlFrame_RoundTripHeraldMessageExtension(t *testing.T) {
	frame := NewControlFrame()
	frame.FrameType = T3Control
	frame.HeraldPresent = true
	frame.DataRateFormat = RateAbsolute
	frame.DataRate = uint8(Bps1200)
	frame.InterleaverLength = InterleaverShort
	frame.BytesInDataFrames = 512
	frame.FramesInNextSeries = 4

	frame.MessagePresent = true
	frame.TxMsgSize = 102400
	frame.TxMsgID = 7
	frame.TxConID = 42
	frame.TxMsgPriority = 3
	frame.TxMsgNextBytePos = 1024
	frame.RxMsgNextBytePos = 2048

	frame.ExtensionFunctionPresent = true
	frame.FunctionBits[0] = 0xDEADBEEF
	frame.FunctionBits[1] = 0xCAFEF00D

	encoded := FormatControlFrame(frame)
	decoded, err := ParseControlFrame(encoded)
	if err != nil {
		t.Fatalf("ParseControlFrame: %v", err)
	}

	if !decoded.HeraldPresent || decoded.BytesInDataFrames != 512 || decoded.FramesInNextSeries != 4 {
		t.Errorf("herald mismatch: %+v", decoded)
	}
	if !decoded.MessagePresent || decoded.TxMsgSize != 102400 || decoded.TxMsgID != 7 ||
		decoded.TxConID != 42 || decoded.TxMsgPriority != 3 ||
		decoded.TxMsgNextBytePos != 1024 || decoded.RxMsgNextBytePos != 2048 {
		t.Errorf("message mismatch: %+v", decoded)
	}
	if !decoded.ExtensionFunctionPresent || decoded.FunctionBits[0] != 0xDEADBEEF || decoded.FunctionBits[1] != 0xCAFEF00D {
		t.Errorf("extension mismatch: %+v", decoded)
	}
}

func TestControlFrame_RejectsCorruptedCRC(t *testing.T) {
	frame := NewControlFrame()
	frame.SrcAddress = "AAA"
	encoded := FormatControlFrame(frame)
	encoded[0] ^= 0xFF

	if _, err := ParseControlFrame(encoded); err == nil {
		t.Fatal("expected CRC error on corrupted control frame")
	}
}

func TestDataFrame_RoundTrip(t *testing.T) {
	frame := DataFrame{
		DataRateFormat:    RateAbsolute,
		DataRate:          uint8(Bps2400),
		InterleaverLength: InterleaverLong,
		SequenceNumber:    17,
		MsgByteOffset:     4096,
		Data:              []byte("the quick brown fox"),
	}

	encoded, err := FormatDataFrame(frame)
	if err != nil {
		t.Fatalf("FormatDataFrame: %v", err)
	}

	decoded, err := ParseDataFrame(encoded)
	if err != nil {
		t.Fatalf("ParseDataFrame: %v", err)
	}

	if decoded.SequenceNumber != 17 || decoded.MsgByteOffset != 4096 {
		t.Errorf("header mismatch: %+v", decoded)
	}
	if string(decoded.Data) != "the quick brown fox" {
		t.Errorf("Data = %q, want %q", decoded.Data, "the quick brown fox")
	}
}

func TestDataFrame_RejectsOversizedPayload(t *testing.T) {
	frame := DataFrame{Data: make([]byte, MaxDataBlockLen+1)}
	if _, err := FormatDataFrame(frame); err == nil {
		t.Fatal("expected error for payload exceeding MaxDataBlockLen")
	}
}

func TestDataFrame_RejectsCorruptedCRC(t *testing.T) {
	frame := DataFrame{Data: []byte("hello")}
	encoded, err := FormatDataFrame(frame)
	if err != nil {
		t.Fatalf("FormatDataFrame: %v", err)
	}
	encoded[len(encoded)-1] ^= 0xFF

	if _, err := ParseDataFrame(encoded); err == nil {
		t.Fatal("expected CRC error on corrupted data frame")
	}
}
