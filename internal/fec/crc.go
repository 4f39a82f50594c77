// Package fec provides the checksum primitives shared by the FS-1052 frame
// codec and the AQC orderwire validator.
//
// All three widths here are MSB-first, non-reflected CRCs: FS-1052's
// CRC-32 (polynomial 0x04C11DB7, initial 0xFFFFFFFF, final XOR
// 0xFFFFFFFF) is the CRC-32/BZIP2 variant, not the reflected CRC-32 that
// hash/crc32 implements, so the tables are built and walked MSB-first here
// rather than delegating to the standard library.
package fec

import "encoding/binary"

type crcConfig struct {
	width int // 8, 16, or 32
	poly  uint32
	init  uint32
	xorout uint32
}

var (
	crc32Cfg = crcConfig{width: 32, poly: 0x04C11DB7, init: 0xFFFFFFFF, xorout: 0xFFFFFFFF}
	crc16Cfg = crcConfig{width: 16, poly: 0x1021, init: 0xFFFF, xorout: 0x0000}
	crc8Cfg  = crcConfig{width: 8, poly: 0x07, init: 0x00, xorout: 0x00}

	crc32Table = buildTable(crc32Cfg)
	crc16Table = buildTable(crc16Cfg)
	crc8Table  = buildTable(crc8Cfg)
)

// buildTable constructs a 256-entry MSB-first CRC table for the given
// width and polynomial, using the classic bit-at-a-time shift-and-XOR
// definition applied to each possible leading byte.
func buildTable(cfg crcConfig) [256]uint32 {
	var table [256]uint32
	topBit := uint32(1) << uint(cfg.width-1)
	mask := (uint32(1) << uint(cfg.width)) - 1
	polyShifted := cfg.poly
	for i := 0; i < 256; i++ {
		crc := uint32(i) << uint(cfg.width-8)
		for b := 0; b < 8; b++ {
			if crc&topBit != 0 {
				crc = (crc << 1) ^ polyShifted
			} else {
				crc <<= 1
			}
		}
		table[i] = crc & mask
	}
	return table
}

func runCRC(cfg crcConfig, table *[256]uint32, data []byte) uint32 {
	mask := (uint32(1) << uint(cfg.width)) - 1
	crc := cfg.init & mask
	shift := uint(cfg.width - 8)
	for _, b := range data {
		idx := byte((crc>>shift)&0xFF) ^ b
		crc = ((crc << 8) ^ table[idx]) & mask
	}
	return crc ^ cfg.xorout
}

// CRC32 computes the FS-1052 CRC-32 (poly 0x04C11DB7, init 0xFFFFFFFF,
// final XOR 0xFFFFFFFF, MSB-first) over data.
func CRC32(data []byte) uint32 {
	return runCRC(crc32Cfg, &crc32Table, data)
}

// AppendCRC32 appends the big-endian CRC-32 of data to data.
func AppendCRC32(data []byte) []byte {
	out := make([]byte, len(data)+4)
	copy(out, data)
	binary.BigEndian.PutUint32(out[len(data):], CRC32(data))
	return out
}

// VerifyCRC32 splits the trailing 4-byte CRC-32 off dataWithCRC and
// reports whether it matches the payload that precedes it.
func VerifyCRC32(dataWithCRC []byte) ([]byte, bool) {
	if len(dataWithCRC) < 4 {
		return nil, false
	}
	payload := dataWithCRC[:len(dataWithCRC)-4]
	expected := binary.BigEndian.Uint32(dataWithCRC[len(dataWithCRC)-4:])
	return payload, CRC32(payload) == expected
}

// CRC16 computes the AQC orderwire CRC-16 (poly 0x1021, init 0xFFFF, no
// final XOR, MSB-first).
func CRC16(data []byte) uint16 {
	return uint16(runCRC(crc16Cfg, &crc16Table, data))
}

// AppendCRC16 appends the big-endian CRC-16 of data to data.
func AppendCRC16(data []byte) []byte {
	out := make([]byte, len(data)+2)
	copy(out, data)
	binary.BigEndian.PutUint16(out[len(data):], CRC16(data))
	return out
}

// VerifyCRC16 splits the trailing 2-byte CRC-16 off dataWithCRC and
// reports whether it matches.
func VerifyCRC16(dataWithCRC []byte) ([]byte, bool) {
	if len(dataWithCRC) < 2 {
		return nil, false
	}
	payload := dataWithCRC[:len(dataWithCRC)-2]
	expected := binary.BigEndian.Uint16(dataWithCRC[len(dataWithCRC)-2:])
	return payload, CRC16(payload) == expected
}

// CRC8 computes the AQC orderwire CRC-8 (poly 0x07, init 0x00, no final
// XOR, MSB-first).
func CRC8(data []byte) uint8 {
	return uint8(runCRC(crc8Cfg, &crc8Table, data))
}

// AppendCRC8 appends the CRC-8 of data to data.
func AppendCRC8(data []byte) []byte {
	out := make([]byte, len(data)+1)
	copy(out, data)
	out[len(data)] = CRC8(data)
	return out
}

// VerifyCRC8 splits the trailing CRC-8 byte off dataWithCRC and reports
// whether it matches.
func VerifyCRC8(dataWithCRC []byte) ([]byte, bool) {
	if len(dataWithCRC) < 1 {
		return nil, false
	}
	payload := dataWithCRC[:len(dataWithCRC)-1]
	expected := dataWithCRC[len(dataWithCRC)-1]
	return payload, CRC8(payload) == expected
}
