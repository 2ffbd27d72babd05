// Package wal implements the engine's append-only, CRC32-checked,
// fsync'd write-ahead log of state-changing ledger operations.
package wal

import (
	"encoding/binary"
	"hash/crc32"
)

// EntryType enumerates the state-changing operations the WAL records.
type EntryType uint8

const (
	EntryPositionOpen   EntryType = iota
	EntryPositionClose
	EntryPositionModify
	EntryOrderPlace
	EntryOrderCancel
	EntryBalanceChange
	EntryCheckpoint
)

// Magic is the fixed four-byte record marker, little-endian encoded as
// 0x48515457.
const Magic uint32 = 0x48515457

// headerSize is the fixed portion of a record before its payload:
// magic(4) + type(1) + length(4) + crc32(4).
const headerSize = 4 + 1 + 4 + 4

// crcTable implements IEEE 802.3 (polynomial 0xEDB88320, init 0xFFFFFFFF,
// final XOR 0xFFFFFFFF) — the same table the standard library's
// crc32.IEEE uses.
var crcTable = crc32.MakeTable(crc32.IEEE)

// encodeRecord produces the on-disk bytes for one record:
// [magic:u32 LE][type:u8][length:u32 LE][crc32:u32 LE][payload].
func encodeRecord(entryType EntryType, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))

	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(entryType)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[9:13], crc32.Checksum(payload, crcTable))
	copy(buf[13:], payload)

	return buf
}

// Record is a decoded WAL entry.
type Record struct {
	Type    EntryType
	Payload []byte
}

// crc32Checksum computes the same IEEE 802.3 checksum used when encoding,
// for verifying a decoded payload against its stored checksum field.
func crc32Checksum(payload []byte) uint32 {
	return crc32.Checksum(payload, crcTable)
}
