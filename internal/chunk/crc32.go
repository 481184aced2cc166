package chunk

import "hash/crc32"

// ieeeTable is the IEEE 802.3 CRC32 table: polynomial 0xEDB88320, which is
// exactly what the standard library's crc32.IEEETable already implements
// (reflected form of 0x04C11DB7). There is no third-party replacement for
// the canonical CRC32 algorithm in the examples pack, so this stays on
// hash/crc32 rather than a hand-rolled table.
var ieeeTable = crc32.IEEETable

// CRC32 computes the IEEE-802.3 CRC32 of data: initial 0xFFFFFFFF, per-byte
// table update, final XOR 0xFFFFFFFF (crc32.Checksum folds all three in).
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, ieeeTable)
}

// VerifyCRC32 reports whether data's checksum matches expected.
func VerifyCRC32(data []byte, expected uint32) bool {
	return CRC32(data) == expected
}
