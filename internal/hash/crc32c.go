package hash

import (
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var zeros [8]byte

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// CRC32CMasked computes the CRC32-Castagnoli checksum of data as if the
// n bytes at off were zero (n <= 8). Pages store their own checksum inside
// the checksummed range; masking avoids copying the page to verify it.
func CRC32CMasked(data []byte, off, n int) uint32 {
	crc := crc32.Update(0, crc32cTable, data[:off])
	crc = crc32.Update(crc, crc32cTable, zeros[:n])
	return crc32.Update(crc, crc32cTable, data[off+n:])
}
