// Package hash provides the CRC32-Castagnoli checksums that protect pages.
//
// Go's hash/crc32 uses the SSE4.2 and ARM CRC instructions when available.
package hash
