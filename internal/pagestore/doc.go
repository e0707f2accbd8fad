// Package pagestore lays out index data on a storage.Device.
//
// Every page starts with a 24-byte header (checksum, type, flags, count,
// lower, upper, next, lsn). The checksum is a CRC32C over the page with the
// checksum field zeroed and is verified on every device read.
//
// Heap and chain pages use a slotted layout: line pointers grow up from the
// header and record bodies grow down from the end of the page. Records that
// do not fit a page are stored as a stub that points to a sequence of
// overflow pages.
//
// On top of the pages the package provides:
//
//   - Store: page allocation with a free list, per-page latches, a
//     write-through page cache and the meta page (page 0).
//   - Heap: an unordered record file addressed by RID, used by the graph
//     engine for its nodes.
//   - Chain: an append-only list of pages, used by the cluster engine for
//     its inverted lists.
//
// A goroutine holds at most one page latch at a time, except when a chain
// links a new tail page: the old tail is latched before the new page.
package pagestore
