package pagestore

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/vecindex/internal/hash"
	"github.com/hupe1980/vecindex/storage"
)

// HeaderSize is the size of the page header:
//
//	crc32c u32 | type u8 | flags u8 | count u16 | lower u16 | upper u16 | next u32 | lsn u64
const HeaderSize = 24

const (
	offChecksum = 0
	offType     = 4
	offFlags    = 5
	offCount    = 6
	offLower    = 8
	offUpper    = 10
	offNext     = 12
	offLSN      = 16
)

// PageType identifies the layout of a page.
type PageType uint8

const (
	TypeUnused PageType = iota
	TypeMeta
	TypeHeap
	TypeChain
	TypeOverflow
	TypeFree
)

func (t PageType) String() string {
	switch t {
	case TypeUnused:
		return "unused"
	case TypeMeta:
		return "meta"
	case TypeHeap:
		return "heap"
	case TypeChain:
		return "chain"
	case TypeOverflow:
		return "overflow"
	case TypeFree:
		return "free"
	default:
		return fmt.Sprintf("PageType(%d)", uint8(t))
	}
}

// Page is a page image. Header accessors and the slotted record layout
// operate on it in place.
type Page []byte

// Init resets p to an empty page of type typ.
func Init(p Page, typ PageType) {
	clear(p)
	p[offType] = byte(typ)
	p.setLower(HeaderSize)
	p.setUpper(len(p))
}

func (p Page) Type() PageType { return PageType(p[offType]) }

func (p Page) Flags() uint8 { return p[offFlags] }

func (p Page) SetFlags(f uint8) { p[offFlags] = f }

// Count is the number of line pointers on a slotted page, or the number of
// payload bytes on an overflow page.
func (p Page) Count() int { return int(binary.LittleEndian.Uint16(p[offCount:])) }

func (p Page) setCount(n int) { binary.LittleEndian.PutUint16(p[offCount:], uint16(n)) }

func (p Page) lower() int { return int(binary.LittleEndian.Uint16(p[offLower:])) }

func (p Page) setLower(v int) { binary.LittleEndian.PutUint16(p[offLower:], uint16(v)) }

// upper is stored modulo 65536; 0 stands for the end of a 64 KiB page.
func (p Page) upper() int {
	u := int(binary.LittleEndian.Uint16(p[offUpper:]))
	if u == 0 {
		return len(p)
	}
	return u
}

func (p Page) setUpper(v int) { binary.LittleEndian.PutUint16(p[offUpper:], uint16(v)) }

// Next returns the next page of a chain or overflow sequence; 0 ends it.
func (p Page) Next() storage.PageID {
	return storage.PageID(binary.LittleEndian.Uint32(p[offNext:]))
}

func (p Page) SetNext(id storage.PageID) { binary.LittleEndian.PutUint32(p[offNext:], uint32(id)) }

func (p Page) LSN() uint64 { return binary.LittleEndian.Uint64(p[offLSN:]) }

// Seal stamps lsn and the checksum. The checksum covers the whole page with
// the checksum field zeroed.
func (p Page) Seal(lsn uint64) {
	binary.LittleEndian.PutUint64(p[offLSN:], lsn)
	binary.LittleEndian.PutUint32(p[offChecksum:], hash.CRC32CMasked(p, offChecksum, 4))
}

// Verify checks the page checksum.
func (p Page) Verify() error {
	want := binary.LittleEndian.Uint32(p[offChecksum:])
	if got := hash.CRC32CMasked(p, offChecksum, 4); got != want {
		return fmt.Errorf("%w: stored %08x, computed %08x", ErrChecksum, want, got)
	}
	return nil
}
