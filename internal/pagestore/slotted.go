package pagestore

import "encoding/binary"

// Line pointers follow the header: offset u16 | length u16 per slot. A free
// slot has offset 0. Record bodies grow down from the end of the page.
const slotSize = 4

// MaxRecordSize returns the largest record an empty page of size pageSize
// can hold inline.
func MaxRecordSize(pageSize int) int {
	return pageSize - HeaderSize - slotSize
}

func (p Page) slot(i int) (off, n int) {
	b := p[HeaderSize+i*slotSize:]
	return int(binary.LittleEndian.Uint16(b)), int(binary.LittleEndian.Uint16(b[2:]))
}

func (p Page) setSlot(i, off, n int) {
	b := p[HeaderSize+i*slotSize:]
	binary.LittleEndian.PutUint16(b, uint16(off))
	binary.LittleEndian.PutUint16(b[2:], uint16(n))
}

func (p Page) freeSlot() int {
	for i := 0; i < p.Count(); i++ {
		if off, _ := p.slot(i); off == 0 {
			return i
		}
	}
	return -1
}

// FreeSpace returns the largest record that can be inserted without
// compaction.
func (p Page) FreeSpace() int {
	free := p.upper() - p.lower()
	if p.freeSlot() < 0 {
		free -= slotSize
	}
	return max(free, 0)
}

// ReclaimableSpace returns the space available for one more record after
// Compact.
func (p Page) ReclaimableSpace() int {
	free := len(p) - HeaderSize - p.Count()*slotSize - p.usedBytes()
	if p.freeSlot() < 0 {
		free -= slotSize
	}
	return max(free, 0)
}

// InsertRecord stores rec and returns its slot. Free slots are reused. The
// page is compacted if that makes room; ok is false if rec does not fit.
func (p Page) InsertRecord(rec []byte) (slot int, ok bool) {
	if len(rec) == 0 || len(rec) > p.ReclaimableSpace() {
		return 0, false
	}
	if len(rec) > p.FreeSpace() {
		p.Compact()
	}

	slot = p.freeSlot()
	if slot < 0 {
		slot = p.Count()
		p.setCount(slot + 1)
		p.setLower(p.lower() + slotSize)
	}

	off := p.upper() - len(rec)
	copy(p[off:], rec)
	p.setUpper(off)
	p.setSlot(slot, off, len(rec))
	return slot, true
}

// Record returns the record in slot, aliasing the page.
func (p Page) Record(slot int) ([]byte, bool) {
	if slot < 0 || slot >= p.Count() {
		return nil, false
	}
	off, n := p.slot(slot)
	if off == 0 {
		return nil, false
	}
	return p[off : off+n], true
}

// DeleteRecord frees slot. Trailing free slots are trimmed.
func (p Page) DeleteRecord(slot int) bool {
	if _, ok := p.Record(slot); !ok {
		return false
	}
	p.setSlot(slot, 0, 0)

	n := p.Count()
	for n > 0 {
		if off, _ := p.slot(n - 1); off != 0 {
			break
		}
		n--
	}
	p.setLower(HeaderSize + n*slotSize)
	p.setCount(n)
	if n == 0 {
		p.setUpper(len(p))
	}
	return true
}

// UpdateRecord replaces the record in slot, keeping the slot number. It
// reports false if the new record does not fit on this page; the old
// record is then left unchanged.
func (p Page) UpdateRecord(slot int, rec []byte) bool {
	old, ok := p.Record(slot)
	if !ok || len(rec) == 0 {
		return false
	}
	off, _ := p.slot(slot)
	if len(rec) <= len(old) {
		copy(p[off:], rec)
		p.setSlot(slot, off, len(rec))
		return true
	}

	avail := len(p) - HeaderSize - p.Count()*slotSize - (p.usedBytes() - len(old))
	if len(rec) > avail {
		return false
	}
	p.setSlot(slot, 0, 0)
	p.Compact()
	off = p.upper() - len(rec)
	copy(p[off:], rec)
	p.setUpper(off)
	p.setSlot(slot, off, len(rec))
	return true
}

func (p Page) usedBytes() int {
	used := 0
	for i := 0; i < p.Count(); i++ {
		if off, n := p.slot(i); off != 0 {
			used += n
		}
	}
	return used
}

// Compact moves record bodies to the end of the page, closing the gaps
// left by deleted and shrunk records. Slot numbers are unchanged.
func (p Page) Compact() {
	base := p.upper()
	bodies := append([]byte(nil), p[base:]...)

	upper := len(p)
	for i := 0; i < p.Count(); i++ {
		off, n := p.slot(i)
		if off == 0 {
			continue
		}
		upper -= n
		copy(p[upper:], bodies[off-base:off-base+n])
		p.setSlot(i, upper, n)
	}
	p.setUpper(upper)
}

// Slots calls fn for every live record in slot order.
func (p Page) Slots(fn func(slot int, rec []byte) bool) {
	for i := 0; i < p.Count(); i++ {
		off, n := p.slot(i)
		if off == 0 {
			continue
		}
		if !fn(i, p[off:off+n]) {
			return
		}
	}
}
