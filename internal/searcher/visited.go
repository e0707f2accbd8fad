package searcher

import "github.com/bits-and-blooms/bitset"

// dirtyLimit bounds the dirty list; past it Reset clears the whole set.
const dirtyLimit = 4096

// VisitedSet tracks visited ids using a bitset and a dirty list for fast reset.
type VisitedSet struct {
	bits  *bitset.BitSet
	dirty []uint
}

// NewVisitedSet creates a visited set sized for capacity ids. It grows on
// demand.
func NewVisitedSet(capacity int) *VisitedSet {
	return &VisitedSet{
		bits:  bitset.New(uint(capacity)),
		dirty: make([]uint, 0, 128),
	}
}

// Visit marks id and reports whether it was unvisited before.
func (v *VisitedSet) Visit(id uint64) bool {
	u := uint(id)
	if v.bits.Test(u) {
		return false
	}
	v.bits.Set(u)
	if len(v.dirty) < dirtyLimit {
		v.dirty = append(v.dirty, u)
	}
	return true
}

// Visited returns true if id has been visited.
func (v *VisitedSet) Visited(id uint64) bool {
	return v.bits.Test(uint(id))
}

// Reset clears all visited marks.
func (v *VisitedSet) Reset() {
	if len(v.dirty) < dirtyLimit {
		for _, u := range v.dirty {
			v.bits.Clear(u)
		}
	} else {
		v.bits.ClearAll()
	}
	v.dirty = v.dirty[:0]
}
