package hnsw

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/vector"
)

// Neighbor is an edge with its cached distance.
type Neighbor struct {
	Slot uint32
	Dist float64
}

// node is a graph vertex. Identity is the slot; vec, norm, level and seq
// are immutable after creation.
type node struct {
	slot  uint32
	id    uint64
	seq   uint64
	level int
	vec   vector.Vector
	norm  float64
	size  int64

	// mu serializes neighbor list and record updates.
	mu  sync.Mutex
	rid pagestore.RID
	// gone is set once vacuum deleted the record.
	gone bool

	links   []atomic.Pointer[[]Neighbor]
	deleted atomic.Bool
	// ready is set once the node is linked at all its layers.
	ready atomic.Bool
}

func newNode(slot uint32, id, seq uint64, level int, vec vector.Vector, norm float64) *node {
	return &node{
		slot:  slot,
		id:    id,
		seq:   seq,
		level: level,
		vec:   vec,
		norm:  norm,
		links: make([]atomic.Pointer[[]Neighbor], level+1),
	}
}

// neighbors returns the current snapshot of the layer's list. The slice
// must not be modified.
func (n *node) neighbors(level int) []Neighbor {
	if level > n.level {
		return nil
	}
	p := n.links[level].Load()
	if p == nil {
		return nil
	}
	return *p
}

// setNeighbors publishes a new list. Callers hold n.mu.
func (n *node) setNeighbors(level int, nb []Neighbor) {
	n.links[level].Store(&nb)
}

func (n *node) live() bool { return n.ready.Load() && !n.deleted.Load() }

func hasNeighbor(list []Neighbor, slot uint32) bool {
	for _, nb := range list {
		if nb.Slot == slot {
			return true
		}
	}
	return false
}

const (
	// Slot segments avoid copying the table on growth.
	segmentBits = 12
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
)

type nodeSegment [segmentSize]atomic.Pointer[node]

// slotTable maps slots to nodes. Lookups are lock-free.
type slotTable struct {
	segs atomic.Pointer[[]*nodeSegment]
	mu   sync.Mutex // protects growth
}

func (t *slotTable) get(slot uint32) *node {
	segs := t.segs.Load()
	if segs == nil {
		return nil
	}
	i := int(slot >> segmentBits)
	if i >= len(*segs) {
		return nil
	}
	return (*segs)[i][slot&segmentMask].Load()
}

func (t *slotTable) set(slot uint32, n *node) {
	t.grow(slot)
	segs := t.segs.Load()
	(*segs)[slot>>segmentBits][slot&segmentMask].Store(n)
}

func (t *slotTable) clear(slot uint32) {
	segs := t.segs.Load()
	if segs == nil || int(slot>>segmentBits) >= len(*segs) {
		return
	}
	(*segs)[slot>>segmentBits][slot&segmentMask].Store(nil)
}

func (t *slotTable) grow(slot uint32) {
	i := int(slot >> segmentBits)

	segs := t.segs.Load()
	if segs != nil && i < len(*segs) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var cur []*nodeSegment
	if segs = t.segs.Load(); segs != nil {
		cur = *segs
	}
	if i < len(cur) {
		return
	}
	// Readers holding the old slice still see the same segments.
	next := make([]*nodeSegment, i+1)
	copy(next, cur)
	for j := len(cur); j <= i; j++ {
		next[j] = new(nodeSegment)
	}
	t.segs.Store(&next)
}

// forEach calls fn for every occupied slot in ascending order until fn
// returns false.
func (t *slotTable) forEach(fn func(n *node) bool) {
	segs := t.segs.Load()
	if segs == nil {
		return
	}
	for _, seg := range *segs {
		for j := range seg {
			if n := seg[j].Load(); n != nil && !fn(n) {
				return
			}
		}
	}
}
