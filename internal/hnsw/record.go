package hnsw

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/vector"
)

// Node record layout (little-endian):
//
//	slot u32 | id u64 | seq u64 | level u8 | flags u8 | vector
//	per layer 0..level: count u16 | count x (slot u32 | dist f64)
const (
	nodeHeaderSize = 22
	neighborSize   = 12

	flagDeleted uint8 = 1 << 0
)

func encodeNode(dst []byte, n *node) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, n.slot)
	dst = binary.LittleEndian.AppendUint64(dst, n.id)
	dst = binary.LittleEndian.AppendUint64(dst, n.seq)
	dst = append(dst, uint8(n.level))

	var flags uint8
	if n.deleted.Load() {
		flags |= flagDeleted
	}
	dst = append(dst, flags)
	dst = vector.AppendBinary(dst, n.vec)

	for l := 0; l <= n.level; l++ {
		nb := n.neighbors(l)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(len(nb)))
		for _, e := range nb {
			dst = binary.LittleEndian.AppendUint32(dst, e.Slot)
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(e.Dist))
		}
	}
	return dst
}

func decodeNode(space *distance.Space, b []byte) (*node, error) {
	if len(b) < nodeHeaderSize+4 {
		return nil, fmt.Errorf("hnsw: node record truncated (%d bytes): %w", len(b), pagestore.ErrCorrupt)
	}
	slot := binary.LittleEndian.Uint32(b)
	id := binary.LittleEndian.Uint64(b[4:])
	seq := binary.LittleEndian.Uint64(b[12:])
	level := int(b[20])
	flags := b[21]

	b = b[nodeHeaderSize:]
	vlen := int(binary.LittleEndian.Uint32(b))
	if vlen > len(b) {
		return nil, fmt.Errorf("hnsw: node %d vector truncated: %w", slot, pagestore.ErrCorrupt)
	}
	vec, err := vector.Unmarshal(space.Type(), b[:vlen])
	if err != nil {
		return nil, fmt.Errorf("hnsw: node %d: %w", slot, err)
	}
	if err := space.Check(vec); err != nil {
		return nil, fmt.Errorf("hnsw: node %d: %w", slot, err)
	}
	b = b[vlen:]

	n := newNode(slot, id, seq, level, vec, space.NormSquared(vec))
	for l := 0; l <= level; l++ {
		if len(b) < 2 {
			return nil, fmt.Errorf("hnsw: node %d layer %d truncated: %w", slot, l, pagestore.ErrCorrupt)
		}
		cnt := int(binary.LittleEndian.Uint16(b))
		b = b[2:]
		if len(b) < cnt*neighborSize {
			return nil, fmt.Errorf("hnsw: node %d layer %d truncated: %w", slot, l, pagestore.ErrCorrupt)
		}
		nb := make([]Neighbor, cnt)
		for i := range nb {
			nb[i].Slot = binary.LittleEndian.Uint32(b)
			nb[i].Dist = math.Float64frombits(binary.LittleEndian.Uint64(b[4:]))
			b = b[neighborSize:]
		}
		n.setNeighbors(l, nb)
	}
	n.deleted.Store(flags&flagDeleted != 0)
	return n, nil
}

// Graph meta payload layout (little-endian):
//
//	version u8 | state u8 | vector type u8 | distance u8 | dim u32
//	m u16 | efConstruction u16 | efSearch u16 | maxLevel u8 | seed u64
//	hasEntry u8 | entry slot u32 | max layer u8 | next slot u32 | clock u64
const (
	metaVersion = 1
	metaSize    = 41
)

type graphMeta struct {
	state    index.State
	opts     Options
	hasEntry bool
	entry    uint32
	maxLayer int
	nextSlot uint32
	clock    uint64
}

func (m *graphMeta) encode() []byte {
	b := make([]byte, 0, metaSize)
	b = append(b, metaVersion, uint8(m.state), uint8(m.opts.VectorType), uint8(m.opts.Distance))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.opts.Dimension))
	b = binary.LittleEndian.AppendUint16(b, uint16(m.opts.M))
	b = binary.LittleEndian.AppendUint16(b, uint16(m.opts.EFConstruction))
	b = binary.LittleEndian.AppendUint16(b, uint16(m.opts.EFSearch))
	b = append(b, uint8(m.opts.MaxLevel))
	b = binary.LittleEndian.AppendUint64(b, m.opts.Seed)

	var has uint8
	if m.hasEntry {
		has = 1
	}
	b = append(b, has)
	b = binary.LittleEndian.AppendUint32(b, m.entry)
	b = append(b, uint8(m.maxLayer))
	b = binary.LittleEndian.AppendUint32(b, m.nextSlot)
	b = binary.LittleEndian.AppendUint64(b, m.clock)
	return b
}

func decodeMeta(b []byte) (*graphMeta, error) {
	if len(b) < metaSize {
		return nil, fmt.Errorf("hnsw: meta payload truncated (%d bytes): %w", len(b), pagestore.ErrCorrupt)
	}
	if b[0] != metaVersion {
		return nil, fmt.Errorf("hnsw: unsupported meta version %d: %w", b[0], pagestore.ErrCorrupt)
	}
	m := &graphMeta{state: index.State(b[1])}
	m.opts.VectorType = vector.Type(b[2])
	m.opts.Distance = distance.Kind(b[3])
	m.opts.Dimension = int(binary.LittleEndian.Uint32(b[4:]))
	m.opts.M = int(binary.LittleEndian.Uint16(b[8:]))
	m.opts.EFConstruction = int(binary.LittleEndian.Uint16(b[10:]))
	m.opts.EFSearch = int(binary.LittleEndian.Uint16(b[12:]))
	m.opts.MaxLevel = int(b[14])
	m.opts.Seed = binary.LittleEndian.Uint64(b[15:])
	m.hasEntry = b[23] == 1
	m.entry = binary.LittleEndian.Uint32(b[24:])
	m.maxLayer = int(b[28])
	m.nextSlot = binary.LittleEndian.Uint32(b[29:])
	m.clock = binary.LittleEndian.Uint64(b[33:])
	return m, nil
}
