package ivf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/storage"
	"github.com/hupe1980/vecindex/vector"
)

// List record layouts (little-endian):
//
//	member:    kind u8 = 1 | seq u64 | id u64 | vector
//	tombstone: kind u8 = 2 | seq u64 | id u64
const (
	recMember    uint8 = 1
	recTombstone uint8 = 2

	recHeaderSize = 17
)

type record struct {
	kind uint8
	seq  uint64
	id   uint64
	vec  vector.Vector
}

func appendMember(dst []byte, seq, id uint64, v vector.Vector) []byte {
	dst = append(dst, recMember)
	dst = binary.LittleEndian.AppendUint64(dst, seq)
	dst = binary.LittleEndian.AppendUint64(dst, id)
	return vector.AppendBinary(dst, v)
}

func appendTombstone(dst []byte, seq, id uint64) []byte {
	dst = append(dst, recTombstone)
	dst = binary.LittleEndian.AppendUint64(dst, seq)
	return binary.LittleEndian.AppendUint64(dst, id)
}

// peekRecord decodes the header only.
func peekRecord(b []byte) (record, error) {
	if len(b) < recHeaderSize {
		return record{}, fmt.Errorf("ivf: record truncated (%d bytes): %w", len(b), pagestore.ErrCorrupt)
	}
	r := record{
		kind: b[0],
		seq:  binary.LittleEndian.Uint64(b[1:]),
		id:   binary.LittleEndian.Uint64(b[9:]),
	}
	if r.kind != recMember && r.kind != recTombstone {
		return record{}, fmt.Errorf("ivf: unknown record kind %d: %w", r.kind, pagestore.ErrCorrupt)
	}
	return r, nil
}

func decodeRecord(t vector.Type, b []byte) (record, error) {
	r, err := peekRecord(b)
	if err != nil || r.kind == recTombstone {
		return r, err
	}
	r.vec, err = vector.Unmarshal(t, b[recHeaderSize:])
	if err != nil {
		return record{}, fmt.Errorf("ivf: member %d: %w", r.id, err)
	}
	return r, nil
}

// Meta payload layout (little-endian):
//
//	version u8 | state u8 | vector type u8 | distance u8 | dim u32
//	numLists u32 | numProbes u32 | maxIterations u32 | tolerance f64
//	sampleSize u32 | seed u64 | clock u64
//	numLists x (head u32 | centroid vector)
const (
	metaVersion   = 1
	metaFixedSize = 48
)

type indexMeta struct {
	state     index.State
	opts      Options
	clock     uint64
	heads     []storage.PageID
	centroids []vector.Vector
}

func (m *indexMeta) encode() []byte {
	b := make([]byte, 0, metaFixedSize)
	b = append(b, metaVersion, uint8(m.state), uint8(m.opts.VectorType), uint8(m.opts.Distance))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.opts.Dimension))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.opts.NumLists))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.opts.NumProbes))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.opts.MaxIterations))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(m.opts.Tolerance))
	b = binary.LittleEndian.AppendUint32(b, uint32(m.opts.SampleSize))
	b = binary.LittleEndian.AppendUint64(b, m.opts.Seed)
	b = binary.LittleEndian.AppendUint64(b, m.clock)
	for i, head := range m.heads {
		b = binary.LittleEndian.AppendUint32(b, uint32(head))
		b = vector.AppendBinary(b, m.centroids[i])
	}
	return b
}

func decodeMeta(b []byte) (*indexMeta, error) {
	if len(b) < metaFixedSize {
		return nil, fmt.Errorf("ivf: meta payload truncated (%d bytes): %w", len(b), pagestore.ErrCorrupt)
	}
	if b[0] != metaVersion {
		return nil, fmt.Errorf("ivf: unsupported meta version %d: %w", b[0], pagestore.ErrCorrupt)
	}
	m := &indexMeta{state: index.State(b[1])}
	m.opts.VectorType = vector.Type(b[2])
	m.opts.Distance = distance.Kind(b[3])
	m.opts.Dimension = int(binary.LittleEndian.Uint32(b[4:]))
	m.opts.NumLists = int(binary.LittleEndian.Uint32(b[8:]))
	m.opts.NumProbes = int(binary.LittleEndian.Uint32(b[12:]))
	m.opts.MaxIterations = int(binary.LittleEndian.Uint32(b[16:]))
	m.opts.Tolerance = math.Float64frombits(binary.LittleEndian.Uint64(b[20:]))
	m.opts.SampleSize = int(binary.LittleEndian.Uint32(b[28:]))
	m.opts.Seed = binary.LittleEndian.Uint64(b[32:])
	m.clock = binary.LittleEndian.Uint64(b[40:])

	b = b[metaFixedSize:]
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, fmt.Errorf("ivf: list %d truncated: %w", len(m.heads), pagestore.ErrCorrupt)
		}
		head := storage.PageID(binary.LittleEndian.Uint32(b))
		b = b[4:]
		n := int(binary.LittleEndian.Uint32(b))
		if n > len(b) {
			return nil, fmt.Errorf("ivf: centroid %d truncated: %w", len(m.heads), pagestore.ErrCorrupt)
		}
		c, err := vector.Unmarshal(m.opts.VectorType, b[:n])
		if err != nil {
			return nil, fmt.Errorf("ivf: centroid %d: %w", len(m.heads), err)
		}
		m.heads = append(m.heads, head)
		m.centroids = append(m.centroids, c)
		b = b[n:]
	}
	if len(m.heads) != 0 && len(m.heads) != m.opts.NumLists {
		return nil, fmt.Errorf("ivf: meta holds %d lists, want %d: %w", len(m.heads), m.opts.NumLists, pagestore.ErrCorrupt)
	}
	return m, nil
}
