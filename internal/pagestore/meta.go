package pagestore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/conv"
	"github.com/hupe1980/vecindex/storage"
)

const (
	metaPage storage.PageID = 0

	metaMagic   uint32 = 0x58444956 // "VIDX"
	metaVersion uint16 = 1

	// magic u32 | version u16 | page size u32 | engine u8 | payload len u32 | overflow u32
	metaFixedSize = 19
)

// EngineKind records which engine owns a store.
type EngineKind uint8

const (
	EngineNone EngineKind = iota
	EngineGraph
	EngineCluster
)

func (e EngineKind) String() string {
	switch e {
	case EngineNone:
		return "none"
	case EngineGraph:
		return "hnsw"
	case EngineCluster:
		return "ivfflat"
	default:
		return fmt.Sprintf("EngineKind(%d)", uint8(e))
	}
}

// Meta is the content of the meta page. Payload is engine-defined; payloads
// larger than the meta page spill into overflow pages.
type Meta struct {
	Engine  EngineKind
	Payload []byte
}

func (s *Store) metaInlineCap() int {
	return s.pageSize - HeaderSize - metaFixedSize
}

// Meta returns a copy of the meta page content.
func (s *Store) Meta() Meta {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return Meta{Engine: s.meta.Engine, Payload: append([]byte(nil), s.meta.Payload...)}
}

// SetMeta replaces the meta page content.
func (s *Store) SetMeta(ctx context.Context, m Meta) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if err := s.writeMeta(ctx, m); err != nil {
		return err
	}
	s.meta = Meta{Engine: m.Engine, Payload: append([]byte(nil), m.Payload...)}
	return nil
}

func (s *Store) writeMeta(ctx context.Context, m Meta) error {
	length, err := conv.IntToUint32(len(m.Payload))
	if err != nil {
		return index.InvalidParameter("meta", "%v", err)
	}
	var overflow storage.PageID
	if len(m.Payload) > s.metaInlineCap() {
		first, err := s.writeOverflow(ctx, m.Payload)
		if err != nil {
			return err
		}
		overflow = first
	}

	var oldOverflow storage.PageID
	l := s.latches.get(metaPage)
	l.Lock()
	if s.dev.NumPages() > 0 && s.lsn.Load() > 0 {
		if old, err := s.read(ctx, metaPage); err == nil {
			oldOverflow = Page(old).metaOverflow()
		}
	}

	p := make(Page, s.pageSize)
	Init(p, TypeMeta)
	b := p[HeaderSize:]
	binary.LittleEndian.PutUint32(b[0:], metaMagic)
	binary.LittleEndian.PutUint16(b[4:], metaVersion)
	binary.LittleEndian.PutUint32(b[6:], uint32(s.pageSize))
	b[10] = byte(m.Engine)
	binary.LittleEndian.PutUint32(b[11:], length)
	binary.LittleEndian.PutUint32(b[15:], uint32(overflow))
	if overflow == 0 {
		copy(b[metaFixedSize:], m.Payload)
	}
	err = s.write(ctx, metaPage, p)
	l.Unlock()

	if err != nil {
		if overflow != 0 {
			_ = s.freeOverflow(ctx, overflow)
		}
		return err
	}
	if oldOverflow != 0 {
		return s.freeOverflow(ctx, oldOverflow)
	}
	return nil
}

func (p Page) metaOverflow() storage.PageID {
	return storage.PageID(binary.LittleEndian.Uint32(p[HeaderSize+15:]))
}

func (s *Store) readMeta(ctx context.Context) (Meta, error) {
	var (
		m        Meta
		length   int
		overflow storage.PageID
	)
	err := s.View(ctx, metaPage, func(p Page) error {
		if p.Type() != TypeMeta {
			return fmt.Errorf("%w: page 0 has type %s", ErrCorrupt, p.Type())
		}
		b := p[HeaderSize:]
		if magic := binary.LittleEndian.Uint32(b[0:]); magic != metaMagic {
			return fmt.Errorf("%w: bad magic %08x", ErrCorrupt, magic)
		}
		if v := binary.LittleEndian.Uint16(b[4:]); v != metaVersion {
			return fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, v)
		}
		if ps := int(binary.LittleEndian.Uint32(b[6:])); ps != s.pageSize {
			return fmt.Errorf("%w: formatted with page size %d, device has %d", ErrCorrupt, ps, s.pageSize)
		}
		m.Engine = EngineKind(b[10])
		length = int(binary.LittleEndian.Uint32(b[11:]))
		overflow = storage.PageID(binary.LittleEndian.Uint32(b[15:]))
		if overflow == 0 {
			if length > s.metaInlineCap() {
				return fmt.Errorf("%w: meta payload length %d", ErrCorrupt, length)
			}
			m.Payload = append([]byte(nil), b[metaFixedSize:metaFixedSize+length]...)
		}
		return nil
	})
	if err != nil {
		return Meta{}, storageErr("meta", metaPage, err)
	}
	if overflow != 0 {
		payload, err := s.readOverflow(ctx, overflow, length)
		if err != nil {
			return Meta{}, err
		}
		m.Payload = payload
	}
	return m, nil
}
