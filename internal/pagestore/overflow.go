package pagestore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/conv"
	"github.com/hupe1980/vecindex/storage"
)

// Record bodies on heap and chain pages start with a tag byte. Records too
// large for a page are stored as a stub pointing at an overflow sequence.
const (
	tagInline   byte = 1
	tagOverflow byte = 2

	stubSize = 9 // tag | total length u32 | first page u32
)

func (s *Store) overflowCap() int { return s.pageSize - HeaderSize }

// encodeRecord returns the stored form of data, writing overflow pages if
// it does not fit a page.
func (s *Store) encodeRecord(ctx context.Context, data []byte) ([]byte, error) {
	if 1+len(data) <= MaxRecordSize(s.pageSize) {
		rec := make([]byte, 1+len(data))
		rec[0] = tagInline
		copy(rec[1:], data)
		return rec, nil
	}
	total, err := conv.IntToUint32(len(data))
	if err != nil {
		return nil, index.InvalidParameter("record", "%v", err)
	}
	first, err := s.writeOverflow(ctx, data)
	if err != nil {
		return nil, err
	}
	rec := make([]byte, stubSize)
	rec[0] = tagOverflow
	binary.LittleEndian.PutUint32(rec[1:], total)
	binary.LittleEndian.PutUint32(rec[5:], uint32(first))
	return rec, nil
}

// decodeRecord returns the data of a stored record. The result never
// aliases rec.
func (s *Store) decodeRecord(ctx context.Context, rec []byte) ([]byte, error) {
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrCorrupt)
	}
	switch rec[0] {
	case tagInline:
		return append([]byte(nil), rec[1:]...), nil
	case tagOverflow:
		if len(rec) != stubSize {
			return nil, fmt.Errorf("%w: overflow stub of %d bytes", ErrCorrupt, len(rec))
		}
		total := int(binary.LittleEndian.Uint32(rec[1:]))
		first := storage.PageID(binary.LittleEndian.Uint32(rec[5:]))
		return s.readOverflow(ctx, first, total)
	default:
		return nil, fmt.Errorf("%w: record tag %d", ErrCorrupt, rec[0])
	}
}

// releaseRecord frees the overflow pages of a stored record, if any.
func (s *Store) releaseRecord(ctx context.Context, rec []byte) error {
	if len(rec) == stubSize && rec[0] == tagOverflow {
		return s.freeOverflow(ctx, storage.PageID(binary.LittleEndian.Uint32(rec[5:])))
	}
	return nil
}

func (s *Store) writeOverflow(ctx context.Context, data []byte) (storage.PageID, error) {
	n := (len(data) + s.overflowCap() - 1) / s.overflowCap()
	ids := make([]storage.PageID, 0, n)
	for range n {
		id, err := s.allocate(ctx)
		if err != nil {
			for _, id := range ids {
				s.release(id)
			}
			return 0, err
		}
		ids = append(ids, id)
	}

	for i, id := range ids {
		chunk := data[i*s.overflowCap():]
		if len(chunk) > s.overflowCap() {
			chunk = chunk[:s.overflowCap()]
		}
		p := make(Page, s.pageSize)
		Init(p, TypeOverflow)
		p.setCount(len(chunk))
		copy(p[HeaderSize:], chunk)
		if i+1 < len(ids) {
			p.SetNext(ids[i+1])
		}
		if err := s.writeNew(ctx, id, p); err != nil {
			// writeNew released id; the pages before it were written and
			// are freed, the ones after it were never written.
			for _, prev := range ids[:i] {
				_ = s.Free(ctx, prev)
			}
			for _, rest := range ids[i+1:] {
				s.release(rest)
			}
			return 0, err
		}
	}
	return ids[0], nil
}

func (s *Store) readOverflow(ctx context.Context, first storage.PageID, total int) ([]byte, error) {
	out := make([]byte, 0, total)
	for id := first; len(out) < total; {
		if id == 0 {
			return nil, storageErr("overflow", first, fmt.Errorf("%w: overflow sequence ends after %d of %d bytes", ErrCorrupt, len(out), total))
		}
		var next storage.PageID
		err := s.View(ctx, id, func(p Page) error {
			if p.Type() != TypeOverflow {
				return fmt.Errorf("%w: page %d has type %s, want overflow", ErrCorrupt, id, p.Type())
			}
			n := p.Count()
			if n > s.overflowCap() {
				return fmt.Errorf("%w: overflow page %d holds %d bytes", ErrCorrupt, id, n)
			}
			out = append(out, p[HeaderSize:HeaderSize+n]...)
			next = p.Next()
			return nil
		})
		if err != nil {
			return nil, storageErr("overflow", id, err)
		}
		id = next
	}
	if len(out) != total {
		return nil, storageErr("overflow", first, fmt.Errorf("%w: overflow holds %d bytes, want %d", ErrCorrupt, len(out), total))
	}
	return out, nil
}

func (s *Store) freeOverflow(ctx context.Context, first storage.PageID) error {
	for id := first; id != 0; {
		var next storage.PageID
		err := s.View(ctx, id, func(p Page) error {
			if p.Type() != TypeOverflow {
				return fmt.Errorf("%w: page %d has type %s, want overflow", ErrCorrupt, id, p.Type())
			}
			next = p.Next()
			return nil
		})
		if err != nil {
			return storageErr("overflow", id, err)
		}
		if err := s.Free(ctx, id); err != nil {
			return err
		}
		id = next
	}
	return nil
}
