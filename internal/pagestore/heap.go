package pagestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/hupe1980/vecindex/storage"
)

// RID identifies a record in the heap.
type RID struct {
	Page storage.PageID
	Slot uint16
}

func (r RID) String() string { return fmt.Sprintf("(%d,%d)", r.Page, r.Slot) }

type fsmEntry struct {
	free int
	page storage.PageID
}

func fsmLess(a, b fsmEntry) bool {
	if a.free != b.free {
		return a.free < b.free
	}
	return a.page < b.page
}

// Heap is an unordered record file over the store's heap pages. Placement
// uses a free-space map ordered by free bytes, so a record goes to the
// fullest page that still has room.
type Heap struct {
	s *Store

	mu    sync.Mutex
	fsm   *btree.BTreeG[fsmEntry]
	space map[storage.PageID]int
}

// OpenHeap builds the heap over all heap pages of s.
func OpenHeap(ctx context.Context, s *Store) (*Heap, error) {
	h := &Heap{
		s:     s,
		fsm:   btree.NewBTreeG(fsmLess),
		space: make(map[storage.PageID]int),
	}
	err := s.ForEachPage(ctx, TypeHeap, func(id storage.PageID, p Page) error {
		h.setSpace(id, p.ReclaimableSpace())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Heap) setSpace(id storage.PageID, free int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.space[id]; ok {
		h.fsm.Delete(fsmEntry{free: old, page: id})
	}
	h.space[id] = free
	h.fsm.Set(fsmEntry{free: free, page: id})
}

func (h *Heap) dropSpace(id storage.PageID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.space[id]; ok {
		h.fsm.Delete(fsmEntry{free: old, page: id})
		delete(h.space, id)
	}
}

// pick returns a page believed to have room for need bytes, skipping the
// pages in tried.
func (h *Heap) pick(need int, tried map[storage.PageID]bool) (storage.PageID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var (
		found storage.PageID
		ok    bool
	)
	h.fsm.Ascend(fsmEntry{free: need}, func(e fsmEntry) bool {
		if tried[e.page] {
			return true
		}
		found, ok = e.page, true
		return false
	})
	return found, ok
}

// Pages returns the number of heap pages.
func (h *Heap) Pages() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.space)
}

func (h *Heap) insertStored(ctx context.Context, rec []byte) (RID, error) {
	var tried map[storage.PageID]bool
	for {
		id, ok := h.pick(len(rec), tried)
		if !ok {
			var err error
			if id, err = h.s.Allocate(ctx, TypeHeap); err != nil {
				return RID{}, err
			}
		}

		var (
			slot int
			free int
		)
		err := h.s.Update(ctx, id, func(p Page) error {
			if p.Type() != TypeHeap {
				return errNoRoom
			}
			var fits bool
			if slot, fits = p.InsertRecord(rec); !fits {
				free = p.ReclaimableSpace()
				return errNoRoom
			}
			free = p.ReclaimableSpace()
			return nil
		})
		switch {
		case err == nil:
			h.setSpace(id, free)
			return RID{Page: id, Slot: uint16(slot)}, nil
		case errors.Is(err, errNoRoom):
			if !ok {
				return RID{}, fmt.Errorf("%w: %d byte record does not fit an empty page", ErrCorrupt, len(rec))
			}
			if tried == nil {
				tried = make(map[storage.PageID]bool)
			}
			tried[id] = true
			if free > 0 {
				h.setSpace(id, free)
			} else {
				h.dropSpace(id)
			}
		default:
			return RID{}, err
		}
	}
}

// Insert stores data and returns its record id.
func (h *Heap) Insert(ctx context.Context, data []byte) (RID, error) {
	rec, err := h.s.encodeRecord(ctx, data)
	if err != nil {
		return RID{}, err
	}
	rid, err := h.insertStored(ctx, rec)
	if err != nil {
		_ = h.s.releaseRecord(ctx, rec)
		return RID{}, err
	}
	return rid, nil
}

func (h *Heap) stored(ctx context.Context, rid RID) ([]byte, error) {
	var rec []byte
	err := h.s.View(ctx, rid.Page, func(p Page) error {
		if p.Type() != TypeHeap {
			return fmt.Errorf("%w: %s", ErrNoRecord, rid)
		}
		r, ok := p.Record(int(rid.Slot))
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoRecord, rid)
		}
		rec = append([]byte(nil), r...)
		return nil
	})
	return rec, err
}

// Get returns the data of record rid.
func (h *Heap) Get(ctx context.Context, rid RID) ([]byte, error) {
	rec, err := h.stored(ctx, rid)
	if err != nil {
		return nil, err
	}
	return h.s.decodeRecord(ctx, rec)
}

// Update replaces the data of record rid. The record keeps its id when the
// new data fits its page; otherwise it moves and the new id is returned.
func (h *Heap) Update(ctx context.Context, rid RID, data []byte) (RID, error) {
	rec, err := h.s.encodeRecord(ctx, data)
	if err != nil {
		return RID{}, err
	}

	var (
		old   []byte
		moved bool
		free  int
	)
	err = h.s.Update(ctx, rid.Page, func(p Page) error {
		if p.Type() != TypeHeap {
			return fmt.Errorf("%w: %s", ErrNoRecord, rid)
		}
		r, ok := p.Record(int(rid.Slot))
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoRecord, rid)
		}
		old = append([]byte(nil), r...)
		if !p.UpdateRecord(int(rid.Slot), rec) {
			p.DeleteRecord(int(rid.Slot))
			moved = true
		}
		free = p.ReclaimableSpace()
		return nil
	})
	if err != nil {
		_ = h.s.releaseRecord(ctx, rec)
		return RID{}, err
	}
	h.setSpace(rid.Page, free)

	newRID := rid
	if moved {
		if newRID, err = h.insertStored(ctx, rec); err != nil {
			_ = h.s.releaseRecord(ctx, rec)
			return RID{}, err
		}
	}
	return newRID, h.s.releaseRecord(ctx, old)
}

// Delete removes record rid. A page left empty is returned to the store.
func (h *Heap) Delete(ctx context.Context, rid RID) error {
	var (
		old   []byte
		empty bool
		free  int
	)
	err := h.s.Update(ctx, rid.Page, func(p Page) error {
		if p.Type() != TypeHeap {
			return fmt.Errorf("%w: %s", ErrNoRecord, rid)
		}
		r, ok := p.Record(int(rid.Slot))
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoRecord, rid)
		}
		old = append([]byte(nil), r...)
		p.DeleteRecord(int(rid.Slot))
		empty = p.Count() == 0
		free = p.ReclaimableSpace()
		return nil
	})
	if err != nil {
		return err
	}
	if err := h.s.releaseRecord(ctx, old); err != nil {
		return err
	}

	if empty {
		h.dropSpace(rid.Page)
		freed, err := h.s.FreeIf(ctx, rid.Page, func(p Page) bool {
			return p.Type() == TypeHeap && p.Count() == 0
		})
		if err != nil {
			return err
		}
		if freed {
			return nil
		}
	}
	h.setSpace(rid.Page, free)
	return nil
}

// Scan calls fn for every record in page and slot order. Records inserted
// or deleted during the scan may or may not be seen.
func (h *Heap) Scan(ctx context.Context, fn func(rid RID, data []byte) error) error {
	type stored struct {
		slot int
		rec  []byte
	}
	return h.s.ForEachPageIDs(ctx, TypeHeap, func(id storage.PageID) error {
		var recs []stored
		err := h.s.View(ctx, id, func(p Page) error {
			if p.Type() != TypeHeap {
				return nil
			}
			p.Slots(func(slot int, rec []byte) bool {
				recs = append(recs, stored{slot, append([]byte(nil), rec...)})
				return true
			})
			return nil
		})
		if err != nil {
			return err
		}
		for _, r := range recs {
			data, err := h.s.decodeRecord(ctx, r.rec)
			if err != nil {
				return storageErr("scan", id, err)
			}
			if err := fn(RID{Page: id, Slot: uint16(r.slot)}, data); err != nil {
				return err
			}
		}
		return nil
	})
}
