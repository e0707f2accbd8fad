package pagestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/vecindex/storage"
)

// Chain is an append-only singly linked list of pages holding records.
// The chain is identified by its head page, which callers persist.
type Chain struct {
	s *Store

	mu    sync.Mutex
	head  storage.PageID
	tail  storage.PageID
	pages int
}

// NewChain allocates an empty chain.
func NewChain(ctx context.Context, s *Store) (*Chain, error) {
	head, err := s.Allocate(ctx, TypeChain)
	if err != nil {
		return nil, err
	}
	return &Chain{s: s, head: head, tail: head, pages: 1}, nil
}

// OpenChain opens the chain starting at head.
func OpenChain(ctx context.Context, s *Store, head storage.PageID) (*Chain, error) {
	c := &Chain{s: s, head: head}
	err := c.walk(ctx, func(id storage.PageID, _ Page) error {
		c.tail = id
		c.pages++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Head returns the first page of the chain.
func (c *Chain) Head() storage.PageID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// Pages returns the number of pages in the chain.
func (c *Chain) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages
}

// walk visits every page from head, each under its shared latch.
func (c *Chain) walk(ctx context.Context, fn func(id storage.PageID, p Page) error) error {
	seen := 0
	for id := c.head; id != 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen++; uint32(seen) > c.s.dev.NumPages() {
			return storageErr("chain", c.head, fmt.Errorf("%w: chain from page %d has a cycle", ErrCorrupt, c.head))
		}
		var next storage.PageID
		err := c.s.View(ctx, id, func(p Page) error {
			if p.Type() != TypeChain {
				return fmt.Errorf("%w: page %d has type %s, want chain", ErrCorrupt, id, p.Type())
			}
			next = p.Next()
			return fn(id, p)
		})
		if err != nil {
			return storageErr("chain", id, err)
		}
		id = next
	}
	return nil
}

// Append adds data at the end of the chain.
func (c *Chain) Append(ctx context.Context, data []byte) error {
	rec, err := c.s.encodeRecord(ctx, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.s.Update(ctx, c.tail, func(p Page) error {
		if _, ok := p.InsertRecord(rec); !ok {
			return errNoRoom
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNoRoom) {
		_ = c.s.releaseRecord(ctx, rec)
		return err
	}

	// Link a new tail: the old tail's latch is held while the new page is
	// written.
	var newTail storage.PageID
	err = c.s.Update(ctx, c.tail, func(p Page) error {
		id, err := c.s.allocate(ctx)
		if err != nil {
			return err
		}
		np := make(Page, c.s.pageSize)
		Init(np, TypeChain)
		np.InsertRecord(rec)
		if err := c.s.writeNew(ctx, id, np); err != nil {
			return err
		}
		newTail = id
		p.SetNext(id)
		return nil
	})
	if err != nil {
		if newTail != 0 {
			_ = c.s.Free(ctx, newTail)
		}
		_ = c.s.releaseRecord(ctx, rec)
		return err
	}
	c.tail = newTail
	c.pages++
	return nil
}

// Scan calls fn for every record in append order.
func (c *Chain) Scan(ctx context.Context, fn func(data []byte) error) error {
	c.mu.Lock()
	head := c.head
	c.mu.Unlock()
	return c.scanFrom(ctx, head, fn)
}

// scanFrom copies each page's records out under its latch and decodes them
// after releasing it, since overflow records read other pages.
func (c *Chain) scanFrom(ctx context.Context, head storage.PageID, fn func(data []byte) error) error {
	var recs [][]byte
	seen := 0
	for id := head; id != 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen++; uint32(seen) > c.s.dev.NumPages() {
			return storageErr("chain", head, fmt.Errorf("%w: chain from page %d has a cycle", ErrCorrupt, head))
		}
		recs = recs[:0]
		var next storage.PageID
		err := c.s.View(ctx, id, func(p Page) error {
			if p.Type() != TypeChain {
				return fmt.Errorf("%w: page %d has type %s, want chain", ErrCorrupt, id, p.Type())
			}
			p.Slots(func(_ int, rec []byte) bool {
				recs = append(recs, append([]byte(nil), rec...))
				return true
			})
			next = p.Next()
			return nil
		})
		if err != nil {
			return storageErr("chain", id, err)
		}
		for _, rec := range recs {
			data, err := c.s.decodeRecord(ctx, rec)
			if err != nil {
				return storageErr("chain", id, err)
			}
			if err := fn(data); err != nil {
				return err
			}
		}
		id = next
	}
	return nil
}

// Rewrite replaces the chain with a new chain holding the records for
// which keep returns true, then frees the old pages. It returns the number
// of records dropped. The chain's head changes. A *LeakError means only the
// release of the old pages failed.
func (c *Chain) Rewrite(ctx context.Context, keep func(data []byte) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh, err := NewChain(ctx, c.s)
	if err != nil {
		return 0, err
	}
	dropped := 0
	err = c.scanFrom(ctx, c.head, func(data []byte) error {
		if !keep(data) {
			dropped++
			return nil
		}
		return fresh.Append(ctx, data)
	})
	if err != nil {
		_ = fresh.free(ctx)
		return 0, err
	}

	old := &Chain{s: c.s, head: c.head}
	c.head, c.tail, c.pages = fresh.head, fresh.tail, fresh.pages
	if err := old.free(ctx); err != nil {
		return dropped, &LeakError{Err: err}
	}
	return dropped, nil
}

// Free releases every page of the chain, including overflow pages of its
// records. The chain must not be used afterwards.
func (c *Chain) Free(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.free(ctx)
}

func (c *Chain) free(ctx context.Context) error {
	var (
		ids  []storage.PageID
		recs [][]byte
	)
	err := c.walk(ctx, func(id storage.PageID, p Page) error {
		ids = append(ids, id)
		p.Slots(func(_ int, rec []byte) bool {
			if rec[0] == tagOverflow {
				recs = append(recs, append([]byte(nil), rec...))
			}
			return true
		})
		return nil
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, rec := range recs {
		errs = append(errs, c.s.releaseRecord(ctx, rec))
	}
	for _, id := range ids {
		errs = append(errs, c.s.Free(ctx, id))
	}
	return errors.Join(errs...)
}
