package pagestore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/cache"
	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/storage"
)

// DefaultCacheBytes is the default page cache budget.
const DefaultCacheBytes = 32 << 20

// Options configures a Store.
type Options struct {
	// CacheBytes is the page cache budget. Negative disables the cache.
	CacheBytes int64
	// Resource accounts cached pages. Optional.
	Resource *resource.Controller
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Stats describes a store.
type Stats struct {
	Pages       uint32
	FreePages   uint64
	LSN         uint64
	CacheBytes  int64
	CacheHits   int64
	CacheMisses int64
}

// Store manages pages on a device: checksummed reads and writes, page
// latches, a write-through page cache, page allocation with a free list,
// and the meta page.
type Store struct {
	dev      storage.Device
	pageSize int
	cache    *cache.ShardedLRU
	latches  latchTable
	logger   *slog.Logger
	lsn      atomic.Uint64
	closed   atomic.Bool

	allocMu sync.Mutex
	free    *roaring.Bitmap

	metaMu sync.Mutex
	meta   Meta
}

func newStore(dev storage.Device, optFns []func(o *Options)) (*Store, error) {
	opts := Options{
		CacheBytes: DefaultCacheBytes,
		Logger:     slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := storage.ValidatePageSize(dev.PageSize()); err != nil {
		return nil, &index.InvalidParameterError{Name: "pageSize", Reason: err.Error()}
	}

	s := &Store{
		dev:      dev,
		pageSize: dev.PageSize(),
		logger:   opts.Logger,
		free:     roaring.New(),
	}
	if opts.CacheBytes >= 0 {
		s.cache = cache.NewShardedLRU(opts.CacheBytes, opts.Resource)
	}
	return s, nil
}

// Create formats an empty device and writes the meta page for engine.
func Create(ctx context.Context, dev storage.Device, engine EngineKind, optFns ...func(o *Options)) (*Store, error) {
	s, err := newStore(dev, optFns)
	if err != nil {
		return nil, err
	}
	if n := dev.NumPages(); n != 0 {
		return nil, index.InvalidParameter("device", "must be empty, has %d pages", n)
	}
	id, err := dev.Allocate(ctx)
	if err != nil {
		return nil, storageErr("allocate", 0, err)
	}
	if id != metaPage {
		return nil, storageErr("allocate", id, fmt.Errorf("%w: meta page allocated as %d", ErrCorrupt, id))
	}
	s.meta = Meta{Engine: engine}
	if err := s.writeMeta(ctx, s.meta); err != nil {
		return nil, err
	}
	s.logger.Debug("pagestore created", "pageSize", s.pageSize, "engine", engine)
	return s, nil
}

// Open opens a device formatted by Create. It verifies every page and
// rebuilds the free list.
func Open(ctx context.Context, dev storage.Device, optFns ...func(o *Options)) (*Store, error) {
	s, err := newStore(dev, optFns)
	if err != nil {
		return nil, err
	}
	if dev.NumPages() == 0 {
		return nil, storageErr("open", 0, fmt.Errorf("%w: device is empty", ErrCorrupt))
	}

	meta, err := s.readMeta(ctx)
	if err != nil {
		return nil, err
	}
	s.meta = meta

	var maxLSN uint64
	buf := make(Page, s.pageSize)
	for id := storage.PageID(0); uint32(id) < dev.NumPages(); id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := dev.ReadPage(ctx, id, buf); err != nil {
			return nil, storageErr("read", id, err)
		}
		if isZero(buf) {
			// Allocated on the device but never written.
			s.free.Add(uint32(id))
			continue
		}
		if err := buf.Verify(); err != nil {
			return nil, storageErr("verify", id, err)
		}
		maxLSN = max(maxLSN, buf.LSN())
		if buf.Type() == TypeFree {
			s.free.Add(uint32(id))
		}
	}
	s.lsn.Store(maxLSN)

	s.logger.Debug("pagestore opened", "pages", dev.NumPages(), "free", s.free.GetCardinality(), "lsn", maxLSN)
	return s, nil
}

func isZero(b []byte) bool {
	return bytes.Count(b, []byte{0}) == len(b)
}

// PageSize returns the page size.
func (s *Store) PageSize() int { return s.pageSize }

// Engine returns the engine kind recorded in the meta page.
func (s *Store) Engine() EngineKind {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.meta.Engine
}

// read returns the verified image of page id. The image is shared with the
// cache and must not be modified.
func (s *Store) read(ctx context.Context, id storage.PageID) (Page, error) {
	if s.closed.Load() {
		return nil, storageErr("read", id, ErrClosed)
	}
	if s.cache != nil {
		if b, ok := s.cache.Get(uint32(id)); ok {
			return b, nil
		}
	}
	p := make(Page, s.pageSize)
	if err := s.dev.ReadPage(ctx, id, p); err != nil {
		return nil, storageErr("read", id, err)
	}
	if err := p.Verify(); err != nil {
		return nil, storageErr("verify", id, err)
	}
	if s.cache != nil {
		s.cache.Put(uint32(id), p)
	}
	return p, nil
}

// write seals p and writes it through to the device and the cache. p must
// not be modified afterwards.
func (s *Store) write(ctx context.Context, id storage.PageID, p Page) error {
	if s.closed.Load() {
		return storageErr("write", id, ErrClosed)
	}
	p.Seal(s.lsn.Add(1))
	if err := s.dev.WritePage(ctx, id, p); err != nil {
		if s.cache != nil {
			s.cache.Remove(uint32(id))
		}
		return storageErr("write", id, err)
	}
	if s.cache != nil {
		s.cache.Put(uint32(id), p)
	}
	return nil
}

// View calls fn with page id under its shared latch. fn must not modify
// or retain the page.
func (s *Store) View(ctx context.Context, id storage.PageID, fn func(p Page) error) error {
	l := s.latches.get(id)
	l.RLock()
	defer l.RUnlock()

	p, err := s.read(ctx, id)
	if err != nil {
		return err
	}
	return fn(p)
}

// Update calls fn with a private copy of page id under its exclusive latch
// and writes the copy back unless fn fails.
func (s *Store) Update(ctx context.Context, id storage.PageID, fn func(p Page) error) error {
	l := s.latches.get(id)
	l.Lock()
	defer l.Unlock()

	p, err := s.read(ctx, id)
	if err != nil {
		return err
	}
	cp := make(Page, len(p))
	copy(cp, p)
	if err := fn(cp); err != nil {
		return err
	}
	return s.write(ctx, id, cp)
}

// allocate returns a page id from the free list or the end of the device.
// The page is not written.
func (s *Store) allocate(ctx context.Context) (storage.PageID, error) {
	s.allocMu.Lock()
	if !s.free.IsEmpty() {
		id := s.free.Minimum()
		s.free.Remove(id)
		s.allocMu.Unlock()
		return storage.PageID(id), nil
	}
	s.allocMu.Unlock()

	id, err := s.dev.Allocate(ctx)
	if err != nil {
		return 0, storageErr("allocate", 0, err)
	}
	return id, nil
}

// writeNew writes p as the first image of a freshly allocated page. On
// failure the page goes back to the free list.
func (s *Store) writeNew(ctx context.Context, id storage.PageID, p Page) error {
	l := s.latches.get(id)
	l.Lock()
	err := s.write(ctx, id, p)
	l.Unlock()
	if err != nil {
		s.release(id)
	}
	return err
}

func (s *Store) release(id storage.PageID) {
	s.allocMu.Lock()
	s.free.Add(uint32(id))
	s.allocMu.Unlock()
}

// Allocate returns a new empty page of type typ.
func (s *Store) Allocate(ctx context.Context, typ PageType) (storage.PageID, error) {
	id, err := s.allocate(ctx)
	if err != nil {
		return 0, err
	}
	p := make(Page, s.pageSize)
	Init(p, typ)
	if err := s.writeNew(ctx, id, p); err != nil {
		return 0, err
	}
	return id, nil
}

// Free stamps page id as free and makes it available to Allocate.
func (s *Store) Free(ctx context.Context, id storage.PageID) error {
	_, err := s.FreeIf(ctx, id, nil)
	return err
}

// FreeIf frees page id if pred (nil means always) holds for it under the
// page's exclusive latch.
func (s *Store) FreeIf(ctx context.Context, id storage.PageID, pred func(p Page) bool) (bool, error) {
	if id == metaPage {
		return false, index.InvalidParameter("page", "the meta page cannot be freed")
	}
	l := s.latches.get(id)
	l.Lock()
	defer l.Unlock()

	if pred != nil {
		p, err := s.read(ctx, id)
		if err != nil {
			return false, err
		}
		if !pred(p) {
			return false, nil
		}
	}
	p := make(Page, s.pageSize)
	Init(p, TypeFree)
	if err := s.write(ctx, id, p); err != nil {
		return false, err
	}
	s.release(id)
	return true, nil
}

func (s *Store) isFree(id storage.PageID) bool {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()
	return s.free.Contains(uint32(id))
}

// ForEachPage calls fn for every page of type typ in ascending id order,
// each under its shared latch.
func (s *Store) ForEachPage(ctx context.Context, typ PageType, fn func(id storage.PageID, p Page) error) error {
	for id := storage.PageID(1); uint32(id) < s.dev.NumPages(); id++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.isFree(id) {
			continue
		}
		err := s.View(ctx, id, func(p Page) error {
			if p.Type() != typ {
				return nil
			}
			return fn(id, p)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ForEachPageIDs is like ForEachPage but calls fn with no latch held, so
// fn may access other pages.
func (s *Store) ForEachPageIDs(ctx context.Context, typ PageType, fn func(id storage.PageID) error) error {
	for id := storage.PageID(1); uint32(id) < s.dev.NumPages(); id++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.isFree(id) {
			continue
		}
		var match bool
		if err := s.View(ctx, id, func(p Page) error {
			match = p.Type() == typ
			return nil
		}); err != nil {
			return err
		}
		if !match {
			continue
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes the device.
func (s *Store) Sync(ctx context.Context) error {
	return storageErr("sync", 0, s.dev.Sync(ctx))
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	st := Stats{
		Pages: s.dev.NumPages(),
		LSN:   s.lsn.Load(),
	}
	s.allocMu.Lock()
	st.FreePages = s.free.GetCardinality()
	s.allocMu.Unlock()
	if s.cache != nil {
		st.CacheBytes = s.cache.Size()
		st.CacheHits, st.CacheMisses = s.cache.Stats()
	}
	return st
}

// Close syncs and closes the device and releases the cache.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	syncErr := s.dev.Sync(context.Background())
	closeErr := s.dev.Close()
	if syncErr != nil {
		return storageErr("sync", 0, syncErr)
	}
	return storageErr("close", 0, closeErr)
}
