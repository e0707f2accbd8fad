package blobdev

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/vecindex/blobstore"
	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/storage"
)

const pagePrefix = "page-"

func pageName(id storage.PageID) string {
	return fmt.Sprintf("%s%010d", pagePrefix, id)
}

// Options configures a Device.
type Options struct {
	// PageSize is used for a new device; an existing device keeps the size
	// it was created with and a conflicting non-zero value is an error.
	PageSize int
	// Compression applies to pages written from now on. Pages written with
	// another codec stay readable.
	Compression Compression
	// Resource throttles transfers with its IO limiter. Optional.
	Resource *resource.Controller
}

// Device is a storage.Device over a blob store.
type Device struct {
	store blobstore.BlobStore
	opts  Options

	mu       sync.RWMutex
	numPages uint32
	closed   bool
}

var _ storage.Device = (*Device)(nil)

// New opens the device stored in store, creating an empty one if store
// holds no pages.
func New(ctx context.Context, store blobstore.BlobStore, optFns ...func(o *Options)) (*Device, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	names, err := store.List(ctx, pagePrefix)
	if err != nil {
		return nil, fmt.Errorf("blobdev: list pages: %w", err)
	}
	var numPages uint32
	for _, name := range names {
		n, err := strconv.ParseUint(strings.TrimPrefix(name, pagePrefix), 10, 32)
		if err != nil {
			continue
		}
		numPages = max(numPages, uint32(n)+1)
	}

	if numPages > 0 {
		frame, err := store.Get(ctx, pageName(0))
		if err != nil {
			return nil, fmt.Errorf("blobdev: read page 0: %w", err)
		}
		size, err := frameSize(frame)
		if err != nil {
			return nil, err
		}
		if opts.PageSize != 0 && opts.PageSize != size {
			return nil, fmt.Errorf("blobdev: store has page size %d, requested %d", size, opts.PageSize)
		}
		opts.PageSize = size
	}
	if opts.PageSize == 0 {
		opts.PageSize = storage.DefaultPageSize
	}
	if err := storage.ValidatePageSize(opts.PageSize); err != nil {
		return nil, err
	}

	return &Device{
		store:    store,
		opts:     opts,
		numPages: numPages,
	}, nil
}

func (d *Device) PageSize() int { return d.opts.PageSize }

func (d *Device) NumPages() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.numPages
}

func (d *Device) put(ctx context.Context, id storage.PageID, page []byte) error {
	frame, err := encodeFrame(page, d.opts.Compression)
	if err != nil {
		return fmt.Errorf("blobdev: encode page %d: %w", id, err)
	}
	if err := d.acquireIO(ctx, len(frame)); err != nil {
		return err
	}
	if err := d.store.Put(ctx, pageName(id), frame); err != nil {
		return fmt.Errorf("blobdev: put page %d: %w", id, err)
	}
	return nil
}

func (d *Device) acquireIO(ctx context.Context, n int) error {
	if d.opts.Resource == nil {
		return nil
	}
	return d.opts.Resource.AcquireIO(ctx, n)
}

func (d *Device) Allocate(ctx context.Context) (storage.PageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, storage.ErrClosed
	}
	id := storage.PageID(d.numPages)
	if err := d.put(ctx, id, make([]byte, d.opts.PageSize)); err != nil {
		return 0, err
	}
	d.numPages++
	return id, nil
}

func (d *Device) ReadPage(ctx context.Context, id storage.PageID, buf []byte) error {
	d.mu.RLock()
	closed, n := d.closed, d.numPages
	d.mu.RUnlock()
	if closed {
		return storage.ErrClosed
	}
	if err := storage.CheckAccess(id, n, d.opts.PageSize, len(buf)); err != nil {
		return err
	}

	frame, err := d.store.Get(ctx, pageName(id))
	if err != nil {
		return fmt.Errorf("blobdev: get page %d: %w", id, err)
	}
	if err := d.acquireIO(ctx, len(frame)); err != nil {
		return err
	}
	return decodeFrame(frame, buf)
}

func (d *Device) WritePage(ctx context.Context, id storage.PageID, data []byte) error {
	d.mu.RLock()
	closed, n := d.closed, d.numPages
	d.mu.RUnlock()
	if closed {
		return storage.ErrClosed
	}
	if err := storage.CheckAccess(id, n, d.opts.PageSize, len(data)); err != nil {
		return err
	}
	return d.put(ctx, id, data)
}

// Sync is a no-op: every Put is durable when it returns.
func (d *Device) Sync(ctx context.Context) error { return nil }

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
