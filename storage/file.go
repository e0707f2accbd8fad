package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/vecindex/internal/fs"
)

// FileOptions configures OpenFile.
type FileOptions struct {
	// PageSize is used when the file is created. An existing file must have
	// been created with the same page size.
	PageSize int
	// FileSystem defaults to fs.Default.
	FileSystem fs.FileSystem
}

// File is a Device stored in a single file, page i at offset i*PageSize.
type File struct {
	mu       sync.RWMutex
	f        fs.File
	pageSize int
	numPages uint32
	closed   bool
}

var _ Device = (*File)(nil)

// OpenFile opens or creates the page file at path.
func OpenFile(path string, optFns ...func(o *FileOptions)) (*File, error) {
	opts := FileOptions{
		PageSize:   DefaultPageSize,
		FileSystem: fs.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := ValidatePageSize(opts.PageSize); err != nil {
		return nil, err
	}

	f, err := opts.FileSystem.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if info.Size()%int64(opts.PageSize) != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("storage: %s: size %d is not a multiple of page size %d", path, info.Size(), opts.PageSize)
	}

	return &File{
		f:        f,
		pageSize: opts.PageSize,
		numPages: uint32(info.Size() / int64(opts.PageSize)),
	}, nil
}

func (d *File) PageSize() int { return d.pageSize }

func (d *File) NumPages() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.numPages
}

func (d *File) offset(id PageID) int64 { return int64(id) * int64(d.pageSize) }

func (d *File) Allocate(ctx context.Context) (PageID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	id := PageID(d.numPages)
	if _, err := d.f.WriteAt(make([]byte, d.pageSize), d.offset(id)); err != nil {
		return 0, fmt.Errorf("storage: extend to page %d: %w", id, err)
	}
	d.numPages++
	return id, nil
}

func (d *File) ReadPage(ctx context.Context, id PageID, buf []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if err := CheckAccess(id, d.numPages, d.pageSize, len(buf)); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(buf, d.offset(id)); err != nil {
		return fmt.Errorf("storage: read page %d: %w", id, err)
	}
	return nil
}

func (d *File) WritePage(ctx context.Context, id PageID, data []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if err := CheckAccess(id, d.numPages, d.pageSize, len(data)); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(data, d.offset(id)); err != nil {
		return fmt.Errorf("storage: write page %d: %w", id, err)
	}
	return nil
}

func (d *File) Sync(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.f.Sync()
}

func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.f.Sync(); err != nil {
		_ = d.f.Close()
		return err
	}
	return d.f.Close()
}
