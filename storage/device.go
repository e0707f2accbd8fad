package storage

import (
	"context"
	"errors"
	"fmt"
)

// PageID addresses a page on a device. Page 0 is the meta page, so 0 doubles
// as the "no page" link value.
type PageID uint32

// Page size limits.
const (
	MinPageSize     = 1024
	MaxPageSize     = 65536
	DefaultPageSize = 8192
)

var (
	// ErrOutOfRange is returned for a page id past the end of the device.
	ErrOutOfRange = errors.New("storage: page out of range")
	// ErrClosed is returned by a closed device.
	ErrClosed = errors.New("storage: device closed")
	// ErrShortPage is returned when a buffer does not match the page size.
	ErrShortPage = errors.New("storage: buffer does not match page size")
)

// Device is a page-addressed storage device. Implementations are safe for
// concurrent use; concurrent writes to the same page are serialized by the
// caller.
type Device interface {
	// PageSize returns the fixed page size in bytes.
	PageSize() int
	// NumPages returns the number of allocated pages.
	NumPages() uint32
	// Allocate appends a zeroed page and returns its id.
	Allocate(ctx context.Context) (PageID, error)
	// ReadPage reads page id into buf, which must be PageSize bytes.
	ReadPage(ctx context.Context, id PageID, buf []byte) error
	// WritePage writes data, which must be PageSize bytes, to page id.
	WritePage(ctx context.Context, id PageID, data []byte) error
	// Sync flushes written pages to stable storage.
	Sync(ctx context.Context) error
	// Close releases the device.
	Close() error
}

// ValidatePageSize reports whether size is a power of two in
// [MinPageSize, MaxPageSize].
func ValidatePageSize(size int) error {
	if size < MinPageSize || size > MaxPageSize || size&(size-1) != 0 {
		return fmt.Errorf("storage: page size %d must be a power of two in [%d, %d]", size, MinPageSize, MaxPageSize)
	}
	return nil
}

// CheckAccess validates a page access against the device size and the
// buffer length. Device implementations share it.
func CheckAccess(id PageID, numPages uint32, pageSize, bufLen int) error {
	if uint32(id) >= numPages {
		return fmt.Errorf("%w: page %d of %d", ErrOutOfRange, id, numPages)
	}
	if bufLen != pageSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortPage, bufLen, pageSize)
	}
	return nil
}
