package pagestore

import (
	"errors"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/storage"
)

var (
	// ErrChecksum is returned when a page fails checksum verification.
	ErrChecksum = errors.New("pagestore: checksum mismatch")
	// ErrCorrupt is returned for structurally invalid pages or records.
	ErrCorrupt = errors.New("pagestore: corrupt page")
	// ErrNoRecord is returned for a record id that names no live record.
	ErrNoRecord = errors.New("pagestore: no such record")
	// ErrClosed is returned by a closed store.
	ErrClosed = errors.New("pagestore: store closed")

	errNoRoom = errors.New("pagestore: no room on page")
)

// LeakError is returned by Chain.Rewrite when the new chain is in place but
// pages of the old one could not be freed. The rewrite itself took effect.
type LeakError struct {
	Err error
}

func (e *LeakError) Error() string { return "pagestore: old chain not freed: " + e.Err.Error() }

func (e *LeakError) Unwrap() error { return e.Err }

func storageErr(op string, id storage.PageID, err error) error {
	if err == nil {
		return nil
	}
	var se *index.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &index.StorageError{Op: op, Page: uint32(id), Err: err}
}
