package badgerdev

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/vecindex/storage"
)

var (
	keyCount    = []byte("n")
	keyPageSize = []byte("s")
)

func pageKey(id storage.PageID) []byte {
	k := make([]byte, 5)
	k[0] = 'p'
	binary.BigEndian.PutUint32(k[1:], uint32(id))
	return k
}

// Options configures Open.
type Options struct {
	// Dir is the Badger data directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory (no persistence).
	InMemory bool

	// PageSize is used for a new device. An existing device keeps its size.
	PageSize int

	// SyncWrites makes every page write durable before it returns.
	SyncWrites bool

	// Logger receives Badger's own log output. If nil it is discarded.
	Logger *slog.Logger
}

// Device is a storage.Device over Badger.
type Device struct {
	db       *badger.DB
	pageSize int

	mu       sync.RWMutex
	numPages uint32
	closed   bool
}

var _ storage.Device = (*Device)(nil)

// Open opens or creates a device.
func Open(opts Options) (*Device, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badgerdev: Options.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithSyncWrites(opts.SyncWrites)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{l: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerdev: open: %w", err)
	}

	d := &Device{db: db}
	if err := d.load(opts.PageSize); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) load(pageSize int) error {
	var count, size uint32
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		if count, err = getUint32(txn, keyCount); err != nil {
			return err
		}
		size, err = getUint32(txn, keyPageSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("badgerdev: load: %w", err)
	}

	switch {
	case size == 0:
		if pageSize == 0 {
			pageSize = storage.DefaultPageSize
		}
		if err := storage.ValidatePageSize(pageSize); err != nil {
			return err
		}
		err = d.db.Update(func(txn *badger.Txn) error {
			return txn.Set(keyPageSize, binary.BigEndian.AppendUint32(nil, uint32(pageSize)))
		})
		if err != nil {
			return fmt.Errorf("badgerdev: init: %w", err)
		}
	case pageSize != 0 && pageSize != int(size):
		return fmt.Errorf("badgerdev: store has page size %d, requested %d", size, pageSize)
	default:
		pageSize = int(size)
	}

	d.pageSize = pageSize
	d.numPages = count
	return nil
}

// getUint32 returns 0 for a missing key.
func getUint32(txn *badger.Txn, key []byte) (uint32, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v uint32
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("key %q: %d bytes", key, len(val))
		}
		v = binary.BigEndian.Uint32(val)
		return nil
	})
	return v, err
}

func (d *Device) PageSize() int { return d.pageSize }

func (d *Device) NumPages() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.numPages
}

func (d *Device) Allocate(ctx context.Context) (storage.PageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, storage.ErrClosed
	}

	id := storage.PageID(d.numPages)
	err := d.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(pageKey(id), make([]byte, d.pageSize)); err != nil {
			return err
		}
		return txn.Set(keyCount, binary.BigEndian.AppendUint32(nil, d.numPages+1))
	})
	if err != nil {
		return 0, fmt.Errorf("badgerdev: allocate page %d: %w", id, err)
	}
	d.numPages++
	return id, nil
}

func (d *Device) check(id storage.PageID, n int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return storage.ErrClosed
	}
	return storage.CheckAccess(id, d.numPages, d.pageSize, n)
}

func (d *Device) ReadPage(ctx context.Context, id storage.PageID, buf []byte) error {
	if err := d.check(id, len(buf)); err != nil {
		return err
	}
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pageKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != len(buf) {
				return fmt.Errorf("%w: %d bytes stored", storage.ErrShortPage, len(val))
			}
			copy(buf, val)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("badgerdev: read page %d: %w", id, err)
	}
	return nil
}

func (d *Device) WritePage(ctx context.Context, id storage.PageID, data []byte) error {
	if err := d.check(id, len(data)); err != nil {
		return err
	}
	page := append([]byte(nil), data...)
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pageKey(id), page)
	})
	if err != nil {
		return fmt.Errorf("badgerdev: write page %d: %w", id, err)
	}
	return nil
}

func (d *Device) Sync(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return storage.ErrClosed
	}
	return d.db.Sync()
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// badgerLogger forwards Badger's printf-style logging to slog.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) log(level slog.Level, format string, args ...any) {
	if b.l == nil {
		return
	}
	b.l.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "badger")
}

func (b badgerLogger) Errorf(format string, args ...any) { b.log(slog.LevelError, format, args...) }

func (b badgerLogger) Warningf(format string, args ...any) { b.log(slog.LevelWarn, format, args...) }

func (b badgerLogger) Infof(format string, args ...any) { b.log(slog.LevelDebug, format, args...) }

func (b badgerLogger) Debugf(format string, args ...any) { b.log(slog.LevelDebug, format, args...) }
