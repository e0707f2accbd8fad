package storage

import (
	"context"
	"sync"
)

// Memory is a Device backed by a slice of pages.
type Memory struct {
	mu       sync.RWMutex
	pageSize int
	pages    [][]byte
	closed   bool
}

var _ Device = (*Memory)(nil)

// NewMemory creates an empty in-memory device. A zero pageSize selects
// DefaultPageSize.
func NewMemory(pageSize int) (*Memory, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if err := ValidatePageSize(pageSize); err != nil {
		return nil, err
	}
	return &Memory{pageSize: pageSize}, nil
}

func (m *Memory) PageSize() int { return m.pageSize }

func (m *Memory) NumPages() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint32(len(m.pages))
}

func (m *Memory) Allocate(ctx context.Context) (PageID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.pages = append(m.pages, make([]byte, m.pageSize))
	return PageID(len(m.pages) - 1), nil
}

func (m *Memory) ReadPage(ctx context.Context, id PageID, buf []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if err := CheckAccess(id, uint32(len(m.pages)), m.pageSize, len(buf)); err != nil {
		return err
	}
	copy(buf, m.pages[id])
	return nil
}

func (m *Memory) WritePage(ctx context.Context, id PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := CheckAccess(id, uint32(len(m.pages)), m.pageSize, len(data)); err != nil {
		return err
	}
	copy(m.pages[id], data)
	return nil
}

func (m *Memory) Sync(ctx context.Context) error { return nil }

// Close marks the device closed. The pages are kept so tests can reopen
// them with Reopen.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reopen returns a new open device sharing the closed device's pages.
func (m *Memory) Reopen() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([][]byte, len(m.pages))
	for i, p := range m.pages {
		pages[i] = append([]byte(nil), p...)
	}
	return &Memory{pageSize: m.pageSize, pages: pages}
}
