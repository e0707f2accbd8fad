package pagestore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/fs"
	"github.com/hupe1980/vecindex/storage"
)

func newTestStore(t *testing.T, pageSize int) (*Store, *storage.Memory) {
	t.Helper()
	dev, err := storage.NewMemory(pageSize)
	require.NoError(t, err)
	s, err := Create(context.Background(), dev, EngineGraph)
	require.NoError(t, err)
	return s, dev
}

func reopen(t *testing.T, s *Store, dev *storage.Memory) (*Store, *storage.Memory) {
	t.Helper()
	require.NoError(t, s.Close())
	dev = dev.Reopen()
	s, err := Open(context.Background(), dev)
	require.NoError(t, err)
	return s, dev
}

func TestStore_CreateOpen(t *testing.T) {
	ctx := context.Background()
	s, dev := newTestStore(t, 1024)
	assert.Equal(t, EngineGraph, s.Engine())

	require.NoError(t, s.SetMeta(ctx, Meta{Engine: EngineGraph, Payload: []byte("hello")}))

	s, _ = reopen(t, s, dev)
	defer s.Close()
	m := s.Meta()
	assert.Equal(t, EngineGraph, m.Engine)
	assert.Equal(t, "hello", string(m.Payload))

	_, err := Create(ctx, dev, EngineGraph)
	assert.ErrorIs(t, err, index.ErrInvalidParameter, "device is not empty")
}

func TestStore_LargeMetaPayload(t *testing.T) {
	ctx := context.Background()
	s, dev := newTestStore(t, 1024)

	big := bytes.Repeat([]byte("centroid"), 1000)
	require.NoError(t, s.SetMeta(ctx, Meta{Engine: EngineCluster, Payload: big}))
	require.NoError(t, s.SetMeta(ctx, Meta{Engine: EngineCluster, Payload: big}))
	used := s.Stats().Pages
	assert.Positive(t, s.Stats().FreePages, "the replaced payload's pages are freed")

	// From now on replacing the payload reuses the freed pages.
	require.NoError(t, s.SetMeta(ctx, Meta{Engine: EngineCluster, Payload: big}))
	assert.Equal(t, used, s.Stats().Pages)

	s, _ = reopen(t, s, dev)
	defer s.Close()
	assert.Equal(t, big, s.Meta().Payload)
	assert.Equal(t, EngineCluster, s.Engine())
}

func TestStore_AllocateReusesFreedPages(t *testing.T) {
	ctx := context.Background()
	s, dev := newTestStore(t, 1024)

	a, err := s.Allocate(ctx, TypeHeap)
	require.NoError(t, err)
	b, err := s.Allocate(ctx, TypeHeap)
	require.NoError(t, err)
	require.NoError(t, s.Free(ctx, a))
	assert.Equal(t, uint64(1), s.Stats().FreePages)

	c, err := s.Allocate(ctx, TypeChain)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	require.NoError(t, s.Free(ctx, b))
	assert.ErrorIs(t, s.Free(ctx, 0), index.ErrInvalidParameter)

	// The free list is rebuilt from page types.
	s, _ = reopen(t, s, dev)
	defer s.Close()
	assert.Equal(t, uint64(1), s.Stats().FreePages)
	d, err := s.Allocate(ctx, TypeHeap)
	require.NoError(t, err)
	assert.Equal(t, b, d)
}

func TestStore_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	s, dev := newTestStore(t, 1024)
	id, err := s.Allocate(ctx, TypeHeap)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	dev = dev.Reopen()
	buf := make([]byte, 1024)
	require.NoError(t, dev.ReadPage(ctx, id, buf))
	buf[100] ^= 1
	require.NoError(t, dev.WritePage(ctx, id, buf))

	_, err = Open(ctx, dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrStorageFailure)
	assert.ErrorIs(t, err, ErrChecksum)

	var se *index.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, uint32(id), se.Page)
}

func TestStore_CacheIsWriteThrough(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 1024)
	defer s.Close()

	id, err := s.Allocate(ctx, TypeHeap)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, id, func(p Page) error {
		_, ok := p.InsertRecord([]byte("cached"))
		assert.True(t, ok)
		return nil
	}))
	require.NoError(t, s.View(ctx, id, func(p Page) error {
		rec, ok := p.Record(0)
		assert.True(t, ok)
		assert.Equal(t, "cached", string(rec))
		return nil
	}))

	st := s.Stats()
	assert.Positive(t, st.CacheHits)
	assert.Positive(t, st.CacheBytes)
	assert.Positive(t, st.LSN)
}

func TestStore_WriteFailure(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	dev, err := storage.OpenFile(filepath.Join(t.TempDir(), "index.db"), func(o *storage.FileOptions) {
		o.PageSize = 1024
		o.FileSystem = ffs
	})
	require.NoError(t, err)

	s, err := Create(ctx, dev, EngineCluster, func(o *Options) { o.CacheBytes = -1 })
	require.NoError(t, err)
	defer s.Close()

	ffs.AddRule("index.db", fs.Fault{FailWrites: true})
	_, err = s.Allocate(ctx, TypeChain)
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrStorageFailure)
	assert.ErrorIs(t, err, fs.ErrInjected)

	ffs.ClearRules()
	_, err = s.Allocate(ctx, TypeChain)
	require.NoError(t, err)
}

func TestStore_InvalidPageSize(t *testing.T) {
	_, err := Create(context.Background(), badDevice{}, EngineGraph)
	assert.ErrorIs(t, err, index.ErrInvalidParameter)
}

type badDevice struct{ storage.Device }

func (badDevice) PageSize() int { return 1000 }
