package pagestore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap(t *testing.T) {
	ctx := context.Background()
	s, dev := newTestStore(t, 1024)
	h, err := OpenHeap(ctx, s)
	require.NoError(t, err)

	rids := make(map[string]RID)
	for i := range 200 {
		key := fmt.Sprintf("node-%04d", i)
		rid, err := h.Insert(ctx, []byte(key))
		require.NoError(t, err)
		rids[key] = rid
	}
	assert.Greater(t, h.Pages(), 1)

	for key, rid := range rids {
		got, err := h.Get(ctx, rid)
		require.NoError(t, err)
		assert.Equal(t, key, string(got))
	}

	t.Run("Update", func(t *testing.T) {
		rid := rids["node-0007"]
		same, err := h.Update(ctx, rid, []byte("node-7"))
		require.NoError(t, err)
		assert.Equal(t, rid, same)

		// Too large for the rest of the page: the record moves.
		big := bytes.Repeat([]byte("x"), 900)
		moved, err := h.Update(ctx, rid, big)
		require.NoError(t, err)
		got, err := h.Get(ctx, moved)
		require.NoError(t, err)
		assert.Equal(t, big, got)
		rids["node-0007"] = moved
	})

	t.Run("Delete", func(t *testing.T) {
		rid := rids["node-0100"]
		require.NoError(t, h.Delete(ctx, rid))
		_, err := h.Get(ctx, rid)
		assert.ErrorIs(t, err, ErrNoRecord)
		assert.ErrorIs(t, h.Delete(ctx, rid), ErrNoRecord)
		delete(rids, "node-0100")
	})

	t.Run("ScanAfterReopen", func(t *testing.T) {
		s2, _ := reopen(t, s, dev)
		defer s2.Close()
		h2, err := OpenHeap(ctx, s2)
		require.NoError(t, err)

		var n int
		require.NoError(t, h2.Scan(ctx, func(rid RID, data []byte) error {
			n++
			if len(data) < 100 {
				want, ok := rids[string(data)]
				assert.True(t, ok, "unexpected record %q", data)
				assert.Equal(t, want, rid)
			}
			return nil
		}))
		assert.Equal(t, len(rids), n)
	})
}

func TestHeap_Overflow(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 1024)
	defer s.Close()
	h, err := OpenHeap(ctx, s)
	require.NoError(t, err)

	big := make([]byte, 10_000)
	for i := range big {
		big[i] = byte(i * 7)
	}
	rid, err := h.Insert(ctx, big)
	require.NoError(t, err)
	got, err := h.Get(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	pages := s.Stats().Pages
	require.NoError(t, h.Delete(ctx, rid))
	// Overflow pages and the emptied heap page are all free again.
	assert.Equal(t, uint64(pages-1), s.Stats().FreePages)

	rid, err = h.Insert(ctx, big)
	require.NoError(t, err)
	assert.Equal(t, pages, s.Stats().Pages, "freed pages are reused")
	got, err = h.Get(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestHeap_EmptyPagesReturnToStore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 1024)
	defer s.Close()
	h, err := OpenHeap(ctx, s)
	require.NoError(t, err)

	var rids []RID
	for range 100 {
		rid, err := h.Insert(ctx, make([]byte, 100))
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	for _, rid := range rids {
		require.NoError(t, h.Delete(ctx, rid))
	}
	assert.Zero(t, h.Pages())
	assert.Equal(t, uint64(s.Stats().Pages-1), s.Stats().FreePages)
}

func TestHeap_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 4096)
	defer s.Close()
	h, err := OpenHeap(ctx, s)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[RID]string)
	)
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				val := fmt.Sprintf("w%d-%d", w, i)
				rid, err := h.Insert(ctx, []byte(val))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				_, dup := seen[rid]
				assert.False(t, dup, "rid %s handed out twice", rid)
				seen[rid] = val
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	var got []string
	require.NoError(t, h.Scan(ctx, func(rid RID, data []byte) error {
		assert.Equal(t, seen[rid], string(data))
		got = append(got, string(data))
		return nil
	}))
	assert.Len(t, got, 800)
}
