package hnsw

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/internal/testutil"
	"github.com/hupe1980/vecindex/storage"
	"github.com/hupe1980/vecindex/vector"
)

func newTestGraph(t *testing.T, dim int, optFns ...func(o *Options)) (*Graph, *pagestore.Store, *storage.Memory) {
	t.Helper()
	dev, err := storage.NewMemory(8192)
	require.NoError(t, err)
	store, err := pagestore.Create(context.Background(), dev, pagestore.EngineGraph)
	require.NoError(t, err)

	fns := append([]func(o *Options){func(o *Options) {
		o.Dimension = dim
		o.Seed = 42
	}}, optFns...)
	g, err := New(context.Background(), store, fns...)
	require.NoError(t, err)
	return g, store, dev
}

func TestGraph_NotReady(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGraph(t, 4)

	assert.Equal(t, index.StateEmpty, g.State())

	err := g.Insert(ctx, 1, vector.MustDense(1, 2, 3, 4))
	require.ErrorIs(t, err, index.ErrNotReady)

	_, _, err = g.Search(ctx, vector.MustDense(1, 2, 3, 4), 1, SearchOptions{})
	require.ErrorIs(t, err, index.ErrNotReady)

	require.ErrorIs(t, g.Delete(ctx, 1), index.ErrNotReady)

	_, err = g.Vacuum(ctx)
	require.ErrorIs(t, err, index.ErrNotReady)
}

func TestGraph_BuildSearch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	vecs := rng.UniformVectors(1000, 8)

	g, _, _ := newTestGraph(t, 8, func(o *Options) {
		o.EFConstruction = 100
	})
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))
	assert.Equal(t, index.StateReady, g.State())
	assert.Equal(t, 1000, g.Len())

	var total float64
	queries := rng.UniformVectors(20, 8)
	for _, q := range queries {
		res, stats, err := g.Search(ctx, q, 10, SearchOptions{EFSearch: 50})
		require.NoError(t, err)
		require.Len(t, res, 10)
		assert.False(t, stats.Partial)
		assert.Positive(t, stats.DistanceComputations)

		seen := make(map[uint64]bool)
		for i, r := range res {
			assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
			seen[r.ID] = true
			if i > 0 {
				assert.LessOrEqual(t, res[i-1].Distance, r.Distance)
			}
		}
		total += testutil.Recall(res, testutil.BruteForce(distance.L2, vecs, nil, q, 10))
	}
	assert.GreaterOrEqual(t, total/float64(len(queries)), 0.9)

	st := g.Stats()
	assert.Equal(t, 1000, st.Nodes)
	assert.True(t, st.HasEntry)
	require.NotEmpty(t, st.Levels)
	assert.Equal(t, 1000, st.Levels[0].Nodes)

	// Every node has at least one layer-0 neighbor.
	g.nodes.Load().forEach(func(n *node) bool {
		assert.NotEmpty(t, n.neighbors(0), "slot %d", n.slot)
		return true
	})
}

func TestGraph_SearchParameters(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGraph(t, 2)
	require.NoError(t, g.Build(ctx, testutil.Seq([]vector.Vector{vector.MustDense(0, 0)})))

	_, _, err := g.Search(ctx, vector.MustDense(0, 0), 0, SearchOptions{})
	require.ErrorIs(t, err, index.ErrInvalidParameter)

	_, _, err = g.Search(ctx, vector.MustDense(0, 0), 5, SearchOptions{EFSearch: 2})
	require.ErrorIs(t, err, index.ErrInvalidParameter)

	_, _, err = g.Search(ctx, vector.MustDense(0, 0, 0), 1, SearchOptions{})
	require.ErrorIs(t, err, index.ErrDimensionMismatch)

	narrow, _, _ := newTestGraph(t, 2, func(o *Options) { o.EFSearch = 5 })
	require.NoError(t, narrow.Build(ctx, testutil.Seq(testutil.NewRNG(3).UniformVectors(20, 2))))
	_, _, err = narrow.Search(ctx, vector.MustDense(0, 0), 10, SearchOptions{})
	require.ErrorIs(t, err, index.ErrInvalidParameter, "configured efSearch below k")

	got, _, err := narrow.Search(ctx, vector.MustDense(0, 0), 5, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	err = g.Insert(ctx, 7, vector.MustDense(1))
	require.ErrorIs(t, err, index.ErrDimensionMismatch)

	err = g.Insert(ctx, 0, vector.MustDense(1, 1))
	require.ErrorIs(t, err, index.ErrInvalidParameter, "duplicate live id")

	// k larger than the graph returns everything.
	res, _, err := g.Search(ctx, vector.MustDense(1, 1), 5, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(0), res[0].ID)
	assert.InDelta(t, 2.0, res[0].Distance, 1e-9)
}

func TestGraph_InsertEmpty(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGraph(t, 3)
	require.NoError(t, g.Build(ctx, testutil.Seq(nil)))

	res, _, err := g.Search(ctx, vector.MustDense(1, 2, 3), 3, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, g.Insert(ctx, 10, vector.MustDense(1, 2, 3)))
	st := g.Stats()
	require.True(t, st.HasEntry)
	assert.Equal(t, uint64(10), st.EntryPoint)
	assert.Zero(t, st.MaxLayer, "first node enters at layer 0")
	assert.Zero(t, g.nodes.Load().get(0).level)

	require.NoError(t, g.Insert(ctx, 11, vector.MustDense(3, 2, 1)))

	res, _, err = g.Search(ctx, vector.MustDense(1, 2, 3), 2, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, uint64(10), res[0].ID)
	assert.Zero(t, res[0].Distance)
	assert.Equal(t, uint64(11), res[1].ID)
}

func TestGraph_TiesByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGraph(t, 2)
	require.NoError(t, g.Build(ctx, testutil.Seq(nil)))

	for _, id := range []uint64{30, 10, 20} {
		require.NoError(t, g.Insert(ctx, id, vector.MustDense(1, 1)))
	}
	res, _, err := g.Search(ctx, vector.MustDense(1, 1), 3, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []uint64{30, 10, 20}, []uint64{res[0].ID, res[1].ID, res[2].ID})
}

func TestGraph_BuildFailureResets(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGraph(t, 4)

	vecs := testutil.NewRNG(3).UniformVectors(50, 4)
	vecs = append(vecs, vector.MustDense(1, 2))

	err := g.Build(ctx, testutil.Seq(vecs))
	require.ErrorIs(t, err, index.ErrDimensionMismatch)
	assert.Equal(t, index.StateEmpty, g.State())
	assert.Zero(t, g.Stats().Nodes)
	assert.Zero(t, g.Len())

	heap, err := pagestore.OpenHeap(ctx, store)
	require.NoError(t, err)
	records := 0
	require.NoError(t, heap.Scan(ctx, func(pagestore.RID, []byte) error {
		records++
		return nil
	}))
	assert.Zero(t, records)

	// A later build succeeds.
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs[:50])))
	assert.Equal(t, 50, g.Len())

	err = g.Build(ctx, testutil.Seq(vecs[:1]))
	require.ErrorIs(t, err, index.ErrInvalidParameter)
}

func TestGraph_BuildCanceled(t *testing.T) {
	g, _, _ := newTestGraph(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vecs := testutil.NewRNG(4).UniformVectors(100, 4)
	require.ErrorIs(t, g.Build(ctx, testutil.Seq(vecs)), context.Canceled)
	assert.Equal(t, index.StateEmpty, g.State())
	assert.Zero(t, g.Stats().Nodes)
}

func TestGraph_SearchBudget(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(5).UniformVectors(300, 8)
	g, _, _ := newTestGraph(t, 8)
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))

	res, stats, err := g.Search(ctx, vecs[0], 10, SearchOptions{MaxDistanceComputations: 20})
	require.NoError(t, err)
	assert.True(t, stats.Partial)
	assert.LessOrEqual(t, stats.DistanceComputations, 20)
	assert.LessOrEqual(t, len(res), 10)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	res, stats, err = g.Search(canceled, vecs[0], 10, SearchOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Partial)
	assert.Empty(t, res)
}

func TestGraph_DeleteEntryPoint(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(6).UniformVectors(200, 4)
	g, _, _ := newTestGraph(t, 4)
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))

	// Deleting unknown ids is a no-op.
	require.NoError(t, g.Delete(ctx, 99999))

	deleted := make(map[uint64]bool)
	for i := 0; i < 20; i++ {
		st := g.Stats()
		require.True(t, st.HasEntry)
		require.NoError(t, g.Delete(ctx, st.EntryPoint))
		deleted[st.EntryPoint] = true

		st = g.Stats()
		require.True(t, st.HasEntry)
		assert.False(t, deleted[st.EntryPoint], "entry point must be live")
	}
	assert.Equal(t, 180, g.Len())

	res, _, err := g.Search(ctx, vecs[0], 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 10)
	for _, r := range res {
		assert.False(t, deleted[r.ID])
	}
}

func TestGraph_DeleteAll(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(7).UniformVectors(20, 4)
	g, _, _ := newTestGraph(t, 4)
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))

	for i := range vecs {
		require.NoError(t, g.Delete(ctx, uint64(i)))
	}
	assert.False(t, g.Stats().HasEntry)

	res, _, err := g.Search(ctx, vecs[0], 5, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res)

	report, err := g.Vacuum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Reclaimed)
	assert.Zero(t, g.Stats().Nodes)

	// The id can be reused after delete.
	require.NoError(t, g.Insert(ctx, 0, vecs[0]))
	res, _, err = g.Search(ctx, vecs[0], 1, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(0), res[0].ID)
}

func TestGraph_Vacuum(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(8).UniformVectors(500, 8)
	g, _, _ := newTestGraph(t, 8, func(o *Options) { o.Workers = 4 })
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))

	live := func(i int) bool { return i%3 != 0 }
	deleted := 0
	for i := range vecs {
		if !live(i) {
			require.NoError(t, g.Delete(ctx, uint64(i)))
			deleted++
		}
	}
	assert.Equal(t, deleted, g.Stats().Pending)

	report, err := g.Vacuum(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, deleted, report.Reclaimed)
	assert.Positive(t, report.Repaired)
	assert.Zero(t, report.Failed)

	st := g.Stats()
	assert.Zero(t, st.Pending)
	assert.Equal(t, len(vecs)-deleted, st.Nodes)

	// No list references a reclaimed slot.
	nodes := g.nodes.Load()
	nodes.forEach(func(n *node) bool {
		for l := 0; l <= n.level; l++ {
			for _, nb := range n.neighbors(l) {
				assert.NotNil(t, nodes.get(nb.Slot), "slot %d layer %d -> %d", n.slot, l, nb.Slot)
			}
		}
		return true
	})

	var total float64
	for i := 1; i < 40; i += 3 {
		res, _, err := g.Search(ctx, vecs[i], 10, SearchOptions{EFSearch: 64})
		require.NoError(t, err)
		require.Len(t, res, 10)
		for _, r := range res {
			assert.True(t, live(int(r.ID)))
		}
		total += testutil.Recall(res, testutil.BruteForce(distance.L2, vecs, live, vecs[i], 10))
	}
	assert.GreaterOrEqual(t, total/13, 0.85)

	again, err := g.Vacuum(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Reclaimed)
	assert.Zero(t, again.Repaired)
}

func TestGraph_VacuumRepairsReclaimedEdges(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(12).UniformVectors(100, 4)
	g, _, _ := newTestGraph(t, 4)
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))

	g.idMu.RLock()
	gone, kept := g.ids[5], g.ids[7]
	g.idMu.RUnlock()

	require.NoError(t, g.Delete(ctx, 5))
	report, err := g.Vacuum(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Reclaimed)

	nodes := g.nodes.Load()
	require.Nil(t, nodes.get(gone))

	// An insert that raced the pass linked to the slot it reclaimed.
	n := nodes.get(kept)
	require.NotNil(t, n)
	n.mu.Lock()
	n.setNeighbors(0, append(slices.Clone(n.neighbors(0)), Neighbor{Slot: gone, Dist: 1}))
	n.mu.Unlock()

	again, err := g.Vacuum(ctx)
	require.NoError(t, err)
	require.NoError(t, again.Err())
	assert.Zero(t, again.Reclaimed)
	assert.Equal(t, 1, again.Repaired)
	assert.False(t, hasNeighbor(n.neighbors(0), gone))
	assert.NotEmpty(t, n.neighbors(0))

	idle, err := g.Vacuum(ctx)
	require.NoError(t, err)
	assert.Zero(t, idle.Repaired)
}

func TestGraph_Concurrent(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(9).UniformVectors(600, 8)
	g, _, _ := newTestGraph(t, 8)
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs[:200])))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 200 + w; i < len(vecs); i += 4 {
				assert.NoError(t, g.Insert(ctx, uint64(i), vecs[i]))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res, _, err := g.Search(ctx, vecs[(r*50+i)%200], 5, SearchOptions{})
				assert.NoError(t, err)
				assert.NotEmpty(t, res)
			}
		}(r)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i += 2 {
			assert.NoError(t, g.Delete(ctx, uint64(i)))
		}
		_, err := g.Vacuum(ctx)
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, len(vecs)-50, g.Len())
	res, _, err := g.Search(ctx, vecs[599], 1, SearchOptions{EFSearch: 100})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(599), res[0].ID)
}

func TestGraph_Reopen(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(10).UniformVectors(300, 6)
	g, store, dev := newTestGraph(t, 6, func(o *Options) { o.Distance = distance.Cosine })
	require.NoError(t, g.Build(ctx, testutil.Seq(vecs)))
	require.NoError(t, g.Delete(ctx, 5))
	require.NoError(t, g.Delete(ctx, 6))

	queries := vecs[:10]
	want := make([][]index.Result, len(queries))
	for i, q := range queries {
		res, _, err := g.Search(ctx, q, 5, SearchOptions{})
		require.NoError(t, err)
		want[i] = res
	}
	before := g.Stats()

	require.NoError(t, g.Close())
	require.NoError(t, store.Close())

	store, err := pagestore.Open(ctx, dev.Reopen())
	require.NoError(t, err)
	g2, err := Open(ctx, store)
	require.NoError(t, err)

	assert.Equal(t, index.StateReady, g2.State())
	assert.Equal(t, distance.Cosine, g2.Options().Distance)
	assert.Equal(t, 298, g2.Len())
	after := g2.Stats()
	assert.Equal(t, before.EntryPoint, after.EntryPoint)
	assert.Equal(t, before.Pending, after.Pending)
	assert.False(t, g2.Contains(5))

	for i, q := range queries {
		res, _, err := g2.Search(ctx, q, 5, SearchOptions{})
		require.NoError(t, err)
		assert.Equal(t, want[i], res)
	}

	// Inserts continue after the recovered slots.
	require.NoError(t, g2.Insert(ctx, 1000, vecs[0]))
	assert.True(t, g2.Contains(1000))
}

func TestGraph_OpenWrongEngine(t *testing.T) {
	dev, err := storage.NewMemory(4096)
	require.NoError(t, err)
	store, err := pagestore.Create(context.Background(), dev, pagestore.EngineCluster)
	require.NoError(t, err)

	_, err = Open(context.Background(), store)
	require.ErrorIs(t, err, index.ErrInvalidParameter)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name  string
		apply func(o *Options)
		want  error
	}{
		{"default", func(o *Options) {}, nil},
		{"m too small", func(o *Options) { o.M = 1 }, index.ErrInvalidParameter},
		{"m too large", func(o *Options) { o.M = 101 }, index.ErrInvalidParameter},
		{"ef construction", func(o *Options) { o.EFConstruction = 3 }, index.ErrInvalidParameter},
		{"ef search", func(o *Options) { o.EFSearch = 0 }, index.ErrInvalidParameter},
		{"dimension", func(o *Options) { o.Dimension = 0 }, index.ErrInvalidParameter},
		{"hamming on dense", func(o *Options) { o.Distance = distance.Hamming }, index.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions
			opts.Dimension = 8
			tt.apply(&opts)
			err := opts.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
