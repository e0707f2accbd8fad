package ivf

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
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

func newTestIndex(t *testing.T, optFns ...func(o *Options)) (*Index, *pagestore.Store, *storage.Memory) {
	t.Helper()
	dev, err := storage.NewMemory(4096)
	require.NoError(t, err)
	store, err := pagestore.Create(context.Background(), dev, pagestore.EngineCluster)
	require.NoError(t, err)
	x, err := New(context.Background(), store, optFns...)
	require.NoError(t, err)
	return x, store, dev
}

func withParams(dim, lists int) func(o *Options) {
	return func(o *Options) {
		o.Dimension = dim
		o.NumLists = lists
		o.Seed = 7
	}
}

func TestIndex_NotReady(t *testing.T) {
	ctx := context.Background()
	x, _, _ := newTestIndex(t, withParams(2, 2))

	require.ErrorIs(t, x.Insert(ctx, 1, vector.MustDense(1, 2)), index.ErrNotReady)
	require.ErrorIs(t, x.Delete(ctx, 1), index.ErrNotReady)
	_, _, err := x.Search(ctx, vector.MustDense(1, 2), 1, SearchOptions{})
	require.ErrorIs(t, err, index.ErrNotReady)
	_, err = x.Vacuum(ctx)
	require.ErrorIs(t, err, index.ErrNotReady)
}

func TestIndex_BuildSearch(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(1).ClusteredVectors(400, 4, 4)
	x, _, _ := newTestIndex(t, withParams(4, 4))
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))
	assert.Equal(t, index.StateReady, x.State())
	assert.Equal(t, 400, x.Len())

	// Every cluster lands in its own list.
	lists := make(map[int]int)
	for i := range vecs {
		l, ok := x.ListOf(uint64(i))
		require.True(t, ok)
		if want, seen := lists[i%4]; seen {
			assert.Equal(t, want, l, "vector %d", i)
		} else {
			lists[i%4] = l
		}
	}
	assert.Len(t, lists, 4)

	st := x.Stats()
	require.Len(t, st.Lists, 4)
	for _, ls := range st.Lists {
		assert.Equal(t, 100, ls.Members)
	}

	res, stats, err := x.Search(ctx, vecs[5], 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 10)
	assert.Equal(t, uint64(5), res[0].ID)
	assert.Zero(t, res[0].Distance)
	assert.False(t, stats.Partial)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
		assert.Equal(t, 1, int(res[i].ID%4), "single probe stays in the cluster")
	}
}

func TestIndex_ExactWithAllProbes(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(2, 2))
	vecs := make([]vector.Vector, 200)
	for i := range vecs {
		vecs[i] = vector.MustDense(rng.Float32(), rng.Float32(), rng.Float32())
	}
	x, _, _ := newTestIndex(t, withParams(3, 8), func(o *Options) { o.Distance = distance.InnerProduct })
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	q := vector.MustDense(0.3, 0.9, 0.1)
	res, _, err := x.Search(ctx, q, 5, SearchOptions{NumProbes: 8})
	require.NoError(t, err)

	type hit struct {
		id   uint64
		dist float64
	}
	var want []hit
	for i, v := range vecs {
		d, err := distance.Distance(distance.InnerProduct, q, v)
		require.NoError(t, err)
		want = append(want, hit{uint64(i), d})
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].dist != want[j].dist {
			return want[i].dist < want[j].dist
		}
		return want[i].id < want[j].id
	})
	require.Len(t, res, 5)
	for i := range res {
		assert.Equal(t, want[i].id, res[i].ID)
		assert.InDelta(t, want[i].dist, res[i].Distance, 1e-6)
	}
}

func TestIndex_DuplicateVectors(t *testing.T) {
	ctx := context.Background()
	vecs := make([]vector.Vector, 0, 12)
	for i := 0; i < 8; i++ {
		vecs = append(vecs, vector.MustDense(float32(i*10), 0))
	}
	for i := 0; i < 4; i++ {
		vecs = append(vecs, vector.MustDense(5, 5))
	}
	x, _, _ := newTestIndex(t, withParams(2, 4))
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	first, ok := x.ListOf(8)
	require.True(t, ok)
	for id := uint64(9); id < 12; id++ {
		l, ok := x.ListOf(id)
		require.True(t, ok)
		assert.Equal(t, first, l)
	}

	// Equal distances order by id.
	res, _, err := x.Search(ctx, vector.MustDense(5, 5), 4, SearchOptions{NumProbes: 4})
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, []uint64{8, 9, 10, 11}, []uint64{res[0].ID, res[1].ID, res[2].ID, res[3].ID})
}

func TestIndex_BuildErrors(t *testing.T) {
	ctx := context.Background()

	x, _, _ := newTestIndex(t, withParams(2, 10))
	err := x.Build(ctx, testutil.Seq([]vector.Vector{vector.MustDense(1, 2), vector.MustDense(3, 4)}))
	require.ErrorIs(t, err, index.ErrInvalidParameter)
	assert.Equal(t, index.StateEmpty, x.State())

	err = x.Build(ctx, testutil.Seq([]vector.Vector{vector.MustDense(1, 2, 3)}))
	require.ErrorIs(t, err, index.ErrDimensionMismatch)
	assert.Equal(t, index.StateEmpty, x.State())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	vecs := testutil.NewRNG(3).ClusteredVectors(40, 2, 4)
	require.Error(t, x.Build(canceled, testutil.Seq(vecs)))
	assert.Equal(t, index.StateEmpty, x.State())

	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))
	require.ErrorIs(t, x.Build(ctx, testutil.Seq(vecs)), index.ErrInvalidParameter)

	_, err = New(ctx, nil, func(o *Options) {
		o.Dimension = 4
		o.VectorType = vector.TypeSparse
		o.Distance = distance.L2
	})
	require.ErrorIs(t, err, index.ErrTypeMismatch)
}

func TestIndex_InsertDelete(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(4).ClusteredVectors(40, 2, 4)
	x, _, _ := newTestIndex(t, withParams(2, 4))
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	require.ErrorIs(t, x.Insert(ctx, 3, vecs[0]), index.ErrInvalidParameter)
	require.ErrorIs(t, x.Insert(ctx, 100, vector.MustDense(1)), index.ErrDimensionMismatch)

	require.NoError(t, x.Insert(ctx, 100, vector.MustDense(30.5, 30.5)))
	l, ok := x.ListOf(100)
	require.True(t, ok)
	l3, _ := x.ListOf(3)
	assert.Equal(t, l3, l)

	require.NoError(t, x.Delete(ctx, 100))
	require.NoError(t, x.Delete(ctx, 100), "second delete is a no-op")
	_, ok = x.ListOf(100)
	assert.False(t, ok)

	res, _, err := x.Search(ctx, vector.MustDense(30.5, 30.5), 3, SearchOptions{})
	require.NoError(t, err)
	for _, r := range res {
		assert.NotEqual(t, uint64(100), r.ID)
	}

	// Reinsert after delete.
	require.NoError(t, x.Insert(ctx, 100, vector.MustDense(30.5, 30.5)))
	res, _, err = x.Search(ctx, vector.MustDense(30.5, 30.5), 1, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(100), res[0].ID)
}

func TestIndex_Vacuum(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(5).ClusteredVectors(200, 4, 4)
	x, _, _ := newTestIndex(t, withParams(4, 4), func(o *Options) { o.Workers = 2 })
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	for i := 0; i < 200; i += 2 {
		require.NoError(t, x.Delete(ctx, uint64(i)))
	}
	assert.Equal(t, 100, x.Len())

	report, err := x.Vacuum(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 100, report.Reclaimed)
	assert.Equal(t, 2, report.Repaired, "only the lists of even clusters had tombstones")

	for _, ls := range x.Stats().Lists {
		assert.Zero(t, ls.Tombstones)
	}

	// The chains hold exactly the live members.
	for _, l := range x.lists {
		records := 0
		require.NoError(t, l.chain.Scan(ctx, func(data []byte) error {
			r, err := peekRecord(data)
			require.NoError(t, err)
			assert.Equal(t, recMember, r.kind)
			assert.Equal(t, uint64(1), r.id%2)
			records++
			return nil
		}))
		assert.Equal(t, l.members, records)
	}

	again, err := x.Vacuum(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Reclaimed)
	assert.Zero(t, again.Repaired)

	res, _, err := x.Search(ctx, vecs[1], 5, SearchOptions{NumProbes: 4})
	require.NoError(t, err)
	require.Len(t, res, 5)
	assert.Equal(t, uint64(1), res[0].ID)
}

var errWriteFault = errors.New("write fault")

// faultyDevice fails writes to selected pages.
type faultyDevice struct {
	storage.Device

	mu   sync.Mutex
	fail map[storage.PageID]bool
}

func (d *faultyDevice) failWrites(ids ...storage.PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = make(map[storage.PageID]bool, len(ids))
	for _, id := range ids {
		d.fail[id] = true
	}
}

func (d *faultyDevice) WritePage(ctx context.Context, id storage.PageID, data []byte) error {
	d.mu.Lock()
	fail := d.fail[id]
	d.mu.Unlock()
	if fail {
		return errWriteFault
	}
	return d.Device.WritePage(ctx, id, data)
}

func TestIndex_VacuumLeakedPages(t *testing.T) {
	ctx := context.Background()
	mem, err := storage.NewMemory(4096)
	require.NoError(t, err)
	dev := &faultyDevice{Device: mem}
	store, err := pagestore.Create(ctx, dev, pagestore.EngineCluster)
	require.NoError(t, err)
	x, err := New(ctx, store, withParams(4, 4))
	require.NoError(t, err)

	vecs := testutil.NewRNG(9).ClusteredVectors(40, 4, 4)
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	li, ok := x.ListOf(0)
	require.True(t, ok)
	l := x.lists[li]
	require.Equal(t, 1, l.chain.Pages())
	oldHead := l.chain.Head()

	for i := 0; i < 40; i += 4 {
		require.NoError(t, x.Delete(ctx, uint64(i)))
	}

	// The rewrite succeeds; releasing the old page does not.
	dev.failWrites(oldHead)
	report, err := x.Vacuum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Reclaimed)
	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Failed)
	require.ErrorIs(t, report.Err(), errWriteFault)
	assert.NotEqual(t, oldHead, l.chain.Head())
	assert.Zero(t, x.Stats().Lists[li].Tombstones)

	dev.failWrites()
	again, err := x.Vacuum(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Reclaimed)
	assert.Zero(t, again.Repaired)
	require.NoError(t, again.Err())

	assert.Equal(t, 30, x.Len())
	res, _, err := x.Search(ctx, vecs[1], 5, SearchOptions{NumProbes: 4})
	require.NoError(t, err)
	require.Len(t, res, 5)
	assert.Equal(t, uint64(1), res[0].ID)
}

func TestIndex_SearchBudget(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(6).ClusteredVectors(200, 4, 4)
	x, _, _ := newTestIndex(t, withParams(4, 4))
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	res, stats, err := x.Search(ctx, vecs[0], 10, SearchOptions{NumProbes: 4, MaxDistanceComputations: 20})
	require.NoError(t, err)
	assert.True(t, stats.Partial)
	assert.Len(t, res, 10)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}

	_, _, err = x.Search(ctx, vecs[0], 0, SearchOptions{})
	require.ErrorIs(t, err, index.ErrInvalidParameter)
	_, _, err = x.Search(ctx, vecs[0], 1, SearchOptions{NumProbes: -1})
	require.ErrorIs(t, err, index.ErrInvalidParameter)
}

func TestIndex_Binary(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 7))
	vecs := make([]vector.Vector, 100)
	for i := range vecs {
		bits := make([]bool, 16)
		for j := range bits {
			// Two groups: low bits set or high bits set, plus noise.
			bits[j] = (j < 8) == (i%2 == 0)
			if rng.IntN(10) == 0 {
				bits[j] = !bits[j]
			}
		}
		v, err := vector.NewBinaryFromBools(bits)
		require.NoError(t, err)
		vecs[i] = v
	}
	x, _, _ := newTestIndex(t, withParams(16, 2), func(o *Options) {
		o.VectorType = vector.TypeBinary
		o.Distance = distance.Hamming
	})
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	for _, c := range x.Centroids() {
		assert.Equal(t, vector.TypeBinary, c.Type())
	}
	even, _ := x.ListOf(0)
	odd, _ := x.ListOf(1)
	assert.NotEqual(t, even, odd)

	res, _, err := x.Search(ctx, vecs[0], 3, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, uint64(0), res[0].ID)
}

func TestIndex_Reopen(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(8).ClusteredVectors(120, 3, 4)
	x, store, dev := newTestIndex(t, withParams(3, 4), func(o *Options) { o.Distance = distance.Cosine })
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))
	require.NoError(t, x.Delete(ctx, 7))
	require.NoError(t, x.Delete(ctx, 8))
	_, err := x.Vacuum(ctx)
	require.NoError(t, err)
	require.NoError(t, x.Delete(ctx, 9))

	want, _, err := x.Search(ctx, vecs[0], 10, SearchOptions{NumProbes: 2})
	require.NoError(t, err)
	require.NoError(t, x.Close())
	require.NoError(t, store.Close())

	store, err = pagestore.Open(ctx, dev.Reopen())
	require.NoError(t, err)
	y, err := Open(ctx, store)
	require.NoError(t, err)

	assert.Equal(t, index.StateReady, y.State())
	assert.Equal(t, 117, y.Len())
	assert.Equal(t, x.Centroids(), y.Centroids())
	got, _, err := y.Search(ctx, vecs[0], 10, SearchOptions{NumProbes: 2})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Sequence numbers continue after the recovered ones.
	require.NoError(t, y.Insert(ctx, 7, vecs[7]))
	l, ok := y.ListOf(7)
	require.True(t, ok)
	assert.Less(t, l, 4)
	_, err = y.Vacuum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 118, y.Len())
}

func TestIndex_ReopenTombstoneBeforeMember(t *testing.T) {
	ctx := context.Background()
	vecs := testutil.NewRNG(10).ClusteredVectors(40, 4, 4)
	x, store, dev := newTestIndex(t, withParams(4, 4))
	require.NoError(t, x.Build(ctx, testutil.Seq(vecs)))

	// A delete that raced an insert can land its tombstone ahead of the
	// member record on the chain.
	li, ok := x.ListOf(3)
	require.True(t, ok)
	l := x.lists[li]
	members := l.members
	seq := x.clock.Load() + 1
	require.NoError(t, l.chain.Append(ctx, appendTombstone(nil, seq, 1000)))
	require.NoError(t, l.chain.Append(ctx, appendMember(nil, seq, 1000, vecs[3])))
	x.clock.Store(seq)
	require.NoError(t, x.writeMeta(ctx))
	require.NoError(t, x.Close())
	require.NoError(t, store.Close())

	store, err := pagestore.Open(ctx, dev.Reopen())
	require.NoError(t, err)
	y, err := Open(ctx, store)
	require.NoError(t, err)

	assert.Equal(t, 40, y.Len())
	_, ok = y.ListOf(1000)
	assert.False(t, ok)
	assert.Equal(t, members, y.lists[li].members)

	res, _, err := y.Search(ctx, vecs[3], 40, SearchOptions{NumProbes: 4})
	require.NoError(t, err)
	for _, r := range res {
		assert.NotEqual(t, uint64(1000), r.ID)
	}

	require.NoError(t, y.Delete(ctx, 1000))
	require.NoError(t, y.Insert(ctx, 1000, vecs[3]))
	assert.Equal(t, 41, y.Len())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name  string
		apply func(o *Options)
		want  error
	}{
		{"default", func(o *Options) {}, nil},
		{"lists", func(o *Options) { o.NumLists = 0 }, index.ErrInvalidParameter},
		{"probes", func(o *Options) { o.NumProbes = 0 }, index.ErrInvalidParameter},
		{"iterations", func(o *Options) { o.MaxIterations = 0 }, index.ErrInvalidParameter},
		{"sparse", func(o *Options) { o.VectorType = vector.TypeSparse }, index.ErrTypeMismatch},
		{"jaccard on dense", func(o *Options) { o.Distance = distance.Jaccard }, index.ErrTypeMismatch},
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

	opts := DefaultOptions
	assert.Equal(t, 5000, opts.sampleSize())
	opts.SampleSize = 10
	assert.Equal(t, 100, opts.sampleSize())
}
