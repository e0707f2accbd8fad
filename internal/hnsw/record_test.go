package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/vector"
)

func TestNodeRecord(t *testing.T) {
	space, err := distance.NewSpace(distance.Hamming, vector.TypeBinary, 12)
	require.NoError(t, err)
	v, err := vector.NewBinaryFromBools([]bool{true, false, true, true, false, false, false, false, true, false, false, true})
	require.NoError(t, err)

	n := newNode(7, 1234, 99, 2, v, 0)
	n.setNeighbors(0, []Neighbor{{Slot: 1, Dist: 0.5}, {Slot: 3, Dist: 2}})
	n.setNeighbors(2, []Neighbor{{Slot: 9, Dist: 4}})
	n.deleted.Store(true)

	got, err := decodeNode(space, encodeNode(nil, n))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.slot)
	assert.Equal(t, uint64(1234), got.id)
	assert.Equal(t, uint64(99), got.seq)
	assert.Equal(t, 2, got.level)
	assert.True(t, got.deleted.Load())
	assert.Equal(t, v.String(), got.vec.String())
	assert.Equal(t, n.neighbors(0), got.neighbors(0))
	assert.Empty(t, got.neighbors(1))
	assert.Equal(t, n.neighbors(2), got.neighbors(2))

	rec := encodeNode(nil, n)
	for _, cut := range []int{3, nodeHeaderSize + 2, len(rec) - 1} {
		_, err := decodeNode(space, rec[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}

	other, err := distance.NewSpace(distance.Hamming, vector.TypeBinary, 16)
	require.NoError(t, err)
	_, err = decodeNode(other, rec)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestGraphMeta(t *testing.T) {
	gm := graphMeta{
		state:    index.StateReady,
		hasEntry: true,
		entry:    17,
		maxLayer: 3,
		nextSlot: 400,
		clock:    401,
	}
	gm.opts = DefaultOptions
	gm.opts.Dimension = 128
	gm.opts.Seed = 5

	b := gm.encode()
	require.Len(t, b, metaSize)

	got, err := decodeMeta(b)
	require.NoError(t, err)
	assert.Equal(t, gm, *got)

	_, err = decodeMeta(b[:10])
	assert.ErrorIs(t, err, pagestore.ErrCorrupt)
}

func TestRandomLevel(t *testing.T) {
	g := &Graph{opts: Options{MaxLevel: 4, Seed: 1}, ml: 1 / 2.772588722239781}
	g.rng.Store(1)

	counts := make([]int, 5)
	for i := 0; i < 10000; i++ {
		l := g.randomLevel()
		require.GreaterOrEqual(t, l, 0)
		require.LessOrEqual(t, l, 4)
		counts[l]++
	}
	// With M=16 roughly 1/16 of the nodes reach layer 1.
	assert.Greater(t, counts[0], 9000)
	assert.Greater(t, counts[1], 300)
}
