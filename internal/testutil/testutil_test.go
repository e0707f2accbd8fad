package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/vector"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(1)
	vecs := rng.UniformVectors(10, 4)
	require.Len(t, vecs, 10)
	for _, v := range vecs {
		assert.Equal(t, 4, v.Dim())
		for _, x := range vector.Float32s(v) {
			assert.GreaterOrEqual(t, x, float32(0))
			assert.Less(t, x, float32(1))
		}
	}

	rng.Reset()
	assert.Equal(t, vecs, rng.UniformVectors(10, 4))
}

func TestClusteredVectors(t *testing.T) {
	vecs := NewRNG(2).ClusteredVectors(8, 3, 4)
	for i, v := range vecs {
		x := vector.Float32s(v)
		center := float32(i%4) * clusterSpacing
		assert.GreaterOrEqual(t, x[0], center)
		assert.Less(t, x[0], center+1)
	}
}

func TestBinaryVectors(t *testing.T) {
	vecs := NewRNG(3).BinaryVectors(5, 70)
	for _, v := range vecs {
		assert.Equal(t, vector.TypeBinary, v.Type())
		assert.Equal(t, 70, v.Dim())
	}
}

func TestBruteForceRecall(t *testing.T) {
	vecs := []vector.Vector{
		vector.MustDense(0, 0),
		vector.MustDense(5, 5),
		vector.MustDense(1, 0),
		vector.MustDense(1, 0),
	}
	want := BruteForce(distance.L2, vecs, nil, vector.MustDense(0, 0), 3)
	assert.Equal(t, []uint64{0, 2, 3}, want)

	live := func(i int) bool { return i != 2 }
	assert.Equal(t, []uint64{0, 3}, BruteForce(distance.L2, vecs, live, vector.MustDense(0, 0), 2))

	got := []index.Result{{ID: 0}, {ID: 1}, {ID: 3}}
	assert.InDelta(t, 2.0/3.0, Recall(got, want), 1e-9)
	assert.Equal(t, 1.0, Recall(nil, nil))

	var ids []uint64
	for id := range Seq(vecs) {
		ids = append(ids, id)
	}
	assert.Equal(t, []uint64{0, 1, 2, 3}, ids)
}
