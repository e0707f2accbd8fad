package testutil

import (
	"iter"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/vector"
)

// clusterSpacing separates the centers of ClusteredVectors.
const clusterSpacing = 10

// RNG is a seeded, thread-safe random source.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed uint64
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(seed, seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(r.seed, r.seed))
}

// IntN returns a pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UniformVectors generates dense vectors with values in [0, 1).
// Uses a single backing array.
func (r *RNG) UniformVectors(num, dim int) []vector.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vecs := make([]vector.Vector, num)
	for i := range num {
		x := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range x {
			x[j] = r.rand.Float32()
		}
		vecs[i] = vector.MustDense(x...)
	}
	return vecs
}

// ClusteredVectors generates dense vectors in well separated clusters:
// vector i lies in the unit cube at (i%clusters)*10 on every axis.
func (r *RNG) ClusteredVectors(num, dim, clusters int) []vector.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	vecs := make([]vector.Vector, num)
	for i := range vecs {
		x := make([]float32, dim)
		center := float32(i%clusters) * clusterSpacing
		for j := range x {
			x[j] = center + r.rand.Float32()
		}
		vecs[i] = vector.MustDense(x...)
	}
	return vecs
}

// BinaryVectors generates binary vectors of the given bit count.
func (r *RNG) BinaryVectors(num, bits int) []vector.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	vecs := make([]vector.Vector, num)
	for i := range vecs {
		b := make([]bool, bits)
		for j := range b {
			b[j] = r.rand.IntN(2) == 1
		}
		v, err := vector.NewBinaryFromBools(b)
		if err != nil {
			panic(err)
		}
		vecs[i] = v
	}
	return vecs
}

// Seq yields vecs keyed by their position.
func Seq(vecs []vector.Vector) iter.Seq2[uint64, vector.Vector] {
	return func(yield func(uint64, vector.Vector) bool) {
		for i, v := range vecs {
			if !yield(uint64(i), v) {
				return
			}
		}
	}
}

// BruteForce returns the ids of the k vectors nearest to q under kind,
// nearest first, ties by id. live filters positions; nil keeps all.
func BruteForce(kind distance.Kind, vecs []vector.Vector, live func(int) bool, q vector.Vector, k int) []uint64 {
	hits := make([]index.Result, 0, len(vecs))
	for i, v := range vecs {
		if live != nil && !live(i) {
			continue
		}
		d, err := distance.Distance(kind, q, v)
		if err != nil {
			panic(err)
		}
		hits = append(hits, index.Result{ID: uint64(i), Distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	ids := make([]uint64, 0, k)
	for i := 0; i < k && i < len(hits); i++ {
		ids = append(ids, hits[i].ID)
	}
	return ids
}

// Recall returns the fraction of want found in got.
func Recall(got []index.Result, want []uint64) float64 {
	if len(want) == 0 {
		if len(got) == 0 {
			return 1
		}
		return 0
	}
	set := make(map[uint64]struct{}, len(want))
	for _, id := range want {
		set[id] = struct{}{}
	}
	hits := 0
	for _, r := range got {
		if _, ok := set[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}
