package kmeans

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/simd"
)

// Defaults for Config.
const (
	DefaultMaxIterations = 25
	DefaultTolerance     = 1e-4
)

// Config configures a training run.
type Config struct {
	// K is the number of centroids.
	K int

	// Kind is the distance used for assignment. Cosine trains spherical
	// k-means. Hamming and Jaccard are not accepted; callers train binary
	// data as 0/1 floats under L2.
	Kind distance.Kind

	// MaxIterations bounds the Lloyd iterations.
	MaxIterations int

	// Tolerance stops training once no centroid moves farther than this
	// (Euclidean) in one iteration.
	Tolerance float64

	// Seed makes training deterministic.
	Seed uint64
}

// Result is the outcome of TrainKMeans.
type Result struct {
	// Centroids holds K centroids, flattened (K * dim).
	Centroids []float32
	// Assignments maps every sample to its centroid.
	Assignments []int
	// Counts holds the number of samples per centroid; never zero.
	Counts []int
	// Iterations is the number of Lloyd iterations run.
	Iterations int
	// Converged is set when training stopped on Tolerance.
	Converged bool
}

// TrainKMeans trains cfg.K centroids from the flattened vectors (n * dim)
// with k-means++ seeding and Lloyd iterations. Centroids that end an
// iteration without members are reseeded from the sample farthest from its
// nearest centroid; the returned result has no empty cluster.
func TrainKMeans(ctx context.Context, vectors []float32, dim int, cfg Config) (*Result, error) {
	if dim <= 0 || len(vectors)%dim != 0 {
		return nil, index.InvalidParameter("dimension", "%d does not divide %d values", dim, len(vectors))
	}
	n := len(vectors) / dim
	if cfg.K <= 0 {
		return nil, index.InvalidParameter("numLists", "must be positive, got %d", cfg.K)
	}
	if n < cfg.K {
		return nil, index.InvalidParameter("numLists", "%d lists need at least as many samples, got %d", cfg.K, n)
	}
	switch cfg.Kind {
	case distance.L2, distance.InnerProduct, distance.Cosine:
	default:
		return nil, index.InvalidParameter("distance", "k-means does not support %s", cfg.Kind)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}

	k := &trainer{
		dim:  dim,
		n:    n,
		k:    cfg.K,
		kind: cfg.Kind,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		data: vectors,
	}
	if cfg.Kind == distance.Cosine {
		k.data = append([]float32(nil), vectors...)
		for i := 0; i < n; i++ {
			normalize(k.row(i))
		}
	}

	if err := k.seed(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		Assignments: make([]int, n),
		Counts:      make([]int, cfg.K),
	}
	dists := make([]float64, n)
	prev := make([]float32, len(k.centroids))

	for res.Iterations < cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations++

		k.assign(res.Assignments, res.Counts, dists)
		copy(prev, k.centroids)
		k.update(res.Assignments, res.Counts)
		k.reseedEmpty(res.Assignments, res.Counts, dists)

		if k.maxMovement(prev) <= cfg.Tolerance {
			res.Converged = true
			break
		}
	}

	k.assign(res.Assignments, res.Counts, dists)
	k.fillEmpty(res.Assignments, res.Counts, dists)

	res.Centroids = k.centroids
	return res, nil
}

type trainer struct {
	dim, n, k int
	kind      distance.Kind
	rng       *rand.Rand
	data      []float32
	centroids []float32
}

func (t *trainer) row(i int) []float32 { return t.data[i*t.dim : (i+1)*t.dim] }

func (t *trainer) centroid(j int) []float32 { return t.centroids[j*t.dim : (j+1)*t.dim] }

// seed picks the initial centroids with k-means++: the first uniformly, each
// next one with probability proportional to its squared distance to the
// nearest chosen centroid.
func (t *trainer) seed(ctx context.Context) error {
	t.centroids = make([]float32, t.k*t.dim)
	chosen := make([]bool, t.n)
	nearest := make([]float64, t.n)

	first := t.rng.IntN(t.n)
	chosen[first] = true
	copy(t.centroid(0), t.row(first))
	for i := 0; i < t.n; i++ {
		nearest[i] = float64(simd.SquaredL2(t.row(i), t.centroid(0)))
	}

	for j := 1; j < t.k; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var total float64
		for i := 0; i < t.n; i++ {
			if !chosen[i] {
				total += nearest[i]
			}
		}

		pick := -1
		if total > 0 {
			r := t.rng.Float64() * total
			for i := 0; i < t.n; i++ {
				if chosen[i] {
					continue
				}
				r -= nearest[i]
				if r < 0 {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			// Remaining samples coincide with chosen centroids (or rounding
			// left r >= 0): take an unchosen sample uniformly.
			pick = t.randomUnchosen(chosen)
		}

		chosen[pick] = true
		copy(t.centroid(j), t.row(pick))
		for i := 0; i < t.n; i++ {
			if d := float64(simd.SquaredL2(t.row(i), t.centroid(j))); d < nearest[i] {
				nearest[i] = d
			}
		}
	}
	return nil
}

func (t *trainer) randomUnchosen(chosen []bool) int {
	skip := t.rng.IntN(t.n)
	for off := 0; off < t.n; off++ {
		i := (skip + off) % t.n
		if !chosen[i] {
			return i
		}
	}
	return skip
}

// assign moves every sample to its nearest centroid (ties: lowest index)
// and records the distance.
func (t *trainer) assign(assignments, counts []int, dists []float64) {
	clear(counts)
	for i := 0; i < t.n; i++ {
		j, d := nearestCentroid(t.kind, t.row(i), t.centroids, t.dim)
		assignments[i] = j
		dists[i] = d
		counts[j]++
	}
}

// update sets every non-empty centroid to the mean of its members.
func (t *trainer) update(assignments, counts []int) {
	sums := make([]float32, len(t.centroids))
	for i := 0; i < t.n; i++ {
		j := assignments[i]
		blas32.Axpy(1,
			blas32.Vector{N: t.dim, Inc: 1, Data: t.row(i)},
			blas32.Vector{N: t.dim, Inc: 1, Data: sums[j*t.dim : (j+1)*t.dim]},
		)
	}
	for j := 0; j < t.k; j++ {
		if counts[j] == 0 {
			continue
		}
		c := sums[j*t.dim : (j+1)*t.dim]
		blas32.Scal(1/float32(counts[j]), blas32.Vector{N: t.dim, Inc: 1, Data: c})
		if t.kind == distance.Cosine {
			normalize(c)
		}
		copy(t.centroid(j), c)
	}
}

// reseedEmpty moves every empty centroid onto the sample that is farthest
// from its assigned centroid. Each sample is used at most once per call.
func (t *trainer) reseedEmpty(assignments, counts []int, dists []float64) {
	for j := 0; j < t.k; j++ {
		if counts[j] != 0 {
			continue
		}
		i := farthest(assignments, counts, dists)
		if i < 0 {
			return
		}
		copy(t.centroid(j), t.row(i))
		counts[assignments[i]]--
		assignments[i] = j
		counts[j] = 1
		dists[i] = 0
	}
}

// fillEmpty runs after the final assignment. It hands every empty cluster
// the farthest sample of a cluster that has more than one member, so no
// cluster ends up empty when n >= k.
func (t *trainer) fillEmpty(assignments, counts []int, dists []float64) {
	t.reseedEmpty(assignments, counts, dists)
}

func farthest(assignments, counts []int, dists []float64) int {
	best := -1
	for i, d := range dists {
		if counts[assignments[i]] < 2 {
			continue
		}
		if best < 0 || d > dists[best] {
			best = i
		}
	}
	return best
}

func (t *trainer) maxMovement(prev []float32) float64 {
	var m float64
	for j := 0; j < t.k; j++ {
		d := float64(simd.SquaredL2(prev[j*t.dim:(j+1)*t.dim], t.centroid(j)))
		m = math.Max(m, d)
	}
	return math.Sqrt(m)
}

func normalize(v []float32) {
	n := simd.Dot(v, v)
	if n == 0 {
		return
	}
	blas32.Scal(float32(1/math.Sqrt(float64(n))), blas32.Vector{N: len(v), Inc: 1, Data: v})
}

func rawDistance(kind distance.Kind, a, b []float32) float64 {
	switch kind {
	case distance.InnerProduct:
		return -float64(simd.Dot(a, b))
	case distance.Cosine:
		na, nb := float64(simd.Dot(a, a)), float64(simd.Dot(b, b))
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - float64(simd.Dot(a, b))/math.Sqrt(na*nb)
	default:
		return float64(simd.SquaredL2(a, b))
	}
}

func nearestCentroid(kind distance.Kind, vec, centroids []float32, dim int) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for j := 0; j < len(centroids)/dim; j++ {
		if d := rawDistance(kind, vec, centroids[j*dim:(j+1)*dim]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}

// AssignPartition returns the index of the centroid nearest to vec. Ties
// resolve to the lowest index.
func AssignPartition(vec []float32, centroids []float32, dim int, kind distance.Kind) int {
	j, _ := nearestCentroid(kind, vec, centroids, dim)
	return j
}

type centroidDist struct {
	id   int
	dist float64
}

// FindClosestCentroids returns the indices of the n centroids closest to
// query, nearest first, ties by index.
func FindClosestCentroids(query []float32, centroids []float32, dim int, n int, kind distance.Kind) []int {
	k := len(centroids) / dim
	if n > k {
		n = k
	}

	dists := make([]centroidDist, k)
	for i := 0; i < k; i++ {
		dists[i] = centroidDist{id: i, dist: rawDistance(kind, query, centroids[i*dim:(i+1)*dim])}
	}

	sort.Slice(dists, func(i, j int) bool {
		if dists[i].dist != dists[j].dist {
			return dists[i].dist < dists[j].dist
		}
		return dists[i].id < dists[j].id
	})

	result := make([]int, n)
	for i := 0; i < n; i++ {
		result[i] = dists[i].id
	}
	return result
}
