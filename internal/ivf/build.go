package ivf

import (
	"context"
	"iter"
	"math/rand/v2"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/kmeans"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/vector"
)

// Build trains the centroids on a sample of seq, inserts every vector and
// publishes the index as Ready. seq is iterated twice. On any failure the
// lists are freed and the index returns to Empty.
func (x *Index) Build(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) error {
	if !x.state.CompareAndSwap(int32(index.StateEmpty), int32(index.StateTraining)) {
		if s := x.State(); s == index.StateClosed {
			return &index.NotReadyError{State: s}
		}
		return index.InvalidParameter("state", "build requires an empty index, got %s", x.State())
	}

	start := time.Now()
	err := x.build(ctx, seq)
	if err != nil {
		x.reset(context.WithoutCancel(ctx))
		x.logger.Warn("build aborted", "error", err)
		return err
	}

	x.state.Store(int32(index.StateReady))
	if err := x.writeMeta(ctx); err != nil {
		x.reset(context.WithoutCancel(ctx))
		return err
	}
	x.logger.Info("build finished", "lists", len(x.lists), "members", x.Len(), "duration", time.Since(start))
	return nil
}

func (x *Index) build(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) error {
	samples, err := x.sample(ctx, seq)
	if err != nil {
		return err
	}
	x.logger.Info("training started", "samples", len(samples), "lists", x.opts.NumLists)

	centroids, err := x.train(ctx, samples)
	if err != nil {
		return err
	}

	lists := make([]*list, len(centroids))
	for i, c := range centroids {
		chain, err := pagestore.NewChain(ctx, x.store)
		if err != nil {
			x.lists = lists[:i]
			return err
		}
		lists[i] = &list{id: i, centroid: c, chain: chain, dead: roaring64.New()}
	}
	x.lists = lists
	if err := x.writeMeta(ctx); err != nil {
		return err
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(x.opts.workers())
	for id, v := range seq {
		if ectx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := x.rc.AcquireBackground(ectx); err != nil {
				return err
			}
			defer x.rc.ReleaseBackground()
			return x.insert(ectx, id, v)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// sample draws up to sampleSize vectors with reservoir sampling and
// validates them. It fails if seq holds fewer vectors than lists.
func (x *Index) sample(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) ([]vector.Vector, error) {
	size := x.opts.sampleSize()
	rng := rand.New(rand.NewPCG(x.opts.Seed, x.opts.Seed^0x5851f42d4c957f2d))

	var (
		samples []vector.Vector
		seen    int
		err     error
	)
	for _, v := range seq {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = x.space.Check(v); err != nil {
			break
		}
		seen++
		if len(samples) < size {
			samples = append(samples, v)
		} else if j := rng.IntN(seen); j < size {
			samples[j] = v
		}
	}
	if err != nil {
		return nil, err
	}
	if seen < x.opts.NumLists {
		return nil, index.InvalidParameter("numLists", "%d lists need at least as many vectors, got %d", x.opts.NumLists, seen)
	}
	return samples, nil
}

// train runs k-means over the float expansion of the samples and converts
// the centroids back to the index representation. Binary centroids are
// re-quantized at 0.5, so Hamming distance to a centroid equals squared L2
// on the expansion.
func (x *Index) train(ctx context.Context, samples []vector.Vector) ([]vector.Vector, error) {
	dim := x.opts.Dimension
	bytes := int64(len(samples) * dim * 4)
	if err := x.rc.AcquireMemory(ctx, bytes); err != nil {
		return nil, err
	}
	defer x.rc.ReleaseMemory(bytes)

	flat := make([]float32, 0, len(samples)*dim)
	for _, v := range samples {
		flat = append(flat, vector.Float32s(v)...)
	}

	kind := x.opts.Distance
	if kind == distance.Hamming || kind == distance.Jaccard {
		kind = distance.L2
	}
	res, err := kmeans.TrainKMeans(ctx, flat, dim, kmeans.Config{
		K:             x.opts.NumLists,
		Kind:          kind,
		MaxIterations: x.opts.MaxIterations,
		Tolerance:     x.opts.Tolerance,
		Seed:          x.opts.Seed,
	})
	if err != nil {
		return nil, err
	}
	x.logger.Debug("training finished", "iterations", res.Iterations, "converged", res.Converged)

	centroids := make([]vector.Vector, x.opts.NumLists)
	for i := range centroids {
		c := res.Centroids[i*dim : (i+1)*dim]
		if centroids[i], err = toCentroid(x.opts.VectorType, c); err != nil {
			return nil, err
		}
	}
	return centroids, nil
}

func toCentroid(t vector.Type, c []float32) (vector.Vector, error) {
	switch t {
	case vector.TypeHalf:
		return vector.NewHalfFromFloat32(c)
	case vector.TypeBinary:
		bits := make([]bool, len(c))
		for i, f := range c {
			bits[i] = f >= 0.5
		}
		return vector.NewBinaryFromBools(bits)
	default:
		return vector.NewDense(append([]float32(nil), c...))
	}
}

// reset frees every list and returns the index to Empty.
func (x *Index) reset(ctx context.Context) {
	for _, l := range x.lists {
		if err := l.chain.Free(ctx); err != nil {
			x.logger.Error("failed to free list", "list", l.id, "error", err)
		}
	}
	x.lists = nil

	x.idMu.Lock()
	x.owners = make(map[uint64]owner)
	x.idMu.Unlock()

	x.clock.Store(0)
	x.state.Store(int32(index.StateEmpty))
	if err := x.writeMeta(ctx); err != nil {
		x.logger.Error("failed to write meta after aborted build", "error", err)
	}
}
