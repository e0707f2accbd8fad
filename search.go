package vecindex

import (
	"context"
	"time"

	"github.com/hupe1980/vecindex/internal/hnsw"
	"github.com/hupe1980/vecindex/internal/ivf"
	"github.com/hupe1980/vecindex/vector"
)

type searchOptions struct {
	efSearch    int
	numProbes   int
	maxDistance int
}

// SearchOption tunes a single search.
type SearchOption func(*searchOptions)

// WithEFSearch overrides the HNSW beam width for one query. It must be at
// least k. Ignored by IVFFlat.
func WithEFSearch(ef int) SearchOption {
	return func(o *searchOptions) {
		o.efSearch = ef
	}
}

// WithNumProbes overrides the number of IVFFlat lists scanned for one
// query. Ignored by HNSW.
func WithNumProbes(n int) SearchOption {
	return func(o *searchOptions) {
		o.numProbes = n
	}
}

// WithMaxDistanceComputations stops the search after n distance
// computations and returns the best results found so far.
func WithMaxDistanceComputations(n int) SearchOption {
	return func(o *searchOptions) {
		o.maxDistance = n
	}
}

// Search returns up to k ids nearest to q, nearest first. Ties are ordered
// by insertion. If ctx ends or the distance budget runs out, Search
// returns the results found so far without an error; use SearchWithStats
// to tell such partial results apart.
func (x *Index) Search(ctx context.Context, q vector.Vector, k int, optFns ...SearchOption) ([]Result, error) {
	res, _, err := x.SearchWithStats(ctx, q, k, optFns...)
	return res, err
}

// SearchWithStats is Search that also reports the work done.
func (x *Index) SearchWithStats(ctx context.Context, q vector.Vector, k int, optFns ...SearchOption) ([]Result, SearchStats, error) {
	var o searchOptions
	for _, fn := range optFns {
		fn(&o)
	}

	start := time.Now()
	var (
		res   []Result
		stats SearchStats
		err   error
	)
	if x.graph != nil {
		res, stats, err = x.graph.Search(ctx, q, k, hnsw.SearchOptions{
			EFSearch:                o.efSearch,
			MaxDistanceComputations: o.maxDistance,
		})
	} else {
		res, stats, err = x.cluster.Search(ctx, q, k, ivf.SearchOptions{
			NumProbes:               o.numProbes,
			MaxDistanceComputations: o.maxDistance,
		})
	}

	x.metrics.RecordSearch(k, stats.Partial, time.Since(start), err)
	x.logger.LogSearch(ctx, k, len(res), stats.Partial, err)
	return res, stats, err
}
