package ivf

import (
	"context"
	"errors"
	"slices"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/searcher"
	"github.com/hupe1980/vecindex/vector"
)

const ctxCheckInterval = 64

var errStop = errors.New("ivf: scan stopped")

type rankedList struct {
	list int
	dist float64
}

// Search returns the k nearest live members among the NumProbes lists
// closest to q, ordered by distance, then id. An exhausted context or
// budget yields the best results found so far with stats.Partial set.
func (x *Index) Search(ctx context.Context, q vector.Vector, k int, opts SearchOptions) ([]index.Result, index.SearchStats, error) {
	var stats index.SearchStats
	if err := x.checkReady(); err != nil {
		return nil, stats, err
	}
	if k <= 0 {
		return nil, stats, index.InvalidParameter("k", "must be positive, got %d", k)
	}
	probes := opts.NumProbes
	if probes == 0 {
		probes = x.opts.NumProbes
	}
	if probes < 0 {
		return nil, stats, index.InvalidParameter("numProbes", "must be positive, got %d", probes)
	}
	if opts.MaxDistanceComputations < 0 {
		return nil, stats, index.InvalidParameter("maxDistanceComputations", "must not be negative, got %d", opts.MaxDistanceComputations)
	}
	query, err := x.space.Query(q)
	if err != nil {
		return nil, stats, err
	}
	if ctx.Err() != nil {
		stats.Partial = true
		return nil, stats, nil
	}

	s := &scan{
		ctx:     ctx,
		q:       query,
		t:       x.opts.VectorType,
		k:       k,
		budget:  opts.MaxDistanceComputations,
		results: searcher.NewPriorityQueue(true),
	}

	ranked := make([]rankedList, len(x.lists))
	for i, l := range x.lists {
		ranked[i] = rankedList{list: i, dist: query.Distance(l.centroid)}
	}
	s.stats.DistanceComputations += len(ranked)
	slices.SortFunc(ranked, func(a, b rankedList) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return a.list - b.list
		}
	})

	for _, r := range ranked[:min(probes, len(ranked))] {
		if err := s.list(x.lists[r.list]); err != nil {
			if errors.Is(err, errStop) || ctx.Err() != nil {
				s.stopped = true
				break
			}
			return nil, s.stats, err
		}
	}

	items := s.results.AppendSorted(nil)
	results := make([]index.Result, len(items))
	for i, it := range items {
		results[i] = index.Result{ID: it.ID, Distance: it.Distance}
	}
	s.stats.Partial = s.stopped
	return results, s.stats, nil
}

// scan is the state of one search.
type scan struct {
	ctx     context.Context
	q       *distance.Query
	t       vector.Type
	k       int
	budget  int
	stats   index.SearchStats
	results *searcher.PriorityQueue
	stopped bool
}

func (s *scan) list(l *list) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.chain.Scan(s.ctx, func(data []byte) error {
		r, err := peekRecord(data)
		if err != nil {
			return err
		}
		if r.kind != recMember || l.dead.Contains(r.seq) {
			return nil
		}
		if s.budget > 0 && s.stats.DistanceComputations >= s.budget {
			s.stopped = true
			return errStop
		}
		if s.stats.DistanceComputations%ctxCheckInterval == 0 && s.ctx.Err() != nil {
			s.stopped = true
			return errStop
		}
		r, err = decodeRecord(s.t, data)
		if err != nil {
			return err
		}
		s.stats.DistanceComputations++
		s.stats.Visited++
		// Seq carries the id so that equal distances order by id.
		s.results.PushBounded(searcher.Item{ID: r.id, Distance: s.q.Distance(r.vec), Seq: r.id}, s.k)
		return nil
	})
}
