package hnsw

import (
	"context"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/searcher"
	"github.com/hupe1980/vecindex/vector"
)

// ctxCheckInterval is the number of distance computations between context
// checks.
const ctxCheckInterval = 64

// walker carries the state of one traversal. It is owned by a single
// goroutine.
type walker struct {
	g      *Graph
	ctx    context.Context
	q      *distance.Query
	s      *searcher.Searcher
	epoch  uint64
	budget int
	stats  index.SearchStats
	// stopped is set once the context or the budget ran out.
	stopped bool
}

func (g *Graph) newWalker(ctx context.Context, q *distance.Query, budget int) *walker {
	return &walker{
		g:      g,
		ctx:    ctx,
		q:      q,
		s:      searcher.Get(),
		epoch:  g.epochs.enter(),
		budget: budget,
	}
}

func (w *walker) release() {
	searcher.Put(w.s)
	w.g.epochs.leave(w.epoch)
}

func (w *walker) distance(n *node) (float64, bool) {
	if w.stopped {
		return 0, false
	}
	if w.budget > 0 && w.stats.DistanceComputations >= w.budget {
		w.stopped = true
		return 0, false
	}
	if w.stats.DistanceComputations%ctxCheckInterval == 0 && w.ctx.Err() != nil {
		w.stopped = true
		return 0, false
	}
	w.stats.DistanceComputations++
	return w.q.DistanceWithNorm(n.vec, n.norm), true
}

func (w *walker) item(n *node) (searcher.Item, bool) {
	d, ok := w.distance(n)
	return searcher.Item{ID: uint64(n.slot), Distance: d, Seq: n.seq}, ok
}

// greedy descends from cur through layers from..to (inclusive), moving to
// the closest neighbor until no neighbor improves.
func (w *walker) greedy(cur searcher.Item, from, to int) searcher.Item {
	nodes := w.g.nodes.Load()
	for level := from; level >= to; level-- {
		for changed := true; changed; {
			changed = false
			n := nodes.get(uint32(cur.ID))
			if n == nil {
				break
			}
			for _, nb := range n.neighbors(level) {
				m := nodes.get(nb.Slot)
				if m == nil {
					continue
				}
				it, ok := w.item(m)
				if !ok {
					return cur
				}
				w.stats.Visited++
				if searcher.Better(it, cur) {
					cur = it
					changed = true
				}
			}
		}
	}
	return cur
}

// searchLayer runs a bounded best-first search at one layer and returns up
// to ef items best-first. Deleted nodes are expanded but only returned when
// includeDeleted is set. The returned slice is reused by the next call.
func (w *walker) searchLayer(seeds []searcher.Item, level, ef int, includeDeleted bool) []searcher.Item {
	nodes := w.g.nodes.Load()
	s := w.s
	s.Visited.Reset()
	s.Candidates.Reset()
	s.Results.Reset()

	accept := func(n *node) bool { return includeDeleted || !n.deleted.Load() }

	for _, it := range seeds {
		if !s.Visited.Visit(it.ID) {
			continue
		}
		n := nodes.get(uint32(it.ID))
		if n == nil {
			continue
		}
		s.Candidates.Push(it)
		if accept(n) {
			s.Results.PushBounded(it, ef)
		}
	}

	for s.Candidates.Len() > 0 && !w.stopped {
		c, _ := s.Candidates.Pop()
		if worst, ok := s.Results.Top(); ok && s.Results.Len() >= ef && searcher.Better(worst, c) {
			break
		}

		n := nodes.get(uint32(c.ID))
		if n == nil {
			continue
		}
		for _, nb := range n.neighbors(level) {
			if !s.Visited.Visit(uint64(nb.Slot)) {
				continue
			}
			m := nodes.get(nb.Slot)
			if m == nil || m.level < level {
				continue
			}
			it, ok := w.item(m)
			if !ok {
				break
			}
			w.stats.Visited++

			if worst, ok := s.Results.Top(); !ok || s.Results.Len() < ef || searcher.Better(it, worst) {
				s.Candidates.Push(it)
				if accept(m) {
					s.Results.PushBounded(it, ef)
				}
			}
		}
	}

	s.Scratch = s.Results.AppendSorted(s.Scratch[:0])
	return s.Scratch
}

// Search returns the k nearest live nodes to q ordered by distance, then
// insertion order. An exhausted context or budget yields the best results
// found so far with stats.Partial set.
func (g *Graph) Search(ctx context.Context, q vector.Vector, k int, opts SearchOptions) ([]index.Result, index.SearchStats, error) {
	if err := g.checkReady(); err != nil {
		return nil, index.SearchStats{}, err
	}
	if k <= 0 {
		return nil, index.SearchStats{}, index.InvalidParameter("k", "must be positive, got %d", k)
	}
	ef := opts.EFSearch
	if ef == 0 {
		ef = g.opts.EFSearch
	}
	if ef < k {
		return nil, index.SearchStats{}, index.InvalidParameter("efSearch", "%d is smaller than k=%d", ef, k)
	}
	if opts.MaxDistanceComputations < 0 {
		return nil, index.SearchStats{}, index.InvalidParameter("maxDistanceComputations", "must not be negative, got %d", opts.MaxDistanceComputations)
	}
	query, err := g.space.Query(q)
	if err != nil {
		return nil, index.SearchStats{}, err
	}

	w := g.newWalker(ctx, query, opts.MaxDistanceComputations)
	defer w.release()

	if ctx.Err() != nil {
		return nil, index.SearchStats{Partial: true}, nil
	}

	ep := g.entry.Load()
	if ep == nil {
		return nil, w.stats, nil
	}
	cur, ok := w.item(ep.node)
	if !ok {
		w.stats.Partial = true
		return nil, w.stats, nil
	}
	w.stats.Visited++
	cur = w.greedy(cur, ep.maxLayer, 1)
	found := w.searchLayer([]searcher.Item{cur}, 0, ef, false)

	nodes := g.nodes.Load()
	results := make([]index.Result, 0, min(k, len(found)))
	for _, it := range found {
		if len(results) == k {
			break
		}
		n := nodes.get(uint32(it.ID))
		if n == nil || n.deleted.Load() {
			continue
		}
		results = append(results, index.Result{ID: n.id, Distance: it.Distance})
	}
	w.stats.Partial = w.stopped
	return results, w.stats, nil
}
