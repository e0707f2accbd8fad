package hnsw

import (
	"context"
	"slices"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/searcher"
	"github.com/hupe1980/vecindex/vector"
)

// Insert adds v under id. The graph must be Ready and id must not be live.
func (g *Graph) Insert(ctx context.Context, id uint64, v vector.Vector) error {
	if err := g.checkReady(); err != nil {
		return err
	}
	return g.insert(ctx, id, v)
}

func (g *Graph) insert(ctx context.Context, id uint64, v vector.Vector) error {
	if err := g.space.Check(v); err != nil {
		return err
	}

	g.idMu.Lock()
	if _, ok := g.ids[id]; ok {
		g.idMu.Unlock()
		return index.InvalidParameter("id", "%d already exists", id)
	}
	slot := g.nextSlot.Add(1) - 1
	g.ids[id] = slot
	g.idMu.Unlock()

	level := g.randomLevel()
	if g.entry.Load() == nil {
		// The first node enters at layer 0; later nodes raise the max layer.
		level = 0
	}
	n := newNode(slot, id, g.clock.Add(1), level, v, g.space.NormSquared(v))
	n.size = g.nodeSize(n)

	if err := g.rc.AcquireMemory(ctx, n.size); err != nil {
		g.unreserve(id, slot)
		return err
	}
	rid, err := g.heap.Insert(ctx, encodeNode(nil, n))
	if err != nil {
		g.rc.ReleaseMemory(n.size)
		g.unreserve(id, slot)
		return err
	}
	n.rid = rid
	g.nodes.Load().set(slot, n)

	if err := g.link(ctx, n); err != nil {
		// Concurrent inserts may already point at n; retire it like a delete.
		g.retire(context.WithoutCancel(ctx), n)
		return err
	}
	n.ready.Store(true)
	return g.promote(ctx, n)
}

func (g *Graph) unreserve(id uint64, slot uint32) {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	if s, ok := g.ids[id]; ok && s == slot {
		delete(g.ids, id)
	}
}

func (g *Graph) retire(ctx context.Context, n *node) {
	g.unreserve(n.id, n.slot)

	n.mu.Lock()
	n.deleted.Store(true)
	if err := g.persist(ctx, n); err != nil {
		g.logger.Error("failed to persist retired node", "slot", n.slot, "error", err)
	}
	n.mu.Unlock()
	n.ready.Store(true)

	g.pendingMu.Lock()
	g.pending.Add(n.slot)
	g.pendingMu.Unlock()
}

// link connects n into every layer up to its level.
func (g *Graph) link(ctx context.Context, n *node) error {
	ep := g.entry.Load()
	if ep == nil {
		g.mu.Lock()
		if g.entry.Load() == nil {
			defer g.mu.Unlock()
			g.entry.Store(&entryPoint{node: n, maxLayer: n.level})
			return g.writeMeta(ctx)
		}
		g.mu.Unlock()
		ep = g.entry.Load()
	}

	query, err := g.space.Query(n.vec)
	if err != nil {
		return err
	}
	w := g.newWalker(ctx, query, 0)
	defer w.release()

	cur, ok := w.item(ep.node)
	if !ok {
		return ctx.Err()
	}
	if n.level < ep.maxLayer {
		cur = w.greedy(cur, ep.maxLayer, n.level+1)
	}
	seeds := []searcher.Item{cur}

	for level := min(n.level, ep.maxLayer); level >= 0; level-- {
		found := w.searchLayer(seeds, level, g.opts.EFConstruction, true)
		if w.stopped {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		selected := g.selectNeighbors(found, g.capacity(level), n.slot, nil)

		n.mu.Lock()
		n.setNeighbors(level, selected)
		n.mu.Unlock()

		linked := false
		for _, nb := range selected {
			back, err := g.addLink(ctx, nb.Slot, n, level, nb.Dist)
			if err != nil {
				return err
			}
			linked = linked || back
		}
		if level == 0 && !linked && len(selected) > 0 {
			if err := g.forceLink(ctx, selected[0], n); err != nil {
				return err
			}
		}
		seeds = slices.Clone(found)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return g.persist(ctx, n)
}

// selectNeighbors applies the diversity heuristic to candidates sorted
// best-first: a candidate is kept only if it is closer to the base than to
// every neighbor already kept. Deleted nodes are considered only when no
// live candidate exists. Slots for which skip reports true are ignored.
func (g *Graph) selectNeighbors(candidates []searcher.Item, m int, self uint32, skip func(uint32) bool) []Neighbor {
	nodes := g.nodes.Load()

	pick := func(allowDeleted bool) []Neighbor {
		selected := make([]Neighbor, 0, m)
		kept := make([]*node, 0, m)
		for _, c := range candidates {
			if len(selected) >= m {
				break
			}
			slot := uint32(c.ID)
			if slot == self || (skip != nil && skip(slot)) {
				continue
			}
			cn := nodes.get(slot)
			if cn == nil || (!allowDeleted && cn.deleted.Load()) {
				continue
			}
			good := true
			for _, s := range kept {
				if g.space.DistanceNorms(cn.vec, s.vec, cn.norm, s.norm) < c.Distance {
					good = false
					break
				}
			}
			if good {
				selected = append(selected, Neighbor{Slot: slot, Dist: c.Distance})
				kept = append(kept, cn)
			}
		}
		return selected
	}

	if selected := pick(false); len(selected) > 0 {
		return selected
	}
	return pick(true)
}

// addLink adds the reverse edge target -> n at level and reports whether
// target keeps n.
func (g *Graph) addLink(ctx context.Context, target uint32, n *node, level int, dist float64) (bool, error) {
	nodes := g.nodes.Load()
	t := nodes.get(target)
	if t == nil || level > t.level {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone {
		return false, nil
	}

	cur := t.neighbors(level)
	if hasNeighbor(cur, n.slot) {
		return true, nil
	}

	var next []Neighbor
	if capacity := g.capacity(level); len(cur) < capacity {
		next = make([]Neighbor, len(cur), len(cur)+1)
		copy(next, cur)
		next = append(next, Neighbor{Slot: n.slot, Dist: dist})
	} else {
		candidates := make([]searcher.Item, 0, len(cur)+1)
		candidates = append(candidates, searcher.Item{ID: uint64(n.slot), Distance: dist, Seq: n.seq})
		for _, nb := range cur {
			if m := nodes.get(nb.Slot); m != nil {
				candidates = append(candidates, searcher.Item{ID: uint64(nb.Slot), Distance: nb.Dist, Seq: m.seq})
			}
		}
		slices.SortFunc(candidates, compareItems)
		next = g.selectNeighbors(candidates, capacity, t.slot, nil)
	}
	t.setNeighbors(level, next)

	if err := g.persist(ctx, t); err != nil {
		return false, err
	}
	return hasNeighbor(next, n.slot), nil
}

// forceLink puts n into the layer-0 list of its nearest neighbor, replacing
// the farthest entry when the list is full.
func (g *Graph) forceLink(ctx context.Context, nearest Neighbor, n *node) error {
	t := g.nodes.Load().get(nearest.Slot)
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone {
		return nil
	}

	cur := t.neighbors(0)
	if hasNeighbor(cur, n.slot) {
		return nil
	}
	next := slices.Clone(cur)
	if len(next) < g.capacity(0) {
		next = append(next, Neighbor{Slot: n.slot, Dist: nearest.Dist})
	} else {
		worst := 0
		for i, nb := range next {
			if nb.Dist > next[worst].Dist {
				worst = i
			}
		}
		next[worst] = Neighbor{Slot: n.slot, Dist: nearest.Dist}
	}
	t.setNeighbors(0, next)
	return g.persist(ctx, t)
}

// promote makes n the entry point if it raises the max layer or the current
// entry point is gone.
func (g *Graph) promote(ctx context.Context, n *node) error {
	if ep := g.entry.Load(); ep != nil && n.level <= ep.maxLayer && !ep.node.deleted.Load() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ep := g.entry.Load()
	switch {
	case n.deleted.Load():
		return nil
	case ep == nil, ep.node.deleted.Load(), n.level > ep.maxLayer:
	default:
		return nil
	}
	if ep != nil && ep.node == n {
		return nil
	}
	if ep != nil && ep.node.deleted.Load() && n.level < ep.maxLayer {
		// A higher live node may exist.
		g.chooseEntryLocked()
	} else {
		g.entry.Store(&entryPoint{node: n, maxLayer: n.level})
		g.logger.Debug("entry point changed", "slot", n.slot, "layer", n.level)
	}
	return g.writeMeta(ctx)
}

func compareItems(a, b searcher.Item) int {
	switch {
	case searcher.Better(a, b):
		return -1
	case searcher.Better(b, a):
		return 1
	default:
		return 0
	}
}
