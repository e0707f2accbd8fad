package hnsw

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/searcher"
)

// Vacuum repairs the neighbor lists that reference deleted or reclaimed
// nodes and then reclaims the deleted ones. Per-node failures are reported and leave the
// affected nodes pending; they do not abort the pass.
func (g *Graph) Vacuum(ctx context.Context) (index.VacuumReport, error) {
	var report index.VacuumReport
	if err := g.checkReady(); err != nil {
		return report, err
	}

	g.vacuumMu.Lock()
	defer g.vacuumMu.Unlock()

	start := time.Now()

	g.pendingMu.Lock()
	removed := g.pending.Clone()
	g.pendingMu.Unlock()

	// Runs even when nothing is pending: an insert racing the previous pass
	// can leave an edge to a slot that pass reclaimed.
	keep, err := g.repair(ctx, removed, &report)
	if err != nil {
		return report, err
	}
	if removed.IsEmpty() {
		if report.Repaired > 0 || report.Failed > 0 {
			g.logger.Info("vacuum repaired stale edges",
				"repaired", report.Repaired,
				"failed", report.Failed,
				"duration", time.Since(start))
		}
		return report, nil
	}

	if ep := g.entry.Load(); ep != nil && removed.Contains(ep.node.slot) {
		if err := g.replaceEntry(ctx); err != nil {
			return report, err
		}
	}

	// No in-flight traversal may still hold a path to a reclaimed slot.
	if err := g.epochs.wait(ctx, g.epochs.advance()); err != nil {
		return report, err
	}

	removed.AndNot(keep)
	nodes := g.nodes.Load()
	it := removed.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if err := g.reclaim(ctx, nodes, slot); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("reclaim slot %d: %w", slot, err))
			continue
		}
		report.Reclaimed++
	}

	g.logger.Info("vacuum finished",
		"reclaimed", report.Reclaimed,
		"repaired", report.Repaired,
		"failed", report.Failed,
		"duration", time.Since(start))
	return report, nil
}

func (g *Graph) reclaim(ctx context.Context, nodes *slotTable, slot uint32) error {
	n := nodes.get(slot)
	if n != nil {
		n.mu.Lock()
		err := g.heap.Delete(ctx, n.rid)
		n.gone = err == nil
		n.mu.Unlock()
		if err != nil {
			return err
		}
		nodes.clear(slot)
		g.rc.ReleaseMemory(n.size)
	}

	g.pendingMu.Lock()
	g.pending.Remove(slot)
	g.pendingMu.Unlock()
	return nil
}

// repair rebuilds the lists of live nodes that reference removed or
// missing slots. It returns the removed slots that must stay pending because
// a referencing node could not be repaired.
func (g *Graph) repair(ctx context.Context, removed *roaring.Bitmap, report *index.VacuumReport) (*roaring.Bitmap, error) {
	nodes := g.nodes.Load()
	dangling := func(slot uint32) bool {
		return removed.Contains(slot) || nodes.get(slot) == nil
	}

	var todo []*node
	nodes.forEach(func(n *node) bool {
		if !n.live() {
			return true
		}
		for l := 0; l <= n.level; l++ {
			if slices.ContainsFunc(n.neighbors(l), func(nb Neighbor) bool { return dangling(nb.Slot) }) {
				todo = append(todo, n)
				break
			}
		}
		return true
	})

	var (
		mu   sync.Mutex
		keep = roaring.New()
	)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.workers())
	for _, n := range todo {
		eg.Go(func() error {
			if err := g.rc.AcquireBackground(ectx); err != nil {
				return err
			}
			defer g.rc.ReleaseBackground()

			err := g.repairNode(ectx, n, dangling)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ectx.Err() != nil {
					return ectx.Err()
				}
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("repair slot %d: %w", n.slot, err))
				for l := 0; l <= n.level; l++ {
					for _, nb := range n.neighbors(l) {
						if removed.Contains(nb.Slot) {
							keep.Add(nb.Slot)
						}
					}
				}
				return nil
			}
			report.Repaired++
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return keep, nil
}

// repairNode reselects the neighbors of n at every layer that references a
// dangling slot from its remaining neighbors plus a search seeded from the
// former neighbors of the dropped nodes.
func (g *Graph) repairNode(ctx context.Context, n *node, dangling func(uint32) bool) error {
	nodes := g.nodes.Load()
	query, err := g.space.Query(n.vec)
	if err != nil {
		return err
	}
	w := g.newWalker(ctx, query, 0)
	defer w.release()

	for level := 0; level <= n.level; level++ {
		cur := n.neighbors(level)
		if !slices.ContainsFunc(cur, func(nb Neighbor) bool { return dangling(nb.Slot) }) {
			continue
		}

		var seeds []searcher.Item
		seen := make(map[uint32]struct{})
		addSeed := func(slot uint32) {
			if slot == n.slot || dangling(slot) {
				return
			}
			if _, ok := seen[slot]; ok {
				return
			}
			seen[slot] = struct{}{}
			if m := nodes.get(slot); m != nil && m.level >= level {
				if it, ok := w.item(m); ok {
					seeds = append(seeds, it)
				}
			}
		}
		for _, nb := range cur {
			if !dangling(nb.Slot) {
				addSeed(nb.Slot)
				continue
			}
			if r := nodes.get(nb.Slot); r != nil {
				for _, rn := range r.neighbors(level) {
					addSeed(rn.Slot)
				}
			}
		}
		if len(seeds) == 0 {
			if ep := g.entry.Load(); ep != nil && ep.node != n && !dangling(ep.node.slot) {
				if it, ok := w.item(ep.node); ok {
					seeds = append(seeds, w.greedy(it, ep.maxLayer, level+1))
				}
			}
		}
		if w.stopped {
			return ctx.Err()
		}

		found := slices.Clone(w.searchLayer(seeds, level, g.opts.EFConstruction, true))
		if w.stopped {
			return ctx.Err()
		}

		n.mu.Lock()
		merged := found
		for _, nb := range n.neighbors(level) {
			if dangling(nb.Slot) || slices.ContainsFunc(merged, func(it searcher.Item) bool { return it.ID == uint64(nb.Slot) }) {
				continue
			}
			if m := nodes.get(nb.Slot); m != nil {
				merged = append(merged, searcher.Item{ID: uint64(nb.Slot), Distance: nb.Dist, Seq: m.seq})
			}
		}
		slices.SortFunc(merged, compareItems)
		n.setNeighbors(level, g.selectNeighbors(merged, g.capacity(level), n.slot, dangling))
		n.mu.Unlock()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return g.persist(ctx, n)
}
