package hnsw

import (
	"context"

	"github.com/hupe1980/vecindex/index"
)

// Delete tombstones id. Deleting an unknown id is a no-op. The node keeps
// routing searches until Vacuum reclaims it.
func (g *Graph) Delete(ctx context.Context, id uint64) error {
	if err := g.checkReady(); err != nil {
		return err
	}

	g.idMu.Lock()
	slot, ok := g.ids[id]
	if !ok {
		g.idMu.Unlock()
		return nil
	}
	n := g.nodes.Load().get(slot)
	if n == nil {
		g.idMu.Unlock()
		return index.InvalidParameter("id", "insert of %d still in progress", id)
	}
	delete(g.ids, id)
	g.idMu.Unlock()

	n.mu.Lock()
	n.deleted.Store(true)
	if err := g.persist(ctx, n); err != nil {
		n.deleted.Store(false)
		n.mu.Unlock()

		g.idMu.Lock()
		g.ids[id] = slot
		g.idMu.Unlock()
		return err
	}
	n.mu.Unlock()

	g.pendingMu.Lock()
	g.pending.Add(slot)
	g.pendingMu.Unlock()

	if ep := g.entry.Load(); ep != nil && ep.node == n {
		return g.replaceEntry(ctx)
	}
	return nil
}
