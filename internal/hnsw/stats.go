package hnsw

import "github.com/hupe1980/vecindex/index"

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level       int
	Nodes       int
	Connections int
}

// Stats describes the graph.
type Stats struct {
	State    index.State
	Nodes    int
	Live     int
	Pending  int
	MaxLayer int
	// EntryPoint is the host id of the entry node; valid if HasEntry.
	EntryPoint uint64
	HasEntry   bool
	Levels     []LevelStats
	// Readers is the number of traversals in flight.
	Readers int
}

// Stats returns a snapshot of the graph statistics.
func (g *Graph) Stats() Stats {
	st := Stats{
		State:   g.State(),
		Live:    g.Len(),
		Readers: g.epochs.inflight(),
	}

	g.pendingMu.Lock()
	st.Pending = int(g.pending.GetCardinality())
	g.pendingMu.Unlock()

	if ep := g.entry.Load(); ep != nil {
		st.HasEntry = true
		st.EntryPoint = ep.node.id
		st.MaxLayer = ep.maxLayer
	}

	st.Levels = make([]LevelStats, st.MaxLayer+1)
	g.nodes.Load().forEach(func(n *node) bool {
		st.Nodes++
		for l := 0; l <= n.level; l++ {
			if l >= len(st.Levels) {
				st.Levels = append(st.Levels, LevelStats{Level: l})
			}
			st.Levels[l].Level = l
			st.Levels[l].Nodes++
			st.Levels[l].Connections += len(n.neighbors(l))
		}
		return true
	})
	return st
}
