package ivf

import "github.com/hupe1980/vecindex/index"

// ListStats describes one inverted list.
type ListStats struct {
	List       int
	Members    int
	Tombstones int
	Pages      int
}

// Stats describes the index.
type Stats struct {
	State   index.State
	Members int
	Lists   []ListStats
}

// Stats returns a snapshot of the index statistics.
func (x *Index) Stats() Stats {
	st := Stats{State: x.State(), Members: x.Len()}
	if st.State != index.StateReady {
		return st
	}
	st.Lists = make([]ListStats, len(x.lists))
	for i, l := range x.lists {
		l.mu.RLock()
		st.Lists[i] = ListStats{
			List:       i,
			Members:    l.members,
			Tombstones: int(l.dead.GetCardinality()),
			Pages:      l.chain.Pages(),
		}
		l.mu.RUnlock()
	}
	return st
}
