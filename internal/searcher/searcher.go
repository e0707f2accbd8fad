package searcher

import "sync"

// Searcher is a reusable execution context for one search. It owns the
// scratch memory of the traversal so the steady state does not allocate.
//
// Searcher is NOT thread-safe. It is owned by a single goroutine between Get
// and Put.
type Searcher struct {
	// Visited tracks visited ids during graph traversal.
	Visited *VisitedSet

	// Candidates is the min-queue of ids still to expand.
	Candidates *PriorityQueue

	// Results is the max-queue holding the best ef ids found so far.
	Results *PriorityQueue

	// Scratch collects sorted results.
	Scratch []Item
}

var pool = sync.Pool{
	New: func() any {
		return &Searcher{
			Visited:    NewVisitedSet(1024),
			Candidates: NewPriorityQueue(false),
			Results:    NewPriorityQueue(true),
			Scratch:    make([]Item, 0, 64),
		}
	},
}

// Get returns a reset Searcher from the pool.
func Get() *Searcher {
	return pool.Get().(*Searcher)
}

// Put resets s and returns it to the pool.
func Put(s *Searcher) {
	s.Reset()
	pool.Put(s)
}

// Reset clears all scratch state.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Candidates.Reset()
	s.Results.Reset()
	s.Scratch = s.Scratch[:0]
}
