package searcher

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("MinHeap", func(t *testing.T) {
		pq := NewPriorityQueue(false)
		pq.Push(Item{ID: 1, Distance: 10})
		pq.Push(Item{ID: 2, Distance: 5})
		pq.Push(Item{ID: 3, Distance: 20})

		require.Equal(t, 3, pq.Len())
		top, ok := pq.Top()
		require.True(t, ok)
		assert.Equal(t, uint64(2), top.ID)

		var order []uint64
		for pq.Len() > 0 {
			item, _ := pq.Pop()
			order = append(order, item.ID)
		}
		assert.Equal(t, []uint64{2, 1, 3}, order)

		_, ok = pq.Pop()
		assert.False(t, ok)
	})

	t.Run("MaxHeap", func(t *testing.T) {
		pq := NewPriorityQueue(true)
		pq.Push(Item{ID: 1, Distance: 10})
		pq.Push(Item{ID: 2, Distance: 5})
		pq.Push(Item{ID: 3, Distance: 20})

		top, _ := pq.Top()
		assert.Equal(t, uint64(3), top.ID)
	})

	t.Run("TieBreakBySeq", func(t *testing.T) {
		pq := NewPriorityQueue(false)
		pq.Push(Item{ID: 1, Distance: 1, Seq: 9})
		pq.Push(Item{ID: 2, Distance: 1, Seq: 3})
		pq.Push(Item{ID: 3, Distance: 1, Seq: 5})

		got := pq.AppendSorted(nil)
		assert.Equal(t, []uint64{2, 3, 1}, []uint64{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("Bounded", func(t *testing.T) {
		pq := NewPriorityQueue(true)
		for i := 10; i > 0; i-- {
			pq.PushBounded(Item{ID: uint64(i), Distance: float64(i)}, 3)
		}
		assert.False(t, pq.PushBounded(Item{ID: 99, Distance: 50}, 3))

		got := pq.AppendSorted(nil)
		require.Len(t, got, 3)
		assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].Distance, got[1].Distance, got[2].Distance})
		assert.Zero(t, pq.Len())
	})

	t.Run("RandomSorted", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 1))
		pq := NewPriorityQueue(false)
		want := make([]Item, 500)
		for i := range want {
			want[i] = Item{ID: uint64(i), Distance: float64(rng.IntN(50)), Seq: uint64(i)}
			pq.Push(want[i])
		}
		sort.Slice(want, func(i, j int) bool { return Better(want[i], want[j]) })
		assert.Equal(t, want, pq.AppendSorted(nil))
	})
}

func TestVisitedSet(t *testing.T) {
	v := NewVisitedSet(8)
	assert.True(t, v.Visit(3))
	assert.False(t, v.Visit(3))
	assert.True(t, v.Visit(1000), "grows on demand")
	assert.True(t, v.Visited(1000))
	assert.False(t, v.Visited(4))

	v.Reset()
	assert.False(t, v.Visited(3))
	assert.False(t, v.Visited(1000))

	for i := uint64(0); i < dirtyLimit+10; i++ {
		v.Visit(i)
	}
	v.Reset()
	assert.False(t, v.Visited(dirtyLimit+5))
	assert.False(t, v.Visited(0))
}

func TestSearcherPool(t *testing.T) {
	s := Get()
	s.Visited.Visit(5)
	s.Candidates.Push(Item{ID: 1})
	s.Results.Push(Item{ID: 2})
	Put(s)

	s = Get()
	defer Put(s)
	assert.False(t, s.Visited.Visited(5))
	assert.Zero(t, s.Candidates.Len())
	assert.Zero(t, s.Results.Len())
}
