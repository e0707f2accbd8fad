package searcher

// Item is an entry of a PriorityQueue.
type Item struct {
	// ID identifies the candidate (a graph slot or a host id).
	ID uint64
	// Distance is the priority of the item.
	Distance float64
	// Seq breaks distance ties: the smaller sequence is the better item.
	Seq uint64
}

// Better reports whether a ranks before b: smaller distance first, then
// smaller sequence.
func Better(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Seq < b.Seq
}

// PriorityQueue implements a binary heap holding Items.
// Value-based storage, no container/heap interface overhead.
//
// A min-queue pops the best item first; a max-queue pops the worst item
// first and is used to keep the best k items.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue(isMaxHeap bool) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]Item, 0, 16),
	}
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of elements in the heap.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// Top returns the top element of the heap.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts an item into a max-queue holding at most capacity
// items. When the queue is full the item replaces the worst one only if it
// ranks better. It reports whether the item was kept.
func (pq *PriorityQueue) PushBounded(item Item, capacity int) bool {
	if len(pq.items) < capacity {
		pq.Push(item)
		return true
	}
	top := pq.items[0]
	if pq.isMaxHeap && Better(item, top) {
		pq.items[0] = item
		pq.siftDown(0)
		return true
	}
	return false
}

// Pop removes and returns the top element from the heap.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

// Items returns the heap contents in heap order. The slice is reused.
func (pq *PriorityQueue) Items() []Item {
	return pq.items
}

// AppendSorted appends the queue contents best-first to dst, leaving the
// queue empty.
func (pq *PriorityQueue) AppendSorted(dst []Item) []Item {
	n := len(pq.items)
	start := len(dst)
	for i := 0; i < n; i++ {
		dst = append(dst, Item{})
	}
	out := dst[start:]
	for i := 0; i < n; i++ {
		item, _ := pq.Pop()
		if pq.isMaxHeap {
			out[n-1-i] = item
		} else {
			out[i] = item
		}
	}
	return dst
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return Better(pq.items[j], pq.items[i])
	}
	return Better(pq.items[i], pq.items[j])
}

// siftUp moves the element at index i up the heap until the heap invariant is restored.
func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(i, parent) {
			break
		}
		pq.items[i], pq.items[parent] = pq.items[parent], pq.items[i]
		i = parent
	}
}

// siftDown moves the element at index i down the heap until the heap invariant is restored.
func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && pq.less(right, left) {
			child = right
		}
		if !pq.less(child, i) {
			break
		}
		pq.items[i], pq.items[child] = pq.items[child], pq.items[i]
		i = child
	}
}
