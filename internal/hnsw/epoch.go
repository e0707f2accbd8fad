package hnsw

import (
	"context"
	"sync"
)

// epochs tracks in-flight readers so that reclaim can wait for every reader
// that started before a given point.
type epochs struct {
	mu      sync.Mutex
	current uint64
	active  map[uint64]int
	changed chan struct{}
}

func newEpochs() *epochs {
	return &epochs{
		active:  make(map[uint64]int),
		changed: make(chan struct{}),
	}
}

// enter registers a reader in the current epoch.
func (e *epochs) enter() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[e.current]++
	return e.current
}

func (e *epochs) leave(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[epoch]--; e.active[epoch] <= 0 {
		delete(e.active, epoch)
	}
	close(e.changed)
	e.changed = make(chan struct{})
}

// advance starts a new epoch and returns it. Readers registered before the
// call have a smaller epoch.
func (e *epochs) advance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current++
	return e.current
}

// wait blocks until no reader from an epoch before the given one is active.
func (e *epochs) wait(ctx context.Context, before uint64) error {
	for {
		e.mu.Lock()
		busy := false
		for ep := range e.active {
			if ep < before {
				busy = true
				break
			}
		}
		ch := e.changed
		e.mu.Unlock()

		if !busy {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// inflight returns the number of registered readers.
func (e *epochs) inflight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.active {
		n += c
	}
	return n
}
