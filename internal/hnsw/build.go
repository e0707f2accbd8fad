package hnsw

import (
	"context"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/vector"
)

// Build inserts all vectors of seq into an empty graph with a bounded
// worker pool and publishes it as Ready. On any failure the graph is reset
// to Empty and its records are freed.
func (g *Graph) Build(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) error {
	if !g.state.CompareAndSwap(int32(index.StateEmpty), int32(index.StateBuilding)) {
		if s := g.State(); s == index.StateClosed {
			return &index.NotReadyError{State: s}
		}
		return index.InvalidParameter("state", "build requires an empty graph, got %s", g.State())
	}

	start := time.Now()
	workers := g.opts.workers()
	g.logger.Info("build started", "workers", workers)

	g.mu.Lock()
	err := g.writeMeta(ctx)
	g.mu.Unlock()

	if err == nil {
		err = g.insertAll(ctx, seq, workers)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		cleanup := context.WithoutCancel(ctx)
		g.resetLocked(cleanup)
		if merr := g.writeMeta(cleanup); merr != nil {
			g.logger.Error("failed to write meta after aborted build", "error", merr)
		}
		g.logger.Warn("build aborted", "error", err)
		return err
	}

	g.state.Store(int32(index.StateReady))
	if err := g.writeMeta(ctx); err != nil {
		g.state.Store(int32(index.StateBuilding))
		g.resetLocked(context.WithoutCancel(ctx))
		return err
	}
	g.logger.Info("build finished", "nodes", g.Len(), "duration", time.Since(start))
	return nil
}

func (g *Graph) insertAll(ctx context.Context, seq iter.Seq2[uint64, vector.Vector], workers int) error {
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for id, v := range seq {
		if ectx.Err() != nil {
			break
		}
		if g.entry.Load() == nil {
			// Seed the entry point before fanning out.
			if err := g.insert(ectx, id, v); err != nil {
				_ = eg.Wait()
				return err
			}
			continue
		}
		eg.Go(func() error {
			if err := g.rc.AcquireBackground(ectx); err != nil {
				return err
			}
			defer g.rc.ReleaseBackground()
			return g.insert(ectx, id, v)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
