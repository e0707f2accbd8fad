package ivf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
)

// Vacuum rewrites every list that has tombstones, dropping the dead members
// and the tombstone records. Lists are compacted independently and in
// parallel; a failed list is reported and keeps its tombstones. Old pages
// that could not be freed are reported in Errors without failing the list.
func (x *Index) Vacuum(ctx context.Context) (index.VacuumReport, error) {
	var report index.VacuumReport
	if err := x.checkReady(); err != nil {
		return report, err
	}

	x.vacuumMu.Lock()
	defer x.vacuumMu.Unlock()

	start := time.Now()
	var mu sync.Mutex

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(x.opts.workers())
	for _, l := range x.lists {
		l.mu.RLock()
		empty := l.dead.IsEmpty()
		l.mu.RUnlock()
		if empty {
			continue
		}

		eg.Go(func() error {
			if err := x.rc.AcquireBackground(ectx); err != nil {
				return err
			}
			defer x.rc.ReleaseBackground()

			reclaimed, err := x.compact(ectx, l)

			mu.Lock()
			defer mu.Unlock()
			report.Reclaimed += reclaimed
			var leak *pagestore.LeakError
			switch {
			case err == nil:
				report.Repaired++
			case errors.As(err, &leak):
				// Compacted; only the old pages leaked.
				report.Repaired++
				report.Errors = append(report.Errors, fmt.Errorf("free list %d: %w", l.id, err))
			case ectx.Err() != nil:
				return ectx.Err()
			default:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("compact list %d: %w", l.id, err))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}

	if report.Repaired > 0 {
		if err := x.writeMeta(ctx); err != nil {
			return report, err
		}
	}
	x.logger.Info("vacuum finished",
		"reclaimed", report.Reclaimed,
		"compacted", report.Repaired,
		"failed", report.Failed,
		"duration", time.Since(start))
	return report, nil
}

// compact rewrites the chain of l under its exclusive lock and returns the
// number of dead members removed. Once the new chain is in place the
// tombstones are gone even if the old pages could not be released.
func (x *Index) compact(ctx context.Context, l *list) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var decodeErr error
	_, err := l.chain.Rewrite(ctx, func(data []byte) bool {
		r, err := peekRecord(data)
		if err != nil {
			decodeErr = err
			return true
		}
		return r.kind == recMember && !l.dead.Contains(r.seq)
	})
	var leak *pagestore.LeakError
	if err != nil && !errors.As(err, &leak) {
		return 0, err
	}
	if decodeErr != nil {
		x.logger.Warn("kept undecodable record", "list", l.id, "error", decodeErr)
	}

	reclaimed := int(l.dead.GetCardinality())
	l.dead.Clear()
	// Publish the new head.
	if err := x.writeMeta(ctx); err != nil {
		return reclaimed, err
	}
	if leak != nil {
		x.logger.Error("failed to free old list pages", "list", l.id, "error", leak.Err)
		return reclaimed, leak
	}
	return reclaimed, nil
}
