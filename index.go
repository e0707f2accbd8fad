package vecindex

import (
	"context"
	"errors"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/hnsw"
	"github.com/hupe1980/vecindex/internal/ivf"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/storage"
	"github.com/hupe1980/vecindex/vector"
)

// engine is the part of the HNSW and IVFFlat APIs that does not differ.
type engine interface {
	Build(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) error
	Insert(ctx context.Context, id uint64, v vector.Vector) error
	Delete(ctx context.Context, id uint64) error
	Vacuum(ctx context.Context) (index.VacuumReport, error)
	State() index.State
	Len() int
	Close() error
}

var (
	_ engine = (*hnsw.Graph)(nil)
	_ engine = (*ivf.Index)(nil)
)

// Index is an approximate nearest neighbor index stored on a
// storage.Device. All methods are safe for concurrent use.
type Index struct {
	method  Method
	store   *pagestore.Store
	engine  engine
	graph   *hnsw.Graph
	cluster *ivf.Index

	opts    options
	logger  *Logger
	metrics MetricsCollector

	closeOnce sync.Once
	closeErr  error
}

// Create formats an empty device and creates an index with params on it.
// The index owns dev from then on; Close closes it.
func Create(ctx context.Context, dev storage.Device, params Params, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	if o.seed != nil {
		params.Seed = *o.seed
	}
	if err := params.Validate(); err != nil {
		o.logger.ErrorContext(ctx, "create failed", "error", err)
		return nil, err
	}

	kind := pagestore.EngineGraph
	if params.Method == MethodIVFFlat {
		kind = pagestore.EngineCluster
	}
	store, err := pagestore.Create(ctx, dev, kind, o.storeOptions)
	if err != nil {
		o.logger.ErrorContext(ctx, "create failed", "error", err)
		return nil, err
	}

	x := newIndex(params.Method, store, o)
	switch params.Method {
	case MethodHNSW:
		x.graph, err = hnsw.New(ctx, store, func(g *hnsw.Options) {
			*g = params.graphOptions()
			o.graphOptions(g)
		})
		x.engine = x.graph
	case MethodIVFFlat:
		x.cluster, err = ivf.New(ctx, store, func(c *ivf.Options) {
			*c = params.clusterOptions()
			o.clusterOptions(c)
		})
		x.engine = x.cluster
	}
	if err != nil {
		_ = store.Close()
		x.logger.ErrorContext(ctx, "create failed", "error", err)
		return nil, err
	}

	x.logger.InfoContext(ctx, "index created",
		"dimension", params.Dimension,
		"vectorType", params.VectorType,
		"distance", params.DistanceKind,
	)
	return x, nil
}

// Open opens an index previously created on dev. The method and persistent
// parameters are read from the device; an interrupted Build is discarded
// and the index reopens empty.
func Open(ctx context.Context, dev storage.Device, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	store, err := pagestore.Open(ctx, dev, o.storeOptions)
	if err != nil {
		o.logger.ErrorContext(ctx, "open failed", "error", err)
		return nil, err
	}

	var x *Index
	switch store.Engine() {
	case pagestore.EngineGraph:
		x = newIndex(MethodHNSW, store, o)
		x.graph, err = hnsw.Open(ctx, store, o.graphOptions)
		x.engine = x.graph
	case pagestore.EngineCluster:
		x = newIndex(MethodIVFFlat, store, o)
		x.cluster, err = ivf.Open(ctx, store, o.clusterOptions)
		x.engine = x.cluster
	default:
		err = &index.StorageError{Op: "open", Err: errors.New("device holds no index")}
	}
	if err != nil {
		_ = store.Close()
		o.logger.ErrorContext(ctx, "open failed", "error", err)
		return nil, err
	}

	x.logger.InfoContext(ctx, "index opened",
		"state", x.engine.State(),
		"vectors", x.engine.Len(),
	)
	return x, nil
}

func newIndex(method Method, store *pagestore.Store, o options) *Index {
	return &Index{
		method:  method,
		store:   store,
		opts:    o,
		logger:  o.logger.WithMethod(method),
		metrics: o.metricsCollector,
	}
}

func (o *options) storeOptions(s *pagestore.Options) {
	if o.pageCacheBytes != 0 {
		s.CacheBytes = o.pageCacheBytes
	}
	s.Resource = o.resource
	s.Logger = o.logger.Logger
}

func (o *options) graphOptions(g *hnsw.Options) {
	g.Workers = o.buildWorkers
	g.Resource = o.resource
	g.Logger = o.logger.Logger
}

func (o *options) clusterOptions(c *ivf.Options) {
	c.Workers = o.buildWorkers
	c.Resource = o.resource
	c.Logger = o.logger.Logger
}

// Method returns the index method.
func (x *Index) Method() Method { return x.method }

// State returns the lifecycle state.
func (x *Index) State() State { return x.engine.State() }

// Len returns the number of live vectors.
func (x *Index) Len() int { return x.engine.Len() }

// Params returns the persistent parameters.
func (x *Index) Params() Params {
	if x.graph != nil {
		return graphParams(x.graph.Options())
	}
	return clusterParams(x.cluster.Options())
}

// Build bulk-loads an empty index from seq. An HNSW build inserts in
// parallel; an IVFFlat build samples and trains the centroids on a first
// pass over seq and assigns every vector on a second one, so seq must be
// re-iterable. A failed or canceled Build leaves the index empty.
func (x *Index) Build(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) error {
	start := time.Now()
	var count atomic.Int64
	counted := func(yield func(uint64, vector.Vector) bool) {
		count.Store(0)
		for id, v := range seq {
			count.Add(1)
			if !yield(id, v) {
				return
			}
		}
	}

	err := x.engine.Build(ctx, counted)
	n := int(count.Load())
	x.metrics.RecordBuild(n, time.Since(start), err)
	x.logger.LogBuild(ctx, n, time.Since(start), err)
	return err
}

// Insert adds one vector. The index must be Ready and id must not be live.
func (x *Index) Insert(ctx context.Context, id uint64, v vector.Vector) error {
	start := time.Now()
	err := x.engine.Insert(ctx, id, v)
	x.metrics.RecordInsert(time.Since(start), err)
	x.logger.LogInsert(ctx, id, err)
	return err
}

// BulkInsert inserts every vector of seq into a Ready index, in parallel.
// Vectors rejected for their own content (dimension, type, duplicate id)
// are reported in the result and do not stop the others; storage failures,
// cancellation and a non-Ready index abort and are returned.
func (x *Index) BulkInsert(ctx context.Context, seq iter.Seq2[uint64, vector.Vector]) (BulkResult, error) {
	start := time.Now()
	if x.engine.State() != index.StateReady {
		err := &index.NotReadyError{State: x.engine.State()}
		x.logger.LogBulkInsert(ctx, BulkResult{}, err)
		return BulkResult{}, err
	}

	type failure struct {
		pos int
		BulkFailure
	}
	var (
		mu       sync.Mutex
		failures []failure
		inserted atomic.Int64
		attempts int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers())
	for id, v := range seq {
		if gctx.Err() != nil {
			break
		}
		pos := attempts
		attempts++
		g.Go(func() error {
			err := x.engine.Insert(gctx, id, v)
			switch {
			case err == nil:
				inserted.Add(1)
				return nil
			case isItemError(err):
				mu.Lock()
				failures = append(failures, failure{pos: pos, BulkFailure: BulkFailure{ID: id, Err: err}})
				mu.Unlock()
				return nil
			default:
				return err
			}
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].pos < failures[j].pos })
	res := BulkResult{Inserted: int(inserted.Load())}
	for _, f := range failures {
		res.Failures = append(res.Failures, f.BulkFailure)
	}

	x.metrics.RecordBulkInsert(attempts, len(res.Failures), time.Since(start))
	x.logger.LogBulkInsert(ctx, res, err)
	return res, err
}

func isItemError(err error) bool {
	return errors.Is(err, index.ErrDimensionMismatch) ||
		errors.Is(err, index.ErrDimensionExceeded) ||
		errors.Is(err, index.ErrTypeMismatch) ||
		errors.Is(err, index.ErrInvalidParameter)
}

func (x *Index) workers() int {
	if x.opts.buildWorkers > 0 {
		return x.opts.buildWorkers
	}
	return x.opts.resource.Workers()
}

// Delete removes id from search results. Deleting an unknown id is a
// no-op. Space is reclaimed by Vacuum.
func (x *Index) Delete(ctx context.Context, id uint64) error {
	start := time.Now()
	err := x.engine.Delete(ctx, id)
	x.metrics.RecordDelete(time.Since(start), err)
	x.logger.LogDelete(ctx, id, err)
	return err
}

// Vacuum repairs the structure around deleted vectors and reclaims their
// space. Per-item failures are collected in the report; they are retried
// by the next Vacuum.
func (x *Index) Vacuum(ctx context.Context) (VacuumReport, error) {
	start := time.Now()
	report, err := x.engine.Vacuum(ctx)
	x.metrics.RecordVacuum(report.Reclaimed, report.Failed, time.Since(start), err)
	x.logger.LogVacuum(ctx, report, err)
	return report, err
}

// Stats returns a snapshot of the index.
func (x *Index) Stats() Stats {
	st := Stats{
		Params: x.Params(),
		State:  x.engine.State(),
		Len:    x.engine.Len(),
	}

	ps := x.store.Stats()
	st.Storage = StorageStats{
		PageSize:    x.store.PageSize(),
		Pages:       ps.Pages,
		FreePages:   ps.FreePages,
		CacheBytes:  ps.CacheBytes,
		CacheHits:   ps.CacheHits,
		CacheMisses: ps.CacheMisses,
	}

	if x.graph != nil {
		gs := x.graph.Stats()
		st.Graph = &GraphStats{
			Nodes:      gs.Nodes,
			Pending:    gs.Pending,
			MaxLayer:   gs.MaxLayer,
			EntryPoint: gs.EntryPoint,
			HasEntry:   gs.HasEntry,
			Readers:    gs.Readers,
		}
		for _, l := range gs.Levels {
			st.Graph.Levels = append(st.Graph.Levels, LevelStats(l))
		}
	}
	if x.cluster != nil {
		cs := x.cluster.Stats()
		st.Cluster = &ClusterStats{}
		for _, l := range cs.Lists {
			st.Cluster.Lists = append(st.Cluster.Lists, ListStats(l))
		}
	}
	return st
}

// Close closes the index and its device. It is safe to call more than once.
func (x *Index) Close() error {
	x.closeOnce.Do(func() {
		x.closeErr = errors.Join(x.engine.Close(), x.store.Close())
		if x.closeErr != nil {
			x.logger.Error("close failed", "error", x.closeErr)
		}
	})
	return x.closeErr
}
