package hnsw

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/vector"
)

// nodeOverhead approximates the in-memory cost of a node beyond its vector
// and links.
const nodeOverhead = 128

type entryPoint struct {
	node     *node
	maxLayer int
}

// Graph is an HNSW index persisted in a page store.
type Graph struct {
	opts   Options
	space  *distance.Space
	store  *pagestore.Store
	heap   *pagestore.Heap
	rc     *resource.Controller
	logger *slog.Logger

	mmax  int
	mmax0 int
	ml    float64

	state    atomic.Int32
	nodes    atomic.Pointer[slotTable]
	nextSlot atomic.Uint32
	clock    atomic.Uint64
	rng      atomic.Uint64

	idMu sync.RWMutex
	ids  map[uint64]uint32

	pendingMu sync.Mutex
	pending   *roaring.Bitmap

	// mu is the single-writer section for the entry point and the meta page.
	mu    sync.Mutex
	entry atomic.Pointer[entryPoint]

	epochs   *epochs
	vacuumMu sync.Mutex
}

func newGraph(store *pagestore.Store, heap *pagestore.Heap, opts Options) (*Graph, error) {
	space, err := distance.NewSpace(opts.Distance, opts.VectorType, opts.Dimension)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	g := &Graph{
		opts:    opts,
		space:   space,
		store:   store,
		heap:    heap,
		rc:      opts.Resource,
		logger:  logger.With("engine", "hnsw"),
		mmax:    opts.M,
		mmax0:   opts.M * mmax0Multiplier,
		ml:      1 / math.Log(float64(opts.M)),
		ids:     make(map[uint64]uint32),
		pending: roaring.New(),
		epochs:  newEpochs(),
	}
	g.nodes.Store(new(slotTable))
	g.rng.Store(opts.Seed)
	return g, nil
}

// New creates an empty graph in a freshly created store.
func New(ctx context.Context, store *pagestore.Store, optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	heap, err := pagestore.OpenHeap(ctx, store)
	if err != nil {
		return nil, err
	}
	g, err := newGraph(store, heap, opts)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.writeMeta(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// Open loads a graph from a store. Persistent parameters come from the meta
// page; optFns only supply runtime options (logger, resources, workers).
func Open(ctx context.Context, store *pagestore.Store, optFns ...func(o *Options)) (*Graph, error) {
	meta := store.Meta()
	if meta.Engine != pagestore.EngineGraph {
		return nil, index.InvalidParameter("engine", "store holds %s, not hnsw", meta.Engine)
	}
	gm, err := decodeMeta(meta.Payload)
	if err != nil {
		return nil, &index.StorageError{Op: "open", Err: err}
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Dimension = gm.opts.Dimension
	opts.VectorType = gm.opts.VectorType
	opts.Distance = gm.opts.Distance
	opts.M = gm.opts.M
	opts.EFConstruction = gm.opts.EFConstruction
	opts.EFSearch = gm.opts.EFSearch
	opts.MaxLevel = gm.opts.MaxLevel
	opts.Seed = gm.opts.Seed
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("hnsw: stored parameters: %w", err)
	}

	heap, err := pagestore.OpenHeap(ctx, store)
	if err != nil {
		return nil, err
	}
	g, err := newGraph(store, heap, opts)
	if err != nil {
		return nil, err
	}
	if err := g.load(ctx, gm); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) load(ctx context.Context, gm *graphMeta) error {
	nodes := g.nodes.Load()
	var maxSlot, maxSeq uint64
	count := 0

	err := g.heap.Scan(ctx, func(rid pagestore.RID, data []byte) error {
		n, err := decodeNode(g.space, data)
		if err != nil {
			return &index.StorageError{Op: "load", Page: uint32(rid.Page), Err: err}
		}
		if nodes.get(n.slot) != nil {
			return &index.StorageError{Op: "load", Page: uint32(rid.Page), Err: fmt.Errorf("hnsw: duplicate slot %d: %w", n.slot, pagestore.ErrCorrupt)}
		}
		n.rid = rid
		n.size = g.nodeSize(n)
		if err := g.rc.AcquireMemory(ctx, n.size); err != nil {
			return err
		}
		n.ready.Store(true)
		nodes.set(n.slot, n)

		if n.deleted.Load() {
			g.pending.Add(n.slot)
		} else {
			if _, dup := g.ids[n.id]; dup {
				return &index.StorageError{Op: "load", Page: uint32(rid.Page), Err: fmt.Errorf("hnsw: duplicate live id %d: %w", n.id, pagestore.ErrCorrupt)}
			}
			g.ids[n.id] = n.slot
		}
		maxSlot = max(maxSlot, uint64(n.slot)+1)
		maxSeq = max(maxSeq, n.seq)
		count++
		return nil
	})
	if err != nil {
		return err
	}

	g.nextSlot.Store(uint32(max(maxSlot, uint64(gm.nextSlot))))
	g.clock.Store(max(maxSeq, gm.clock))
	// Continue the level sequence instead of replaying it.
	g.rng.Store(g.opts.Seed + g.clock.Load()*goldenGamma)

	g.mu.Lock()
	defer g.mu.Unlock()

	switch gm.state {
	case index.StateReady:
		g.state.Store(int32(index.StateReady))
	default:
		// An interrupted build never became visible.
		if count > 0 {
			g.logger.Warn("discarding interrupted build", "nodes", count)
		}
		g.resetLocked(ctx)
		return g.writeMeta(ctx)
	}

	if gm.hasEntry {
		if n := nodes.get(gm.entry); n != nil && !n.deleted.Load() {
			g.entry.Store(&entryPoint{node: n, maxLayer: n.level})
		}
	}
	if g.entry.Load() == nil && len(g.ids) > 0 {
		g.chooseEntryLocked()
		if err := g.writeMeta(ctx); err != nil {
			return err
		}
	}
	g.logger.Debug("graph loaded", "nodes", count, "live", len(g.ids), "pending", g.pending.GetCardinality())
	return nil
}

// State returns the lifecycle state.
func (g *Graph) State() index.State { return index.State(g.state.Load()) }

func (g *Graph) checkReady() error {
	if s := g.State(); s != index.StateReady {
		return &index.NotReadyError{State: s}
	}
	return nil
}

// Options returns the graph parameters.
func (g *Graph) Options() Options { return g.opts }

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.idMu.RLock()
	defer g.idMu.RUnlock()
	return len(g.ids)
}

// Contains reports whether id is live.
func (g *Graph) Contains(id uint64) bool {
	g.idMu.RLock()
	defer g.idMu.RUnlock()
	_, ok := g.ids[id]
	return ok
}

// Close marks the graph closed. The caller closes the store.
func (g *Graph) Close() error {
	g.state.Store(int32(index.StateClosed))
	return nil
}

func (g *Graph) capacity(level int) int {
	if level == 0 {
		return g.mmax0
	}
	return g.mmax
}

func (g *Graph) nodeSize(n *node) int64 {
	links := g.mmax0 + n.level*g.mmax
	return int64(nodeOverhead + vector.EncodedSize(n.vec) + links*neighborSize)
}

const goldenGamma = 0x9e3779b97f4a7c15

// randomLevel draws floor(-ln(U) * mL) with U uniform in (0, 1].
func (g *Graph) randomLevel() int {
	x := g.rng.Add(goldenGamma)
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31

	u := (float64(x>>11) + 1) / (1 << 53)
	level := int(-math.Log(u) * g.ml)
	return min(level, g.opts.MaxLevel)
}

// writeMeta persists the graph header. Callers hold g.mu.
func (g *Graph) writeMeta(ctx context.Context) error {
	gm := graphMeta{
		state:    g.State(),
		opts:     g.opts,
		nextSlot: g.nextSlot.Load(),
		clock:    g.clock.Load(),
	}
	if ep := g.entry.Load(); ep != nil {
		gm.hasEntry = true
		gm.entry = ep.node.slot
		gm.maxLayer = ep.maxLayer
	}
	return g.store.SetMeta(ctx, pagestore.Meta{Engine: pagestore.EngineGraph, Payload: gm.encode()})
}

// chooseEntryLocked makes the highest-layer live node (lowest slot on ties)
// the entry point, or clears it. Callers hold g.mu.
func (g *Graph) chooseEntryLocked() {
	var best *node
	g.nodes.Load().forEach(func(n *node) bool {
		if !n.deleted.Load() && (best == nil || n.level > best.level) {
			best = n
		}
		return true
	})
	if best == nil {
		g.entry.Store(nil)
		return
	}
	g.entry.Store(&entryPoint{node: best, maxLayer: best.level})
	g.logger.Debug("entry point changed", "slot", best.slot, "layer", best.level)
}

// replaceEntry moves the entry point off a deleted node.
func (g *Graph) replaceEntry(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ep := g.entry.Load()
	if ep == nil || !ep.node.deleted.Load() {
		return nil
	}
	g.chooseEntryLocked()
	return g.writeMeta(ctx)
}

// persist rewrites the record of n. Callers hold n.mu.
func (g *Graph) persist(ctx context.Context, n *node) error {
	rid, err := g.heap.Update(ctx, n.rid, encodeNode(nil, n))
	if err != nil {
		return err
	}
	n.rid = rid
	return nil
}

// resetLocked drops every node and its record. Callers hold g.mu and
// guarantee no concurrent writers.
func (g *Graph) resetLocked(ctx context.Context) {
	g.nodes.Load().forEach(func(n *node) bool {
		if err := g.heap.Delete(ctx, n.rid); err != nil {
			g.logger.Error("failed to delete node record", "slot", n.slot, "error", err)
		}
		g.rc.ReleaseMemory(n.size)
		return true
	})
	g.nodes.Store(new(slotTable))

	g.idMu.Lock()
	g.ids = make(map[uint64]uint32)
	g.idMu.Unlock()

	g.pendingMu.Lock()
	g.pending.Clear()
	g.pendingMu.Unlock()

	g.entry.Store(nil)
	g.nextSlot.Store(0)
	g.clock.Store(0)
	g.rng.Store(g.opts.Seed)
	g.state.Store(int32(index.StateEmpty))
}
