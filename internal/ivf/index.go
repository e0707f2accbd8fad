package ivf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/pagestore"
	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/vector"
)

// list is one inverted list.
type list struct {
	id       int
	centroid vector.Vector

	// mu guards the chain and counters. Scans take it shared.
	mu      sync.RWMutex
	chain   *pagestore.Chain
	members int
	// dead holds the sequence numbers of tombstoned members.
	dead *roaring64.Bitmap
}

type owner struct {
	list int
	seq  uint64
}

// Index is an IVF-Flat index persisted in a page store.
type Index struct {
	opts   Options
	space  *distance.Space
	store  *pagestore.Store
	rc     *resource.Controller
	logger *slog.Logger

	state atomic.Int32
	clock atomic.Uint64

	// lists is immutable once the index is Ready.
	lists []*list

	idMu   sync.RWMutex
	owners map[uint64]owner

	// metaMu serializes meta page writes.
	metaMu   sync.Mutex
	vacuumMu sync.Mutex
}

func newIndex(store *pagestore.Store, opts Options) (*Index, error) {
	space, err := distance.NewSpace(opts.Distance, opts.VectorType, opts.Dimension)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Index{
		opts:   opts,
		space:  space,
		store:  store,
		rc:     opts.Resource,
		logger: logger.With("engine", "ivfflat"),
		owners: make(map[uint64]owner),
	}, nil
}

// New creates an untrained index in a freshly created store.
func New(ctx context.Context, store *pagestore.Store, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	x, err := newIndex(store, opts)
	if err != nil {
		return nil, err
	}
	if err := x.writeMeta(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

// Open loads an index from a store. Persistent parameters come from the
// meta page; optFns only supply runtime options.
func Open(ctx context.Context, store *pagestore.Store, optFns ...func(o *Options)) (*Index, error) {
	meta := store.Meta()
	if meta.Engine != pagestore.EngineCluster {
		return nil, index.InvalidParameter("engine", "store holds %s, not ivfflat", meta.Engine)
	}
	im, err := decodeMeta(meta.Payload)
	if err != nil {
		return nil, &index.StorageError{Op: "open", Err: err}
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Dimension = im.opts.Dimension
	opts.VectorType = im.opts.VectorType
	opts.Distance = im.opts.Distance
	opts.NumLists = im.opts.NumLists
	opts.NumProbes = im.opts.NumProbes
	opts.MaxIterations = im.opts.MaxIterations
	opts.Tolerance = im.opts.Tolerance
	opts.SampleSize = im.opts.SampleSize
	opts.Seed = im.opts.Seed
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("ivf: stored parameters: %w", err)
	}

	x, err := newIndex(store, opts)
	if err != nil {
		return nil, err
	}
	x.clock.Store(im.clock)

	if im.state != index.StateReady {
		// An interrupted build never became visible.
		for _, head := range im.heads {
			if c, err := pagestore.OpenChain(ctx, store, head); err == nil {
				if err := c.Free(ctx); err != nil {
					x.logger.Error("failed to free list", "head", head, "error", err)
				}
			}
		}
		if err := x.writeMeta(ctx); err != nil {
			return nil, err
		}
		return x, nil
	}

	if err := x.load(ctx, im); err != nil {
		return nil, err
	}
	x.state.Store(int32(index.StateReady))
	return x, nil
}

func (x *Index) load(ctx context.Context, im *indexMeta) error {
	lists := make([]*list, len(im.heads))
	for i, head := range im.heads {
		if err := x.space.Check(im.centroids[i]); err != nil {
			return &index.StorageError{Op: "load", Page: uint32(head), Err: err}
		}
		chain, err := pagestore.OpenChain(ctx, x.store, head)
		if err != nil {
			return err
		}
		l := &list{id: i, centroid: im.centroids[i], chain: chain, dead: roaring64.New()}

		err = chain.Scan(ctx, func(data []byte) error {
			r, err := peekRecord(data)
			if err != nil {
				return &index.StorageError{Op: "load", Page: uint32(head), Err: err}
			}
			x.clock.Store(max(x.clock.Load(), r.seq))
			switch r.kind {
			case recMember:
				l.members++
				if !l.dead.Contains(r.seq) {
					x.owners[r.id] = owner{list: i, seq: r.seq}
				}
			case recTombstone:
				l.dead.Add(r.seq)
				l.members--
				if o, ok := x.owners[r.id]; ok && o.seq == r.seq {
					delete(x.owners, r.id)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		lists[i] = l
	}
	x.lists = lists
	x.logger.Debug("index loaded", "lists", len(lists), "members", len(x.owners))
	return nil
}

// State returns the lifecycle state.
func (x *Index) State() index.State { return index.State(x.state.Load()) }

func (x *Index) checkReady() error {
	if s := x.State(); s != index.StateReady {
		return &index.NotReadyError{State: s}
	}
	return nil
}

// Options returns the index parameters.
func (x *Index) Options() Options { return x.opts }

// Len returns the number of live members.
func (x *Index) Len() int {
	x.idMu.RLock()
	defer x.idMu.RUnlock()
	return len(x.owners)
}

// ListOf returns the list holding id.
func (x *Index) ListOf(id uint64) (int, bool) {
	x.idMu.RLock()
	defer x.idMu.RUnlock()
	o, ok := x.owners[id]
	return o.list, ok
}

// Centroids returns the trained centroids in list order.
func (x *Index) Centroids() []vector.Vector {
	out := make([]vector.Vector, len(x.lists))
	for i, l := range x.lists {
		out[i] = l.centroid
	}
	return out
}

// Close marks the index closed. The caller closes the store.
func (x *Index) Close() error {
	x.state.Store(int32(index.StateClosed))
	return nil
}

func (x *Index) writeMeta(ctx context.Context) error {
	x.metaMu.Lock()
	defer x.metaMu.Unlock()

	im := indexMeta{
		state: x.State(),
		opts:  x.opts,
		clock: x.clock.Load(),
	}
	for _, l := range x.lists {
		im.heads = append(im.heads, l.chain.Head())
		im.centroids = append(im.centroids, l.centroid)
	}
	return x.store.SetMeta(ctx, pagestore.Meta{Engine: pagestore.EngineCluster, Payload: im.encode()})
}
