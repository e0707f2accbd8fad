package hnsw

import (
	"log/slog"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/vector"
)

const (
	// DefaultM is the default number of bidirectional links.
	DefaultM = 16

	// DefaultEFConstruction is the default construction beam width.
	DefaultEFConstruction = 64

	// DefaultEFSearch is the default search beam width.
	DefaultEFSearch = 40

	// DefaultMaxLevel caps the drawn node layer.
	DefaultMaxLevel = 16

	minM, maxM        = 2, 100
	minEFConstruction = 4
	maxEF             = 1000
	maxMaxLevel       = 64

	// mmax0Multiplier is the multiplier for calculating maximum connections at layer 0.
	mmax0Multiplier = 2
)

// Options configures a Graph.
type Options struct {
	Dimension      int
	VectorType     vector.Type
	Distance       distance.Kind
	M              int
	EFConstruction int
	EFSearch       int
	MaxLevel       int
	Seed           uint64

	// Workers bounds build and vacuum parallelism. If 0, the resource
	// controller decides.
	Workers int

	// Resource accounts node memory and background workers. Optional.
	Resource *resource.Controller

	Logger *slog.Logger
}

// DefaultOptions contains the default options for a Graph.
var DefaultOptions = Options{
	VectorType:     vector.TypeDense,
	Distance:       distance.L2,
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	EFSearch:       DefaultEFSearch,
	MaxLevel:       DefaultMaxLevel,
}

// Validate checks the persistent parameters.
func (o *Options) Validate() error {
	if err := vector.CheckDim(o.VectorType, o.Dimension); err != nil {
		return err
	}
	if err := distance.Supports(o.Distance, o.VectorType); err != nil {
		return err
	}
	if o.M < minM || o.M > maxM {
		return index.InvalidParameter("m", "must be in [%d, %d], got %d", minM, maxM, o.M)
	}
	if o.EFConstruction < minEFConstruction || o.EFConstruction > maxEF {
		return index.InvalidParameter("efConstruction", "must be in [%d, %d], got %d", minEFConstruction, maxEF, o.EFConstruction)
	}
	if o.EFSearch < 1 || o.EFSearch > maxEF {
		return index.InvalidParameter("efSearch", "must be in [1, %d], got %d", maxEF, o.EFSearch)
	}
	if o.MaxLevel < 0 || o.MaxLevel > maxMaxLevel {
		return index.InvalidParameter("maxLevel", "must be in [0, %d], got %d", maxMaxLevel, o.MaxLevel)
	}
	return nil
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return o.Resource.Workers()
}

// SearchOptions tunes a single search.
type SearchOptions struct {
	// EFSearch overrides the graph's beam width. Must be at least k.
	EFSearch int

	// MaxDistanceComputations stops the search once exhausted and returns
	// a partial result. 0 means unlimited.
	MaxDistanceComputations int
}
