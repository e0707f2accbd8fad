package ivf

import (
	"log/slog"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/kmeans"
	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/vector"
)

const (
	// DefaultNumLists is the default number of inverted lists.
	DefaultNumLists = 100

	// DefaultNumProbes is the default number of lists scanned per query.
	DefaultNumProbes = 1

	// samplesPerList sizes the default training sample.
	samplesPerList = 50

	maxLists = 32768
)

// Options configures an Index.
type Options struct {
	Dimension  int
	VectorType vector.Type
	Distance   distance.Kind
	NumLists   int
	NumProbes  int

	// MaxIterations and Tolerance bound k-means training.
	MaxIterations int
	Tolerance     float64

	// SampleSize is the number of vectors trained on. If 0, 50 per list.
	SampleSize int

	Seed uint64

	// Workers bounds build and vacuum parallelism. If 0, the resource
	// controller decides.
	Workers  int
	Resource *resource.Controller
	Logger   *slog.Logger
}

// DefaultOptions contains the default options for an Index.
var DefaultOptions = Options{
	VectorType:    vector.TypeDense,
	Distance:      distance.L2,
	NumLists:      DefaultNumLists,
	NumProbes:     DefaultNumProbes,
	MaxIterations: kmeans.DefaultMaxIterations,
	Tolerance:     kmeans.DefaultTolerance,
}

// Validate checks the persistent parameters.
func (o *Options) Validate() error {
	if o.VectorType == vector.TypeSparse {
		return &index.TypeMismatchError{Op: "ivfflat", Got: o.VectorType.String()}
	}
	if err := vector.CheckDim(o.VectorType, o.Dimension); err != nil {
		return err
	}
	if err := distance.Supports(o.Distance, o.VectorType); err != nil {
		return err
	}
	if o.NumLists < 1 || o.NumLists > maxLists {
		return index.InvalidParameter("numLists", "must be in [1, %d], got %d", maxLists, o.NumLists)
	}
	if o.NumProbes < 1 {
		return index.InvalidParameter("numProbes", "must be positive, got %d", o.NumProbes)
	}
	if o.MaxIterations < 1 {
		return index.InvalidParameter("maxIterations", "must be positive, got %d", o.MaxIterations)
	}
	if o.Tolerance < 0 {
		return index.InvalidParameter("tolerance", "must not be negative, got %g", o.Tolerance)
	}
	if o.SampleSize < 0 {
		return index.InvalidParameter("sampleSize", "must not be negative, got %d", o.SampleSize)
	}
	return nil
}

func (o *Options) sampleSize() int {
	if o.SampleSize > 0 {
		return max(o.SampleSize, o.NumLists)
	}
	return samplesPerList * o.NumLists
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return o.Resource.Workers()
}

// SearchOptions tunes a single search.
type SearchOptions struct {
	// NumProbes overrides the number of scanned lists.
	NumProbes int

	// MaxDistanceComputations stops the scan once exhausted and returns a
	// partial result. 0 means unlimited.
	MaxDistanceComputations int
}
