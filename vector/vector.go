package vector

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/vecindex/index"
)

// Representation limits.
const (
	// MaxDim is the maximum dimension of Dense and Half vectors.
	MaxDim = 16000

	// MaxBinaryDim is the maximum bit count of Binary vectors.
	MaxBinaryDim = 64000

	// MaxSparseDim is the maximum dimension of Sparse vectors.
	MaxSparseDim = 1_000_000_000

	// MaxSparseNNZ is the maximum number of nonzero elements of a Sparse vector.
	MaxSparseNNZ = 16000
)

// Type identifies a vector representation.
type Type uint8

const (
	// TypeDense is a vector of float32 elements.
	TypeDense Type = iota
	// TypeHalf is a vector of IEEE-754 binary16 elements.
	TypeHalf
	// TypeBinary is a packed bit vector.
	TypeBinary
	// TypeSparse is a list of (index, value) pairs.
	TypeSparse
)

// String returns the name of the representation.
func (t Type) String() string {
	switch t {
	case TypeDense:
		return "dense"
	case TypeHalf:
		return "half"
	case TypeBinary:
		return "binary"
	case TypeSparse:
		return "sparse"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseType parses a representation name. "vector" and "halfvec", "bit",
// "sparsevec" are accepted as aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense", "vector", "float32":
		return TypeDense, nil
	case "half", "halfvec", "float16":
		return TypeHalf, nil
	case "binary", "bit":
		return TypeBinary, nil
	case "sparse", "sparsevec":
		return TypeSparse, nil
	default:
		return 0, index.InvalidParameter("type", "unknown vector type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t > TypeSparse {
		return nil, index.InvalidParameter("type", "unknown vector type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Vector is a read-only vector value. Implementations are Dense, Half,
// Binary and Sparse; their dimension is fixed at construction.
type Vector interface {
	// Type returns the representation.
	Type() Type

	// Dim returns the dimension (bit count for Binary).
	Dim() int

	// At returns element i as float32. Binary elements are 0 or 1, absent
	// Sparse elements are 0.
	At(i int) float32

	// String returns the text form accepted by Parse.
	String() string
}

func checkDim(dim, maxDim int) error {
	if dim < 1 {
		return index.InvalidParameter("dimension", "must be at least 1, got %d", dim)
	}
	if dim > maxDim {
		return &index.DimensionExceededError{What: "dimension", Value: dim, Max: maxDim}
	}
	return nil
}

func checkFinite(i int, f float32) error {
	if math.IsNaN(float64(f)) {
		return index.InvalidParameter("value", "NaN not allowed in vector (element %d)", i)
	}
	if math.IsInf(float64(f), 0) {
		return index.InvalidParameter("value", "infinite value not allowed in vector (element %d)", i)
	}
	return nil
}

// MaxDim returns the largest dimension of the representation.
func (t Type) MaxDim() int {
	switch t {
	case TypeBinary:
		return MaxBinaryDim
	case TypeSparse:
		return MaxSparseDim
	default:
		return MaxDim
	}
}

// CheckDim validates an index dimension for representation t.
func CheckDim(t Type, dim int) error {
	if t > TypeSparse {
		return index.InvalidParameter("type", "unknown vector type %d", uint8(t))
	}
	return checkDim(dim, t.MaxDim())
}
