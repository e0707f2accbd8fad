package vector

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/vecindex/index"
)

// Sparse holds the nonzero elements of a vector as (index, value) pairs
// with strictly increasing zero-based indices.
type Sparse struct {
	dim int
	idx []int32
	val []float32
}

// NewSparse validates and copies the pairs. Indices must be strictly
// increasing and below dim; unordered or duplicate indices are rejected,
// never sorted. Explicit zero values are dropped.
func NewSparse(dim int, indices []int32, values []float32) (Sparse, error) {
	if err := checkDim(dim, MaxSparseDim); err != nil {
		return Sparse{}, err
	}
	if len(indices) != len(values) {
		return Sparse{}, index.InvalidParameter("indices", "got %d indices for %d values", len(indices), len(values))
	}
	if len(indices) > MaxSparseNNZ {
		return Sparse{}, &index.DimensionExceededError{What: "nonzero count", Value: len(indices), Max: MaxSparseNNZ}
	}

	s := Sparse{dim: dim}
	for i, ix := range indices {
		if ix < 0 || int(ix) >= dim {
			return Sparse{}, index.InvalidParameter("indices", "index %d out of bounds for dimension %d", ix, dim)
		}
		if i > 0 && ix <= indices[i-1] {
			if ix == indices[i-1] {
				return Sparse{}, index.InvalidParameter("indices", "duplicate index %d", ix)
			}
			return Sparse{}, index.InvalidParameter("indices", "indices must be strictly increasing (%d after %d)", ix, indices[i-1])
		}
		if err := checkFinite(i, values[i]); err != nil {
			return Sparse{}, err
		}
		if values[i] == 0 {
			continue
		}
		s.idx = append(s.idx, ix)
		s.val = append(s.val, values[i])
	}
	return s, nil
}

// NewSparseFromMap builds a Sparse vector from index/value pairs.
func NewSparseFromMap(dim int, m map[int32]float32) (Sparse, error) {
	indices := make([]int32, 0, len(m))
	for ix := range m {
		indices = append(indices, ix)
	}
	slices.Sort(indices)
	values := make([]float32, len(indices))
	for i, ix := range indices {
		values[i] = m[ix]
	}
	return NewSparse(dim, indices, values)
}

func (v Sparse) Type() Type { return TypeSparse }

func (v Sparse) Dim() int { return v.dim }

func (v Sparse) At(i int) float32 {
	j := sort.Search(len(v.idx), func(k int) bool { return v.idx[k] >= int32(i) })
	if j < len(v.idx) && v.idx[j] == int32(i) {
		return v.val[j]
	}
	return 0
}

// NNZ returns the number of stored elements.
func (v Sparse) NNZ() int { return len(v.idx) }

// Indices returns the stored indices. The slice must not be modified.
func (v Sparse) Indices() []int32 { return v.idx }

// Values returns the stored values. The slice must not be modified.
func (v Sparse) Values() []float32 { return v.val }

// String formats the vector as {i:v,...}/dim with one-based indices.
func (v Sparse) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i := range v.idx {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v.idx[i]) + 1))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(float64(v.val[i]), 'g', -1, 32))
	}
	sb.WriteString("}/")
	sb.WriteString(strconv.Itoa(v.dim))
	return sb.String()
}
