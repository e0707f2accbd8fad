package vector

import (
	"github.com/x448/float16"

	"github.com/hupe1980/vecindex/index"
)

// Convert returns v in representation t. The source is never modified and
// the result never shares memory with it.
//
// Dense and Half convert elementwise. Converting to Binary sets bit i when
// element i is positive; Binary converts back to 0/1 elements. Sparse keeps
// the nonzero elements. Conversion fails with ErrDimensionExceeded when the
// target cannot hold the dimension or nonzero count of v.
func Convert(v Vector, t Type) (Vector, error) {
	switch t {
	case TypeDense:
		return toDense(v)
	case TypeHalf:
		return toHalfVec(v)
	case TypeBinary:
		return toBinary(v)
	case TypeSparse:
		return toSparse(v)
	default:
		return nil, index.InvalidParameter("type", "unknown vector type %d", uint8(t))
	}
}

// Float32s returns the elements of a Dense, Half or Binary vector, or the
// expanded elements of a Sparse vector. Dense returns its backing slice.
func Float32s(v Vector) []float32 {
	switch x := v.(type) {
	case Dense:
		return x.x
	case Half:
		return x.AppendFloat32(make([]float32, 0, len(x.x)))
	case Sparse:
		out := make([]float32, x.dim)
		for i, ix := range x.idx {
			out[ix] = x.val[i]
		}
		return out
	default:
		out := make([]float32, v.Dim())
		for i := range out {
			out[i] = v.At(i)
		}
		return out
	}
}

func toDense(v Vector) (Vector, error) {
	if err := checkDim(v.Dim(), MaxDim); err != nil {
		return nil, err
	}
	if d, ok := v.(Dense); ok {
		return Dense{x: append([]float32(nil), d.x...)}, nil
	}
	return Dense{x: Float32s(v)}, nil
}

func toHalfVec(v Vector) (Vector, error) {
	if err := checkDim(v.Dim(), MaxDim); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case Half:
		return Half{x: append([]float16.Float16(nil), x.x...)}, nil
	case Dense:
		return NewHalfFromFloat32(x.x)
	default:
		return NewHalfFromFloat32(Float32s(v))
	}
}

func toBinary(v Vector) (Vector, error) {
	if err := checkDim(v.Dim(), MaxBinaryDim); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case Binary:
		return Binary{dim: x.dim, b: append([]byte(nil), x.b...)}, nil
	case Sparse:
		b := make([]byte, BinaryBytes(x.dim))
		for i, ix := range x.idx {
			if x.val[i] > 0 {
				b[ix>>3] |= 0x80 >> (ix & 7)
			}
		}
		return Binary{dim: x.dim, b: b}, nil
	default:
		dim := v.Dim()
		b := make([]byte, BinaryBytes(dim))
		for i := 0; i < dim; i++ {
			if v.At(i) > 0 {
				b[i>>3] |= 0x80 >> (i & 7)
			}
		}
		return Binary{dim: dim, b: b}, nil
	}
}

func toSparse(v Vector) (Vector, error) {
	if err := checkDim(v.Dim(), MaxSparseDim); err != nil {
		return nil, err
	}
	if s, ok := v.(Sparse); ok {
		return Sparse{
			dim: s.dim,
			idx: append([]int32(nil), s.idx...),
			val: append([]float32(nil), s.val...),
		}, nil
	}

	dim := v.Dim()
	out := Sparse{dim: dim}
	for i := 0; i < dim; i++ {
		f := v.At(i)
		if f == 0 {
			continue
		}
		if len(out.idx) == MaxSparseNNZ {
			return nil, &index.DimensionExceededError{What: "nonzero count", Value: countNonZero(v), Max: MaxSparseNNZ}
		}
		out.idx = append(out.idx, int32(i))
		out.val = append(out.val, f)
	}
	return out, nil
}

func countNonZero(v Vector) int {
	if b, ok := v.(Binary); ok {
		return b.OnesCount()
	}
	n := 0
	for i := 0; i < v.Dim(); i++ {
		if v.At(i) != 0 {
			n++
		}
	}
	return n
}
