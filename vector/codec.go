package vector

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"

	"github.com/hupe1980/vecindex/index"
)

// Binary layouts. All integers are little-endian; length is the total
// encoded size including the length field; reserved fields are zero.
//
//	Dense:  [length:int32][dim:int16][reserved:int16][float32 x dim]
//	Half:   [length:int32][dim:int16][reserved:int16][float16 x dim]
//	Binary: [length:int32][dim:int32][reserved:int32][byte x ceil(dim/8)]
//	Sparse: [length:int32][dim:int32][nnz:int32][reserved:int32][int32 x nnz][float32 x nnz]
const (
	denseHeaderSize  = 8
	binaryHeaderSize = 12
	sparseHeaderSize = 16
)

// EncodedSize returns the size of the binary layout of v.
func EncodedSize(v Vector) int {
	switch x := v.(type) {
	case Dense:
		return denseHeaderSize + 4*len(x.x)
	case Half:
		return denseHeaderSize + 2*len(x.x)
	case Binary:
		return binaryHeaderSize + len(x.b)
	case Sparse:
		return sparseHeaderSize + 8*len(x.idx)
	default:
		panic("vector: unsupported implementation")
	}
}

// Marshal returns the binary layout of v.
func Marshal(v Vector) []byte {
	return AppendBinary(make([]byte, 0, EncodedSize(v)), v)
}

// AppendBinary appends the binary layout of v to dst.
func AppendBinary(dst []byte, v Vector) []byte {
	size := EncodedSize(v)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(size))

	switch x := v.(type) {
	case Dense:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(len(x.x)))
		dst = binary.LittleEndian.AppendUint16(dst, 0)
		for _, f := range x.x {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
		}
	case Half:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(len(x.x)))
		dst = binary.LittleEndian.AppendUint16(dst, 0)
		for _, h := range x.x {
			dst = binary.LittleEndian.AppendUint16(dst, h.Bits())
		}
	case Binary:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(x.dim))
		dst = binary.LittleEndian.AppendUint32(dst, 0)
		dst = append(dst, x.b...)
	case Sparse:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(x.dim))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(x.idx)))
		dst = binary.LittleEndian.AppendUint32(dst, 0)
		for _, ix := range x.idx {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(ix))
		}
		for _, f := range x.val {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
		}
	}
	return dst
}

// Unmarshal decodes the binary layout of a vector of type t. The input is
// validated exactly like the constructors validate their arguments.
func Unmarshal(t Type, b []byte) (Vector, error) {
	if len(b) < 4 {
		return nil, errTruncated(t, len(b))
	}
	length := int(binary.LittleEndian.Uint32(b))
	if length > len(b) {
		return nil, errTruncated(t, len(b))
	}
	b = b[:length]

	switch t {
	case TypeDense, TypeHalf:
		if len(b) < denseHeaderSize {
			return nil, errTruncated(t, len(b))
		}
		dim := int(int16(binary.LittleEndian.Uint16(b[4:])))
		elem := 4
		if t == TypeHalf {
			elem = 2
		}
		if dim < 0 || length != denseHeaderSize+elem*dim {
			return nil, errLength(t, length)
		}
		p := b[denseHeaderSize:]
		if t == TypeDense {
			x := make([]float32, dim)
			for i := range x {
				x[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:]))
			}
			return NewDense(x)
		}
		x := make([]float16.Float16, dim)
		for i := range x {
			x[i] = float16.Frombits(binary.LittleEndian.Uint16(p[2*i:]))
		}
		return NewHalf(x)

	case TypeBinary:
		if len(b) < binaryHeaderSize {
			return nil, errTruncated(t, len(b))
		}
		dim := int(int32(binary.LittleEndian.Uint32(b[4:])))
		if dim < 0 || length != binaryHeaderSize+BinaryBytes(dim) {
			return nil, errLength(t, length)
		}
		return NewBinary(dim, b[binaryHeaderSize:])

	case TypeSparse:
		if len(b) < sparseHeaderSize {
			return nil, errTruncated(t, len(b))
		}
		dim := int(int32(binary.LittleEndian.Uint32(b[4:])))
		nnz := int(int32(binary.LittleEndian.Uint32(b[8:])))
		if nnz < 0 || nnz > MaxSparseNNZ {
			return nil, &index.DimensionExceededError{What: "nonzero count", Value: nnz, Max: MaxSparseNNZ}
		}
		if length != sparseHeaderSize+8*nnz {
			return nil, errLength(t, length)
		}
		p := b[sparseHeaderSize:]
		idx := make([]int32, nnz)
		val := make([]float32, nnz)
		for i := 0; i < nnz; i++ {
			idx[i] = int32(binary.LittleEndian.Uint32(p[4*i:]))
			val[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4*(nnz+i):]))
		}
		return NewSparse(dim, idx, val)

	default:
		return nil, index.InvalidParameter("type", "unknown vector type %d", uint8(t))
	}
}

func errTruncated(t Type, n int) error {
	return index.InvalidParameter("data", "truncated %s vector (%d bytes)", t, n)
}

func errLength(t Type, length int) error {
	return index.InvalidParameter("data", "%s vector length %d does not match header", t, length)
}
