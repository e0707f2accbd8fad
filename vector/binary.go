package vector

import (
	"math/bits"
	"strings"

	"github.com/hupe1980/vecindex/index"
)

// Binary is a packed bit vector. Bit i lives in byte i/8 at mask
// 0x80>>(i%8); padding bits of the last byte are always zero.
type Binary struct {
	dim int
	b   []byte
}

// NewBinary returns a Binary of dim bits copied from data, which must hold
// exactly ceil(dim/8) bytes.
func NewBinary(dim int, data []byte) (Binary, error) {
	if err := checkDim(dim, MaxBinaryDim); err != nil {
		return Binary{}, err
	}
	if want := BinaryBytes(dim); len(data) != want {
		return Binary{}, index.InvalidParameter("data", "need %d bytes for %d bits, got %d", want, dim, len(data))
	}
	b := append([]byte(nil), data...)
	if r := dim % 8; r != 0 {
		b[len(b)-1] &= byte(0xff << (8 - r))
	}
	return Binary{dim: dim, b: b}, nil
}

// NewBinaryFromBools packs bits.
func NewBinaryFromBools(bits []bool) (Binary, error) {
	if err := checkDim(len(bits), MaxBinaryDim); err != nil {
		return Binary{}, err
	}
	b := make([]byte, BinaryBytes(len(bits)))
	for i, set := range bits {
		if set {
			b[i>>3] |= 0x80 >> (i & 7)
		}
	}
	return Binary{dim: len(bits), b: b}, nil
}

// BinaryBytes returns the packed byte length of a dim-bit vector.
func BinaryBytes(dim int) int { return (dim + 7) / 8 }

func (v Binary) Type() Type { return TypeBinary }

func (v Binary) Dim() int { return v.dim }

func (v Binary) At(i int) float32 {
	if v.Bit(i) {
		return 1
	}
	return 0
}

// Bit reports whether bit i is set.
func (v Binary) Bit(i int) bool { return v.b[i>>3]&(0x80>>(i&7)) != 0 }

// Bytes returns the packed bits. The slice must not be modified.
func (v Binary) Bytes() []byte { return v.b }

// OnesCount returns the number of set bits.
func (v Binary) OnesCount() int {
	n := 0
	for _, c := range v.b {
		n += bits.OnesCount8(c)
	}
	return n
}

func (v Binary) String() string {
	var sb strings.Builder
	sb.Grow(v.dim)
	for i := 0; i < v.dim; i++ {
		if v.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
