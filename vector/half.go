package vector

import (
	"strconv"
	"strings"

	"github.com/x448/float16"

	"github.com/hupe1980/vecindex/index"
)

// Half is a vector of IEEE-754 binary16 elements.
type Half struct {
	x []float16.Float16
}

// NewHalf validates x and returns a Half holding a copy of it.
func NewHalf(x []float16.Float16) (Half, error) {
	if err := checkDim(len(x), MaxDim); err != nil {
		return Half{}, err
	}
	for i, h := range x {
		if h.IsNaN() || h.IsInf(0) {
			return Half{}, checkFinite(i, h.Float32())
		}
	}
	return Half{x: append([]float16.Float16(nil), x...)}, nil
}

// NewHalfFromFloat32 rounds x to half precision. Values outside the half
// range fail with ErrInvalidParameter.
func NewHalfFromFloat32(x []float32) (Half, error) {
	if err := checkDim(len(x), MaxDim); err != nil {
		return Half{}, err
	}
	out := make([]float16.Float16, len(x))
	for i, f := range x {
		h, err := toHalf(i, f)
		if err != nil {
			return Half{}, err
		}
		out[i] = h
	}
	return Half{x: out}, nil
}

func toHalf(i int, f float32) (float16.Float16, error) {
	if err := checkFinite(i, f); err != nil {
		return 0, err
	}
	h := float16.Fromfloat32(f)
	if h.IsInf(0) {
		return 0, index.InvalidParameter("value", "%g out of range for half precision (element %d)", f, i)
	}
	return h, nil
}

func (v Half) Type() Type { return TypeHalf }

func (v Half) Dim() int { return len(v.x) }

func (v Half) At(i int) float32 { return v.x[i].Float32() }

// Float16s returns the elements. The slice must not be modified.
func (v Half) Float16s() []float16.Float16 { return v.x }

// AppendFloat32 appends the widened elements to dst.
func (v Half) AppendFloat32(dst []float32) []float32 {
	for _, h := range v.x {
		dst = append(dst, h.Float32())
	}
	return dst
}

func (v Half) String() string {
	var sb strings.Builder
	sb.Grow(len(v.x) * 6)
	sb.WriteByte('[')
	for i, h := range v.x {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(h.Float32()), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
