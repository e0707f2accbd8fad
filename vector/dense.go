package vector

import (
	"strconv"
	"strings"
)

// Dense is a vector of float32 elements.
type Dense struct {
	x []float32
}

// NewDense validates x and returns a Dense holding a copy of it.
func NewDense(x []float32) (Dense, error) {
	if err := checkDim(len(x), MaxDim); err != nil {
		return Dense{}, err
	}
	for i, f := range x {
		if err := checkFinite(i, f); err != nil {
			return Dense{}, err
		}
	}
	return Dense{x: append([]float32(nil), x...)}, nil
}

// MustDense is like NewDense but panics on invalid input. Intended for
// tests and literals.
func MustDense(x ...float32) Dense {
	v, err := NewDense(x)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Dense) Type() Type { return TypeDense }

func (v Dense) Dim() int { return len(v.x) }

func (v Dense) At(i int) float32 { return v.x[i] }

// Float32s returns the elements. The slice must not be modified.
func (v Dense) Float32s() []float32 { return v.x }

func (v Dense) String() string {
	var sb strings.Builder
	sb.Grow(len(v.x) * 8)
	sb.WriteByte('[')
	for i, f := range v.x {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Compare orders dense vectors elementwise over their shared prefix; when
// the prefix is equal the shorter vector sorts first.
func Compare(a, b Dense) int {
	n := min(len(a.x), len(b.x))
	for i := 0; i < n; i++ {
		if a.x[i] < b.x[i] {
			return -1
		}
		if a.x[i] > b.x[i] {
			return 1
		}
	}
	switch {
	case len(a.x) < len(b.x):
		return -1
	case len(a.x) > len(b.x):
		return 1
	default:
		return 0
	}
}
