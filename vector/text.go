package vector

import (
	"strconv"
	"strings"

	"github.com/hupe1980/vecindex/index"
)

// Parse reads the text form of a vector of type t:
//
//	Dense, Half: [1,2.5,3]
//	Binary:      0101
//	Sparse:      {1:0.5,3:2}/5   (one-based indices, then the dimension)
func Parse(t Type, s string) (Vector, error) {
	s = strings.TrimSpace(s)
	switch t {
	case TypeDense, TypeHalf:
		x, err := parseFloats(s)
		if err != nil {
			return nil, err
		}
		if t == TypeHalf {
			return NewHalfFromFloat32(x)
		}
		return NewDense(x)
	case TypeBinary:
		bits := make([]bool, len(s))
		for i, c := range s {
			switch c {
			case '0':
			case '1':
				bits[i] = true
			default:
				return nil, index.InvalidParameter("text", "%q is not a valid binary digit", c)
			}
		}
		return NewBinaryFromBools(bits)
	case TypeSparse:
		return parseSparse(s)
	default:
		return nil, index.InvalidParameter("type", "unknown vector type %d", uint8(t))
	}
}

func parseFloats(s string) ([]float32, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, index.InvalidParameter("text", "vector must start with %q and end with %q", "[", "]")
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, index.InvalidParameter("dimension", "must be at least 1, got 0")
	}
	parts := strings.Split(body, ",")
	x := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, index.InvalidParameter("text", "invalid element %q", p)
		}
		x[i] = float32(f)
	}
	return x, nil
}

func parseSparse(s string) (Vector, error) {
	open := strings.IndexByte(s, '{')
	closing := strings.LastIndexByte(s, '}')
	if open != 0 || closing < 0 || !strings.HasPrefix(s[closing:], "}/") {
		return nil, index.InvalidParameter("text", "sparse vector must look like {i:v,...}/dim")
	}
	dim, err := strconv.Atoi(strings.TrimSpace(s[closing+2:]))
	if err != nil {
		return nil, index.InvalidParameter("text", "invalid dimension %q", s[closing+2:])
	}

	var (
		indices []int32
		values  []float32
	)
	body := strings.TrimSpace(s[1:closing])
	if body != "" {
		for _, pair := range strings.Split(body, ",") {
			k, v, ok := strings.Cut(pair, ":")
			if !ok {
				return nil, index.InvalidParameter("text", "invalid element %q", pair)
			}
			ix, err := strconv.ParseInt(strings.TrimSpace(k), 10, 32)
			if err != nil || ix < 1 {
				return nil, index.InvalidParameter("text", "invalid index %q", k)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
			if err != nil {
				return nil, index.InvalidParameter("text", "invalid value %q", v)
			}
			indices = append(indices, int32(ix-1))
			values = append(values, float32(f))
		}
	}
	return NewSparse(dim, indices, values)
}
