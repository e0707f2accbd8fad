package distance

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/simd"
	"github.com/hupe1980/vecindex/vector"
)

// Kind selects a distance function. Smaller is always closer.
type Kind uint8

const (
	// L2 is the squared Euclidean distance.
	L2 Kind = iota
	// InnerProduct is the negated dot product.
	InnerProduct
	// Cosine is one minus the cosine similarity.
	Cosine
	// Hamming counts differing bits of binary vectors.
	Hamming
	// Jaccard is one minus the Jaccard index of binary vectors.
	Jaccard
)

func (k Kind) String() string {
	switch k {
	case L2:
		return "l2"
	case InnerProduct:
		return "inner_product"
	case Cosine:
		return "cosine"
	case Hamming:
		return "hamming"
	case Jaccard:
		return "jaccard"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses a distance kind name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean", "squared_l2":
		return L2, nil
	case "inner_product", "ip", "dot":
		return InnerProduct, nil
	case "cosine":
		return Cosine, nil
	case "hamming":
		return Hamming, nil
	case "jaccard":
		return Jaccard, nil
	default:
		return 0, index.InvalidParameter("distance", "unknown distance kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k > Jaccard {
		return nil, index.InvalidParameter("distance", "unknown distance kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Supports returns an ErrTypeMismatch error if kind cannot compare vectors
// of type t. Hamming and Jaccard need Binary vectors; the other kinds need
// Dense, Half or Sparse vectors.
func Supports(kind Kind, t vector.Type) error {
	switch kind {
	case Hamming, Jaccard:
		if t != vector.TypeBinary {
			return &index.TypeMismatchError{Op: kind.String(), Want: vector.TypeBinary.String(), Got: t.String()}
		}
	case L2, InnerProduct, Cosine:
		if t == vector.TypeBinary {
			return &index.TypeMismatchError{Op: kind.String(), Got: t.String()}
		}
	default:
		return index.InvalidParameter("distance", "unknown distance kind %d", uint8(kind))
	}
	return nil
}

// Distance returns the distance of kind between a and b.
func Distance(kind Kind, a, b vector.Vector) (float64, error) {
	if a.Type() != b.Type() {
		return 0, &index.TypeMismatchError{Op: kind.String(), Want: a.Type().String(), Got: b.Type().String()}
	}
	if err := Supports(kind, a.Type()); err != nil {
		return 0, err
	}
	if a.Dim() != b.Dim() {
		return 0, &index.DimensionMismatchError{Expected: a.Dim(), Actual: b.Dim()}
	}

	var na, nb float64
	if kind == Cosine {
		na, nb = NormSquared(a), NormSquared(b)
	}
	return eval(kind, a, b, na, nb), nil
}

// NormSquared returns the squared Euclidean norm of v. For Binary vectors
// it is the number of set bits.
func NormSquared(v vector.Vector) float64 {
	switch x := v.(type) {
	case vector.Dense:
		f := x.Float32s()
		return float64(simd.Dot(f, f))
	case vector.Half:
		h := x.Float16s()
		return float64(simd.DotHalf(h, h))
	case vector.Binary:
		return float64(x.OnesCount())
	case vector.Sparse:
		var s float64
		for _, f := range x.Values() {
			s += float64(f) * float64(f)
		}
		return s
	default:
		var s float64
		for i := 0; i < v.Dim(); i++ {
			f := float64(v.At(i))
			s += f * f
		}
		return s
	}
}

// eval computes the distance without validation. na and nb are the squared
// norms of a and b; only Cosine reads them.
func eval(kind Kind, a, b vector.Vector, na, nb float64) float64 {
	switch kind {
	case L2:
		return squaredL2(a, b)
	case InnerProduct:
		return -dot(a, b)
	case Cosine:
		return cosine(dot(a, b), na, nb)
	case Hamming:
		return float64(simd.Hamming(a.(vector.Binary).Bytes(), b.(vector.Binary).Bytes()))
	case Jaccard:
		and, or := simd.AndOr(a.(vector.Binary).Bytes(), b.(vector.Binary).Bytes())
		if or == 0 {
			return 1
		}
		return 1 - float64(and)/float64(or)
	default:
		panic("distance: unknown kind")
	}
}

func cosine(dot, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / math.Sqrt(na*nb)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

func dot(a, b vector.Vector) float64 {
	switch x := a.(type) {
	case vector.Dense:
		return float64(simd.Dot(x.Float32s(), b.(vector.Dense).Float32s()))
	case vector.Half:
		return float64(simd.DotHalf(x.Float16s(), b.(vector.Half).Float16s()))
	case vector.Sparse:
		return sparseDot(x, b.(vector.Sparse))
	default:
		var s float64
		for i := 0; i < a.Dim(); i++ {
			s += float64(a.At(i)) * float64(b.At(i))
		}
		return s
	}
}

func squaredL2(a, b vector.Vector) float64 {
	switch x := a.(type) {
	case vector.Dense:
		return float64(simd.SquaredL2(x.Float32s(), b.(vector.Dense).Float32s()))
	case vector.Half:
		return float64(simd.SquaredL2Half(x.Float16s(), b.(vector.Half).Float16s()))
	case vector.Sparse:
		return sparseSquaredL2(x, b.(vector.Sparse))
	default:
		var s float64
		for i := 0; i < a.Dim(); i++ {
			d := float64(a.At(i)) - float64(b.At(i))
			s += d * d
		}
		return s
	}
}

func sparseDot(a, b vector.Sparse) float64 {
	ai, av := a.Indices(), a.Values()
	bi, bv := b.Indices(), b.Values()
	var s float64
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] == bi[j]:
			s += float64(av[i]) * float64(bv[j])
			i++
			j++
		case ai[i] < bi[j]:
			i++
		default:
			j++
		}
	}
	return s
}

func sparseSquaredL2(a, b vector.Sparse) float64 {
	ai, av := a.Indices(), a.Values()
	bi, bv := b.Indices(), b.Values()
	var s float64
	i, j := 0, 0
	for i < len(ai) || j < len(bi) {
		var d float64
		switch {
		case j >= len(bi) || (i < len(ai) && ai[i] < bi[j]):
			d = float64(av[i])
			i++
		case i >= len(ai) || bi[j] < ai[i]:
			d = float64(bv[j])
			j++
		default:
			d = float64(av[i]) - float64(bv[j])
			i++
			j++
		}
		s += d * d
	}
	return s
}
