package distance

import (
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/vector"
)

// Space binds a distance kind to one representation and dimension. Engines
// validate vectors once against the space and then compare them without
// further checks.
type Space struct {
	kind Kind
	typ  vector.Type
	dim  int
}

// NewSpace validates that kind supports typ.
func NewSpace(kind Kind, typ vector.Type, dim int) (*Space, error) {
	if err := Supports(kind, typ); err != nil {
		return nil, err
	}
	if dim < 1 {
		return nil, index.InvalidParameter("dimension", "must be at least 1, got %d", dim)
	}
	return &Space{kind: kind, typ: typ, dim: dim}, nil
}

// Kind returns the distance kind.
func (s *Space) Kind() Kind { return s.kind }

// Type returns the vector representation.
func (s *Space) Type() vector.Type { return s.typ }

// Dim returns the dimension.
func (s *Space) Dim() int { return s.dim }

// Check returns ErrTypeMismatch or ErrDimensionMismatch if v does not belong
// to the space.
func (s *Space) Check(v vector.Vector) error {
	if v == nil {
		return index.InvalidParameter("vector", "must not be nil")
	}
	if v.Type() != s.typ {
		return &index.TypeMismatchError{Op: "index", Want: s.typ.String(), Got: v.Type().String()}
	}
	if v.Dim() != s.dim {
		return &index.DimensionMismatchError{Expected: s.dim, Actual: v.Dim()}
	}
	return nil
}

// NeedsNorm reports whether distances read cached norms.
func (s *Space) NeedsNorm() bool { return s.kind == Cosine }

// NormSquared returns the norm a caller should cache for v, or zero when the
// kind does not use norms.
func (s *Space) NormSquared(v vector.Vector) float64 {
	if s.kind != Cosine {
		return 0
	}
	return NormSquared(v)
}

// Distance compares two vectors of the space.
func (s *Space) Distance(a, b vector.Vector) float64 {
	var na, nb float64
	if s.kind == Cosine {
		na, nb = NormSquared(a), NormSquared(b)
	}
	return eval(s.kind, a, b, na, nb)
}

// DistanceNorms compares two vectors of the space using their cached norms.
func (s *Space) DistanceNorms(a, b vector.Vector, na, nb float64) float64 {
	return eval(s.kind, a, b, na, nb)
}

// Query prepares q for repeated comparisons.
func (s *Space) Query(q vector.Vector) (*Query, error) {
	if err := s.Check(q); err != nil {
		return nil, err
	}
	return &Query{space: s, vec: q, norm: s.NormSquared(q)}, nil
}

// Query is a validated query vector with its cached norm.
type Query struct {
	space *Space
	vec   vector.Vector
	norm  float64
}

// NewQuery validates q for kind and prepares it.
func NewQuery(kind Kind, q vector.Vector) (*Query, error) {
	s, err := NewSpace(kind, q.Type(), q.Dim())
	if err != nil {
		return nil, err
	}
	return s.Query(q)
}

// Vector returns the query vector.
func (q *Query) Vector() vector.Vector { return q.vec }

// Distance compares the query with v, which must belong to the same space.
func (q *Query) Distance(v vector.Vector) float64 {
	var nv float64
	if q.space.kind == Cosine {
		nv = NormSquared(v)
	}
	return eval(q.space.kind, q.vec, v, q.norm, nv)
}

// DistanceWithNorm compares the query with v using the cached norm of v.
func (q *Query) DistanceWithNorm(v vector.Vector, norm float64) float64 {
	return eval(q.space.kind, q.vec, v, q.norm, norm)
}
