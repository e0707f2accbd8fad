// Package vector defines the four vector representations shared by the
// graph and cluster indexes, their conversions and their binary layouts.
//
//   - Dense: float32 elements, dimension 1..16000
//   - Half: IEEE-754 binary16 elements, dimension 1..16000
//   - Binary: packed bits, dimension 1..64000
//   - Sparse: strictly increasing (index, value) pairs, dimension up to 1e9
//     and at most 16000 nonzero elements
//
// Values are immutable. Constructors copy their input and Convert always
// allocates a new value.
//
// Example:
//
//	v, err := vector.NewDense([]float32{1, 2, 3})
//	if err != nil {
//		return err
//	}
//	h, err := vector.Convert(v, vector.TypeHalf)
//	b := vector.Marshal(h)
package vector
