// Package index holds the types shared by the graph and cluster engines:
// the error taxonomy, search results, statistics and lifecycle states.
//
// # Errors
//
// Every engine error matches one sentinel with errors.Is:
//
//   - ErrDimensionMismatch: operand dimensions disagree
//   - ErrDimensionExceeded: representation limit exceeded
//   - ErrTypeMismatch: distance kind or engine does not support the representation
//   - ErrInvalidParameter: parameter out of range or malformed input
//   - ErrNotReady: operation before build or training completed
//   - ErrStorageFailure: the page store or device failed
//
// The detail types (*DimensionMismatchError, *StorageError, ...) can be
// extracted with errors.As.
package index
