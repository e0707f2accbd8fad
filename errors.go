package vecindex

import "github.com/hupe1980/vecindex/index"

// Error kinds. Every error returned by an Index matches one of these via
// errors.Is, except context errors.
var (
	ErrDimensionMismatch = index.ErrDimensionMismatch
	ErrDimensionExceeded = index.ErrDimensionExceeded
	ErrTypeMismatch      = index.ErrTypeMismatch
	ErrInvalidParameter  = index.ErrInvalidParameter
	ErrNotReady          = index.ErrNotReady
	ErrStorageFailure    = index.ErrStorageFailure
)

// Error details, usable with errors.As.
type (
	DimensionMismatchError = index.DimensionMismatchError
	DimensionExceededError = index.DimensionExceededError
	TypeMismatchError      = index.TypeMismatchError
	InvalidParameterError  = index.InvalidParameterError
	NotReadyError          = index.NotReadyError
	StorageError           = index.StorageError
)
