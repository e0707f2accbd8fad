package index

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engines matches exactly one of
// these via errors.Is.
var (
	// ErrDimensionMismatch is returned when a vector's dimension disagrees
	// with the index or with the other operand.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDimensionExceeded is returned when a representation's maximum
	// dimension or nonzero count is exceeded.
	ErrDimensionExceeded = errors.New("dimension exceeded")

	// ErrTypeMismatch is returned when a distance kind or index is
	// incompatible with a vector representation.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidParameter is returned for out-of-range parameters and
	// malformed input.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotReady is returned when an operation runs before build or
	// training completed.
	ErrNotReady = errors.New("index not ready")

	// ErrStorageFailure is returned when the page store fails.
	ErrStorageFailure = errors.New("storage failure")
)

// DimensionMismatchError carries the expected and actual dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// DimensionExceededError reports which limit was exceeded.
type DimensionExceededError struct {
	What  string // "dimension" or "nonzero count"
	Value int
	Max   int
}

func (e *DimensionExceededError) Error() string {
	return fmt.Sprintf("%s %d exceeds maximum %d", e.What, e.Value, e.Max)
}

func (e *DimensionExceededError) Unwrap() error { return ErrDimensionExceeded }

// TypeMismatchError reports an incompatible representation.
type TypeMismatchError struct {
	Op   string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("type mismatch: %s does not support %s", e.Op, e.Got)
	}
	return fmt.Sprintf("type mismatch: %s expects %s, got %s", e.Op, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// InvalidParameterError names the offending parameter.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// InvalidParameter is a shorthand for building an *InvalidParameterError.
func InvalidParameter(name, format string, args ...any) error {
	return &InvalidParameterError{Name: name, Reason: fmt.Sprintf(format, args...)}
}

// NotReadyError carries the state the index was in.
type NotReadyError struct {
	State State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("index not ready: state %s", e.State)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// StorageError wraps a failure of the page store or the underlying device.
//
// It matches ErrStorageFailure with errors.Is and unwraps to the device
// error.
type StorageError struct {
	Op   string
	Page uint32
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s page %d: %v", e.Op, e.Page, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

func (e *StorageError) Unwrap() error { return e.Err }
