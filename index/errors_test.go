package index

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"dimension mismatch", &DimensionMismatchError{Expected: 3, Actual: 4}, ErrDimensionMismatch},
		{"dimension exceeded", &DimensionExceededError{What: "dimension", Value: 20000, Max: 16000}, ErrDimensionExceeded},
		{"type mismatch", &TypeMismatchError{Op: "hamming", Want: "binary", Got: "dense"}, ErrTypeMismatch},
		{"invalid parameter", InvalidParameter("efSearch", "must be >= k (%d)", 10), ErrInvalidParameter},
		{"not ready", &NotReadyError{State: StateEmpty}, ErrNotReady},
		{"storage", &StorageError{Op: "read", Page: 7, Err: io.ErrUnexpectedEOF}, ErrStorageFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestStorageErrorUnwrapsCause(t *testing.T) {
	err := error(&StorageError{Op: "write", Page: 1, Err: io.ErrShortWrite})
	assert.ErrorIs(t, err, io.ErrShortWrite)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, uint32(1), se.Page)
}

func TestSortResults(t *testing.T) {
	res := []Result{{ID: 3, Distance: 1}, {ID: 1, Distance: 2}, {ID: 2, Distance: 1}}
	SortResults(res)
	assert.Equal(t, []Result{{ID: 2, Distance: 1}, {ID: 3, Distance: 1}, {ID: 1, Distance: 2}}, res)
}

func TestVacuumReportErr(t *testing.T) {
	assert.NoError(t, VacuumReport{}.Err())

	r := VacuumReport{Failed: 1, Errors: []error{io.EOF}}
	assert.ErrorIs(t, r.Err(), io.EOF)
}
