package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It maps to
// os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore stores named, immutable-per-write objects.
type BlobStore interface {
	// Get returns the content of blob name.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put writes blob name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes blob name. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
