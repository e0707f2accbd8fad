// Package blobstore abstracts the object stores that back the blob page
// device.
//
// A BlobStore holds whole objects addressed by name. Implementations must
// be safe for concurrent use and report missing objects with an error that
// satisfies errors.Is(err, ErrNotFound).
//
// # Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral indexes
//   - s3.Store: Amazon S3 (aws-sdk-go-v2)
//   - minio.Store: MinIO and other S3-compatible stores (minio-go)
package blobstore
