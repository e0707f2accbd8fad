// Package blobdev implements a storage.Device that keeps every page as one
// object in a blobstore.BlobStore, named page-%010d.
//
// Pages are framed as [codec u8][raw length u32][payload]. With
// CompressionLZ4 or CompressionZstd the payload is compressed when that
// saves at least a tenth of the page; otherwise it is stored raw. Mostly
// empty index pages compress well, which matters for object stores billed
// by size.
//
// The page count is recovered on open by listing the page objects, and the
// page size from the raw length of page 0. Transfers can be throttled with
// a resource.Controller.
package blobdev
