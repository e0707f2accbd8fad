// Package storage defines the page device abstraction the index persists
// to, with an in-memory device and a single-file device.
//
// A device is an array of fixed-size pages addressed by PageID. Devices
// know nothing about page contents; checksums, page types and free lists
// are handled by the page store on top.
//
// Additional devices live in sub-packages: blobdev stores each page as an
// object in a blob store (S3, MinIO, memory), badgerdev stores pages in a
// Badger key-value store.
package storage
