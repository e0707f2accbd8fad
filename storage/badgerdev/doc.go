// Package badgerdev implements a storage.Device on a Badger key-value
// store. Each page is one value under p/<big-endian page id>; the page
// count and page size live under n and s.
package badgerdev
