// Package fs provides the filesystem abstraction used by the file page
// device.
//
// Pages are read and written positionally, so [File] exposes ReadAt and
// WriteAt alongside Sync and Truncate. [LocalFS] is backed by the os
// package; [FaultyFS] wraps another FileSystem and injects I/O errors for
// tests:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("pages.db", fs.Fault{FailAfterBytes: 8192})
//
// Operations take no context: local reads and writes are not interruptible
// at the syscall level.
package fs
