package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by FaultyFS when a rule fires without its own error.
var ErrInjected = errors.New("fs: injected fault")

// Fault describes how files matching a rule fail.
type Fault struct {
	// FailAfterBytes fails a write that would push the bytes written to the
	// file past this value. Zero disables the limit; use FailWrites to fail
	// every write.
	FailAfterBytes int64
	FailWrites     bool
	FailReads      bool
	FailOnSync     bool
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS is a FileSystem wrapper that injects errors into files whose
// name contains a registered pattern.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS creates a FaultyFS wrapping fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
	}
}

// AddRule registers fault for every file whose name contains pattern. The
// rule also applies to files that are already open.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.rules)
}

func (f *FaultyFS) fault(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, name: name}, nil
}

func (f *FaultyFS) Remove(name string) error              { return f.FS.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fs   *FaultyFS
	name string

	mu      sync.Mutex
	written int64
}

func (ff *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if fault, ok := ff.fs.fault(ff.name); ok {
		if fault.FailWrites {
			return 0, fault.err()
		}
		if fault.FailAfterBytes > 0 {
			ff.mu.Lock()
			over := ff.written+int64(len(p)) > fault.FailAfterBytes
			ff.mu.Unlock()
			if over {
				return 0, fault.err()
			}
		}
	}

	n, err := ff.File.WriteAt(p, off)
	ff.mu.Lock()
	ff.written += int64(n)
	ff.mu.Unlock()
	return n, err
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if fault, ok := ff.fs.fault(ff.name); ok && fault.FailReads {
		return 0, fault.err()
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Sync() error {
	if fault, ok := ff.fs.fault(ff.name); ok && fault.FailOnSync {
		return fault.err()
	}
	return ff.File.Sync()
}
