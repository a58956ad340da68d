// Package fs provides the filesystem adapter used by the state cache.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the cache needs
//   - [Real]: production implementation using [os] and atomic renames
//   - [Chaos]: testing implementation that injects random failures
//   - [StrictTestFS]: testing wrapper that fails on real (non-injected) errors
//
// On top of [FS] the package implements the two compound operations the
// cache consumes as contracts:
//   - [WriteFileMkdir]: atomic write that creates missing parent directories
//   - [RemovePrune]: delete a file, then best-effort remove its parent
//     directory if that left it empty
//
// Example usage:
//
//	fsys := fs.NewReal()
//	err := fs.WriteFileMkdir(fsys, "out/.gbstate/copy/state.json", data)
//	if err != nil {
//	    return err
//	}
//
//	// later, when the state becomes empty
//	err = fs.RemovePrune(fsys, "out/.gbstate/copy/state.json")
package fs

import (
	"os"
)

// FS defines the filesystem operations used for state persistence.
//
// Two implementations are provided:
//   - [Real]: production use, wraps [os] package
//   - [Chaos]: testing use, injects random failures
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// --- Reading ---

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	// Entries are sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// --- Writing ---

	// WriteFileAtomic writes data to a file atomically.
	// Uses a temp file + rename so readers never observe a partial file.
	// The parent directory must already exist; see [WriteFileMkdir].
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	// No error if the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// --- Metadata ---

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// --- Mutations ---

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}
