package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// WriteFileMkdir writes data to path atomically, creating any missing
// parent directories first.
//
// Either the old content or the full new content is visible at path
// afterwards, never a partial write.
func WriteFileMkdir(fsys FS, path string, data []byte) error {
	if fsys == nil {
		panic("fs is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	dir := filepath.Dir(path)

	err := fsys.MkdirAll(dir, dirPerms)
	if err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}

	err = fsys.WriteFileAtomic(path, data, filePerms)
	if err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}

	return nil
}

// RemovePrune deletes the file at path and then tries to remove its parent
// directory.
//
// A missing file is not an error. Pruning the parent is best-effort: a
// directory that still has entries is left alone, and any other failure to
// remove it is ignored. Only the file removal itself can fail the call.
func RemovePrune(fsys FS, path string) error {
	if fsys == nil {
		panic("fs is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	err := fsys.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", path, err)
	}

	_ = pruneDir(fsys, filepath.Dir(path))

	return nil
}

// pruneDir removes dir if it is empty. A non-empty or already missing
// directory returns nil.
func pruneDir(fsys FS, dir string) error {
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	err := fsys.Remove(dir)
	if err == nil || isDirNotEmpty(err) || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

// isDirNotEmpty reports whether err is the rmdir failure for a directory
// that still has entries. POSIX allows either ENOTEMPTY or EEXIST.
func isDirNotEmpty(err error) bool {
	return errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)
}
