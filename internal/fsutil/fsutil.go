// Package fsutil provides the tree and file operations the stager and
// the artifact writers share. Everything goes through billy so the same
// code runs against the host filesystem and against memfs in tests.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrDestinationExists is returned when a fresh copy would land on an existing path.
var ErrDestinationExists = errors.New("destination already exists")

// Exists reports whether path exists on fs.
func Exists(fs billy.Basic, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IsDir reports whether path exists and is a directory.
func IsDir(fs billy.Basic, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.IsDir()
}

// RemoveAll removes path and everything below it. A missing path is not an error.
func RemoveAll(fs billy.Basic, path string) error {
	if err := util.RemoveAll(fs, path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Reset removes dir if present and creates it empty.
func Reset(fs billy.Filesystem, dir string) error {
	if err := RemoveAll(fs, dir); err != nil {
		return err
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// CopyTree copies srcDir on src to dstDir on dst. dstDir must not exist;
// trees are never merged.
func CopyTree(src billy.Filesystem, srcDir string, dst billy.Filesystem, dstDir string) error {
	exists, err := Exists(dst, dstDir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dstDir, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dstDir)
	}
	if !IsDir(src, srcDir) {
		return fmt.Errorf("copy %s: not a directory", srcDir)
	}

	return util.Walk(src, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		target := dst.Join(dstDir, filepath.ToSlash(rel))

		switch {
		case info.IsDir():
			return dst.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := src.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			return dst.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFileMode(src, path, dst, target, info.Mode().Perm())
		default:
			// sockets, devices: nothing a source tree should contain
			return nil
		}
	})
}

// CopyFile copies one regular file, creating parent directories and
// overwriting an existing destination.
func CopyFile(src billy.Filesystem, srcPath string, dst billy.Filesystem, dstPath string) error {
	info, err := src.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", srcPath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("copy %s: not a regular file", srcPath)
	}
	return copyFileMode(src, srcPath, dst, dstPath, info.Mode().Perm())
}

func copyFileMode(src billy.Filesystem, srcPath string, dst billy.Filesystem, dstPath string, perm os.FileMode) error {
	in, err := src.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer func() { _ = in.Close() }()

	if err := dst.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dstPath), err)
	}
	out, err := dst.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s -> %s: %w", srcPath, dstPath, err)
	}
	return out.Close()
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(fs billy.Filesystem, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := fs.TempFile(dir, ".tflmake-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	if ch, ok := fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, perm) // best-effort permission sync
	}

	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}
