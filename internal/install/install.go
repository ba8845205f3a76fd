// Package install places extracted FFmpeg binaries into the output directory
// and normalizes their permissions.
package install

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrBinaryNotFound indicates the ffmpeg binary was not where the pipeline
// expected it after extraction.
var ErrBinaryNotFound = errors.New("ffmpeg binary not found")

// ExecMode is applied to installed executables on non-Windows targets.
const ExecMode os.FileMode = 0o755

// Copy streams src into dst, replacing dst if it exists. Symlinks in src are
// followed.
func Copy(dst, src string) error {
	s, err := os.Open(src)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	d, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(d, s); err != nil {
		d.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return d.Close()
}

// Move renames src to dst, copying across filesystems when rename fails.
func Move(dst, src string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := Copy(dst, src); err != nil {
		return err
	}
	return os.Remove(src)
}

// MakeExecutable sets ExecMode on path. Windows targets have no permission
// bits to set, so it is a no-op there.
func MakeExecutable(path string, windows bool) error {
	if windows {
		return nil
	}
	if err := os.Chmod(path, ExecMode); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Verify checks that path is a regular file.
func Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBinaryNotFound, path)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrBinaryNotFound, path)
	}
	return nil
}
