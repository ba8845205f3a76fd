package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ErrUnknownFormat indicates the archive format could not be determined.
var ErrUnknownFormat = errors.New("unknown archive format")

// ErrUnsafePath indicates an archive entry that would be written outside the
// destination directory.
var ErrUnsafePath = errors.New("unsafe path in archive")

// Decompress unpacks a zip or (compressed) tar archive into dest.
func Decompress(archivePath, dest string) error {
	format := Detect(archivePath)
	switch format {
	case FormatZip:
		return extractZip(archivePath, dest)
	case FormatTar, FormatGzip, FormatXz, FormatBzip2, FormatZstd:
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		return Untar(f, format, dest)
	case FormatSevenZip:
		return fmt.Errorf("%s is a 7z archive, declare type 7z", filepath.Base(archivePath))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(archivePath))
	}
}

// DecompressMethod wraps Decompress for use in a Chain.
var DecompressMethod = Method{
	Name: "decompress",
	Extract: func(_ context.Context, archivePath, dest string) error {
		return Decompress(archivePath, dest)
	},
}

// Untar decodes a tar stream compressed with format into dest.
func Untar(r io.Reader, format Format, dest string) error {
	var src io.Reader
	switch format {
	case FormatTar:
		src = r
	case FormatGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		src = gz
	case FormatXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
		src = xr
	case FormatBzip2:
		src = bzip2.NewReader(r)
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()
		src = zr
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return extractTar(tar.NewReader(src), dest)
}

// link is a symlink or hard link created after all regular files exist.
type link struct {
	target   string
	linkname string
	hard     bool
}

func extractTar(tr *tar.Reader, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	var links []link
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			links = append(links, link{target: target, linkname: header.Linkname})
		case tar.TypeLink:
			src, err := safeJoin(dest, header.Linkname)
			if err != nil {
				return err
			}
			links = append(links, link{target: target, linkname: src, hard: true})
		default:
			// Device nodes, fifos and the like have no place in a binary drop.
		}
	}

	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf("resolve dest dir: %w", err)
	}

	// Links are created in archive order, so an earlier symlink can redirect
	// a later entry's parent outside dest. Check against the tree as it is now.
	for _, l := range links {
		if !staysInside(root, filepath.Dir(l.target)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, l.target)
		}
		if l.hard && !staysInside(root, l.linkname) {
			return fmt.Errorf("%w: hard link to %s", ErrUnsafePath, l.linkname)
		}
		if err := os.MkdirAll(filepath.Dir(l.target), 0o755); err != nil {
			return fmt.Errorf("create directory for link: %w", err)
		}
		os.Remove(l.target)
		if l.hard {
			if err := os.Link(l.linkname, l.target); err != nil {
				return fmt.Errorf("create hard link %s: %w", l.target, err)
			}
			continue
		}
		// Broken symlinks are tolerated; Walk skips anything that does not
		// resolve to a regular file inside the tree.
		_ = os.Symlink(l.linkname, l.target)
	}
	return nil
}

// extractZip extracts a ZIP archive to the destination directory.
func extractZip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

// safeJoin joins name onto dest and rejects results outside dest.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(dest)
	target := filepath.Join(clean, name)
	if target != clean && !strings.HasPrefix(target, clean+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// staysInside resolves the deepest existing ancestor of path (path itself
// included) and reports whether it lies below root. root must already be
// free of symlinks.
func staysInside(root, path string) bool {
	p := path
	for {
		_, err := os.Lstat(p)
		if err == nil {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return false
			}
			return resolved == root || strings.HasPrefix(resolved, root+string(os.PathSeparator))
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

// writeFile streams r into path, creating parent directories. Entries with
// no permission bits recorded get 0644.
func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return out.Close()
}
