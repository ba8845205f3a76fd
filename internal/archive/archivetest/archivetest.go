// Package archivetest builds small in-memory archives for tests.
package archivetest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Entry is one file in a generated archive. Mode 0 means 0644.
// Type defaults to a regular file. Linkname is the target of symlink and
// hard link entries.
type Entry struct {
	Name     string
	Body     string
	Mode     int64
	Type     byte
	Linkname string
}

// SevenZipEntries lists the files stored in SevenZip's archive.
var SevenZipEntries = []Entry{
	{Name: "ffmpeg-7.0-static/ffmpeg", Body: "7z-ffmpeg-binary", Mode: 0o755},
	{Name: "ffmpeg-7.0-static/ffprobe", Body: "7z-ffprobe-binary", Mode: 0o755},
	{Name: "ffmpeg-7.0-static/readme.txt", Body: "docs"},
}

//go:embed testdata/ffmpeg.7z
var sevenZip []byte

// SevenZip returns a stored (uncompressed) 7z archive holding
// SevenZipEntries with unix permissions.
func SevenZip() []byte {
	return bytes.Clone(sevenZip)
}

func (e Entry) mode() int64 {
	if e.Mode == 0 {
		return 0o644
	}
	return e.Mode
}

// Tar returns an uncompressed tar stream holding entries in order.
func Tar(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		header := &tar.Header{
			Name:     e.Name,
			Mode:     e.mode(),
			Size:     int64(len(e.Body)),
			Typeflag: tar.TypeReg,
		}
		if e.Type != 0 && e.Type != tar.TypeReg {
			header.Typeflag = e.Type
			header.Linkname = e.Linkname
			header.Size = 0
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("write header for %s: %v", e.Name, err)
		}
		if header.Size == 0 {
			continue
		}
		if _, err := tw.Write([]byte(e.Body)); err != nil {
			t.Fatalf("write content for %s: %v", e.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip compressed tar stream.
func TarGz(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	return compress(t, Tar(t, entries...), func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	})
}

// TarXz returns an xz compressed tar stream.
func TarXz(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	return compress(t, Tar(t, entries...), func(w io.Writer) (io.WriteCloser, error) {
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return xw, nil
	})
}

// TarZst returns a zstd compressed tar stream.
func TarZst(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	return compress(t, Tar(t, entries...), func(w io.Writer) (io.WriteCloser, error) {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	})
}

// Zip returns a zip archive holding entries in order.
func Zip(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		fh.SetMode(os.FileMode(e.mode()))
		f, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := f.Write([]byte(e.Body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func compress(t *testing.T, data []byte, newWriter func(io.Writer) (io.WriteCloser, error)) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := newWriter(&buf)
	if err != nil {
		t.Fatalf("create compressor: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}
	return buf.Bytes()
}
