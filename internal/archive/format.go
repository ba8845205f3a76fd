package archive

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is a container or compression format recognised by Decompress.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatGzip
	FormatXz
	FormatBzip2
	FormatZstd
	FormatSevenZip
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatGzip:
		return "tar.gz"
	case FormatXz:
		return "tar.xz"
	case FormatBzip2:
		return "tar.bz2"
	case FormatZstd:
		return "tar.zst"
	case FormatSevenZip:
		return "7z"
	default:
		return "unknown"
	}
}

var mimeFormats = []struct {
	mime   string
	format Format
}{
	{"application/zip", FormatZip},
	{"application/x-tar", FormatTar},
	{"application/gzip", FormatGzip},
	{"application/x-xz", FormatXz},
	{"application/x-bzip2", FormatBzip2},
	{"application/zstd", FormatZstd},
	{"application/x-7z-compressed", FormatSevenZip},
}

// Detect sniffs the format of the file at path from its content, falling
// back to the filename when the content is not conclusive.
func Detect(path string) Format {
	if mt, err := mimetype.DetectFile(path); err == nil {
		for m := mt; m != nil; m = m.Parent() {
			for _, mf := range mimeFormats {
				if m.Is(mf.mime) {
					return mf.format
				}
			}
		}
	}
	return FormatFromName(path)
}

// FormatFromName guesses the format from the file extension.
func FormatFromName(name string) Format {
	lower := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatGzip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatXz
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return FormatBzip2
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatZstd
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	case strings.HasSuffix(lower, ".7z"):
		return FormatSevenZip
	default:
		return FormatUnknown
	}
}
