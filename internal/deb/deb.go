// Package deb installs FFmpeg binaries shipped inside Debian packages.
//
// A package is unpacked with dpkg-deb when it is available. Otherwise the ar
// container is read directly and its data.tar member is decoded with the
// generic tar decoder.
package deb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"

	"github.com/keanucz/ffbins/internal/archive"
	"github.com/keanucz/ffbins/internal/install"
	"github.com/keanucz/ffbins/internal/toolexec"
)

// ErrNoDataMember indicates the package has no data.tar member.
var ErrNoDataMember = errors.New("no data.tar member in package")

// Options control how a package is installed.
type Options struct {
	// DpkgDeb overrides the dpkg-deb lookup when non-empty.
	DpkgDeb     string
	WithFFprobe bool
	Log         archive.Logger
}

// Methods returns the ordered ways of unpacking a package.
func Methods(dpkgDeb string) []archive.Method {
	return []archive.Method{
		{Name: "dpkg-deb", Extract: func(ctx context.Context, debPath, dest string) error {
			runner, err := toolexec.New(toolexec.DpkgDeb, dpkgDeb)
			if err != nil {
				return err
			}
			return runner.Run(ctx, "-x", debPath, dest)
		}},
		{Name: "ar", Extract: func(_ context.Context, debPath, dest string) error {
			return ExtractData(debPath, dest)
		}},
	}
}

// ExtractData unpacks the data.tar member of the package at debPath.
func ExtractData(debPath, dest string) error {
	f, err := os.Open(debPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := ar.NewReader(f)
	for {
		header, err := r.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", ErrNoDataMember, filepath.Base(debPath))
		}
		if err != nil {
			return fmt.Errorf("read ar header: %w", err)
		}

		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		if !strings.HasPrefix(name, "data.tar") {
			continue
		}
		return archive.Untar(r, archive.FormatFromName(name), dest)
	}
}

// Install unpacks debPath into scratch and copies ffmpeg (and ffprobe when
// wanted and present) into outputDir. The caller owns scratch. It returns
// the installed paths, ffmpeg first.
func Install(ctx context.Context, debPath, scratch, outputDir string, opts Options) ([]string, error) {
	var found string
	accept := func(dir string) error {
		p, err := archive.Find(dir, "ffmpeg")
		found = p
		return err
	}

	if err := archive.Chain(ctx, debPath, scratch, Methods(opts.DpkgDeb), accept, opts.Log); err != nil {
		var extErr *archive.ExtractionError
		if errors.As(err, &extErr) && missingBinary(extErr) {
			return nil, fmt.Errorf("%w in %s: %w", install.ErrBinaryNotFound, filepath.Base(debPath), err)
		}
		return nil, err
	}

	installed := make([]string, 0, 2)
	dest := filepath.Join(outputDir, "ffmpeg")
	if err := place(dest, found); err != nil {
		return nil, err
	}
	installed = append(installed, dest)

	if opts.WithFFprobe {
		if probe, err := archive.Find(scratch, "ffprobe"); err == nil {
			dest := filepath.Join(outputDir, "ffprobe")
			if err := place(dest, probe); err != nil {
				return nil, err
			}
			installed = append(installed, dest)
		} else if opts.Log != nil {
			opts.Log.Debug("package has no ffprobe", "package", filepath.Base(debPath))
		}
	}

	if err := install.Verify(installed[0]); err != nil {
		return nil, err
	}
	return installed, nil
}

func place(dest, src string) error {
	if err := install.Copy(dest, src); err != nil {
		return err
	}
	return install.MakeExecutable(dest, false)
}

// missingBinary reports whether some method unpacked the package cleanly
// but the tree had no ffmpeg in it.
func missingBinary(e *archive.ExtractionError) bool {
	for _, a := range e.Attempts {
		if errors.Is(a.Err, archive.ErrNoMatch) {
			return true
		}
	}
	return false
}
