// Package pipeline runs one download job end to end: fetch the declared
// file, route it to the extraction strategy for its archive type and install
// the resulting binaries into the output directory.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/keanucz/ffbins/internal/archive"
	"github.com/keanucz/ffbins/internal/deb"
	"github.com/keanucz/ffbins/internal/filter"
	"github.com/keanucz/ffbins/internal/install"
	"github.com/keanucz/ffbins/internal/target"
)

// Logger is the logging interface shared with the extraction packages.
type Logger = archive.Logger

// Fetcher downloads a URL to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

// Deps are the collaborators of a run.
type Deps struct {
	Fetcher Fetcher
	// DpkgDeb and SevenZip override the external tool lookups.
	DpkgDeb  string
	SevenZip string
	Log      Logger
}

// Result describes what a run installed.
type Result struct {
	// Binary is the path of the canonical ffmpeg binary.
	Binary string
	// Files lists every installed file, Binary first.
	Files []string
}

// job carries the state of one run through a strategy.
type job struct {
	opts    target.Options
	deps    Deps
	archive string // downloaded file
	tree    string // extraction dir inside the scratch dir
}

type strategy func(ctx context.Context, j *job) ([]string, error)

var strategies = map[target.ArchiveType]strategy{
	target.TypeZip:      installGeneric,
	target.TypeTar:      installGeneric,
	target.TypeSevenZip: installSevenZip,
	target.TypeDeb:      installDeb,
	target.TypeBinary:   installBinary,
}

// Run executes the pipeline for opts. The scratch directory is removed on
// every path, and with it any downloaded archive. Only the binary type
// downloads straight into the output directory.
func Run(ctx context.Context, opts target.Options, deps Deps) (Result, error) {
	handle, ok := strategies[opts.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", target.ErrUnsupportedArchiveType, opts.Type)
	}
	if deps.Fetcher == nil {
		return Result{}, fmt.Errorf("pipeline: no fetcher configured")
	}

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	j := &job{opts: opts, deps: deps}
	if opts.Type == target.TypeBinary {
		j.archive = filepath.Join(opts.Output, opts.Filename)
	} else {
		scratch := filepath.Join(opts.Output, "temp-"+uuid.NewString())
		defer func() {
			if err := os.RemoveAll(scratch); err != nil {
				logWarn(deps.Log, "failed to remove scratch dir", "path", scratch, "error", err)
			}
		}()
		j.archive = filepath.Join(scratch, opts.Filename)
		j.tree = filepath.Join(scratch, "tree")
	}

	logInfo(deps.Log, "downloading", "url", opts.URL, "file", opts.Filename)
	if _, err := deps.Fetcher.Fetch(ctx, opts.URL, j.archive); err != nil {
		return Result{}, err
	}

	logDebug(deps.Log, "extracting", "type", opts.Type, "archive", j.archive)
	files, err := handle(ctx, j)
	if err != nil {
		return Result{}, err
	}

	for _, f := range files {
		logInfo(deps.Log, "installed", "path", f)
	}
	return Result{Binary: files[0], Files: files}, nil
}

func installGeneric(ctx context.Context, j *job) ([]string, error) {
	methods := []archive.Method{archive.DecompressMethod}
	if err := archive.Chain(ctx, j.archive, j.tree, methods, nil, j.deps.Log); err != nil {
		return nil, err
	}
	return j.filter()
}

func installSevenZip(ctx context.Context, j *job) ([]string, error) {
	if err := archive.Chain(ctx, j.archive, j.tree, archive.SevenZipMethods(j.deps.SevenZip), nil, j.deps.Log); err != nil {
		return nil, err
	}
	return j.filter()
}

func installDeb(ctx context.Context, j *job) ([]string, error) {
	return deb.Install(ctx, j.archive, j.tree, j.opts.Output, deb.Options{
		DpkgDeb:     j.deps.DpkgDeb,
		WithFFprobe: j.opts.WithFFprobe,
		Log:         j.deps.Log,
	})
}

// installBinary renames the download to the canonical name when needed and
// marks it executable. Running it again over the same download is a no-op.
func installBinary(_ context.Context, j *job) ([]string, error) {
	dest := filepath.Join(j.opts.Output, j.opts.CanonicalName())
	if j.archive != dest {
		if err := install.Move(dest, j.archive); err != nil {
			return nil, fmt.Errorf("rename %s: %w", j.opts.Filename, err)
		}
	}
	if err := install.MakeExecutable(dest, j.opts.IsWindows()); err != nil {
		return nil, err
	}
	if err := install.Verify(dest); err != nil {
		return nil, err
	}
	return []string{dest}, nil
}

func (j *job) filter() ([]string, error) {
	f := filter.New(filter.Config{
		Windows:     j.opts.IsWindows(),
		WithFFprobe: j.opts.WithFFprobe,
		Log:         j.deps.Log,
	})
	records, err := f.Apply(j.tree, j.opts.Output)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(records))
	for _, r := range records {
		files = append(files, r.Path)
	}
	return files, nil
}

func logDebug(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Debug(msg, keyvals...)
	}
}

func logInfo(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Info(msg, keyvals...)
	}
}

func logWarn(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Warn(msg, keyvals...)
	}
}
