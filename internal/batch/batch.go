// Package batch drives the CLI once per target to build a local repository
// of FFmpeg binaries, one directory per platform/arch/version/distro.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"

	"github.com/keanucz/ffbins/internal/archive"
	"github.com/keanucz/ffbins/internal/install"
	"github.com/keanucz/ffbins/internal/target"
)

// ErrTargetsFailed is returned when at least one target failed.
var ErrTargetsFailed = errors.New("batch targets failed")

// ErrMissingArtifact marks a run that reported success but left no binary.
var ErrMissingArtifact = errors.New("run succeeded but produced no binary")

// Runner processes a single target into outDir.
type Runner interface {
	Run(ctx context.Context, d target.Descriptor, outDir string) error
}

// ExecRunner runs the ffbins executable as a subprocess per target.
type ExecRunner struct {
	Path string
	// Args are passed before the per-target flags, e.g. --verbose.
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner for the currently running executable.
func NewExecRunner() (*ExecRunner, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate ffbins executable: %w", err)
	}
	return &ExecRunner{Path: path, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Flags returns the command line that processes d into outDir.
func Flags(d target.Descriptor, outDir string) []string {
	args := []string{
		"--platform", d.Platform,
		"--arch", d.Arch,
		"--version", d.Version,
		"--url", d.URL,
		"--filename", d.Filename,
		"--output", outDir,
	}
	if d.Type != "" {
		args = append(args, "--type", string(d.Type))
	}
	if d.Distro != "" {
		args = append(args, "--distro", d.Distro)
	}
	return args
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, d target.Descriptor, outDir string) error {
	args := append(append([]string{}, r.Args...), Flags(d, outDir)...)
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffbins exited: %w", err)
	}
	return nil
}

// Options control a batch run.
type Options struct {
	// Root is the repository directory holding one subdirectory per target.
	Root string
	// Strict stops at the first failed target.
	Strict bool
	Log    archive.Logger
}

// Failure records a target that did not produce its binary.
type Failure struct {
	Target target.Descriptor
	Err    error
}

// Summary is the outcome of a batch run.
type Summary struct {
	Total     int
	Succeeded []target.Descriptor
	Failed    []Failure
	// Skipped counts targets never attempted because Strict stopped early.
	Skipped int
}

// Err returns ErrTargetsFailed wrapped with the count, or nil.
func (s Summary) Err() error {
	if len(s.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d", ErrTargetsFailed, len(s.Failed), s.Total)
}

// Run processes targets one after another. A target fails when the runner
// fails or when its canonical binary is missing afterwards.
func Run(ctx context.Context, targets []target.Descriptor, runner Runner, opts Options) (Summary, error) {
	s := Summary{Total: len(targets)}

	for i, d := range targets {
		if err := ctx.Err(); err != nil {
			s.Skipped = len(targets) - i
			return s, err
		}

		dir := filepath.Join(opts.Root, d.DirName())
		logInfo(opts.Log, "building target", "target", d.DirName(), "index", strconv.Itoa(i+1)+"/"+strconv.Itoa(len(targets)))

		err := runner.Run(ctx, d, dir)
		if err == nil {
			if verr := install.Verify(filepath.Join(dir, d.CanonicalName())); verr != nil {
				err = fmt.Errorf("%w: %w", ErrMissingArtifact, verr)
			}
		}
		if err != nil {
			logError(opts.Log, "target failed", "target", d.DirName(), "error", err)
			s.Failed = append(s.Failed, Failure{Target: d, Err: err})
			if opts.Strict {
				s.Skipped = len(targets) - i - 1
				break
			}
			continue
		}
		s.Succeeded = append(s.Succeeded, d)
	}

	return s, s.Err()
}

// Print writes a human readable summary to w.
func (s Summary) Print(w io.Writer) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	failColor := color.New(color.Reset)
	if len(s.Failed) > 0 {
		failColor = red
	}

	fmt.Fprintf(w, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Batch Summary: %s, %s", green.Sprintf("%d successful", len(s.Succeeded)), failColor.Sprintf("%d failed", len(s.Failed)))
	if s.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", s.Skipped)
	}
	fmt.Fprintln(w)

	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "\nFailed targets:\n")
		for _, f := range s.Failed {
			fmt.Fprintf(w, "  %s %s: %v\n", red.Sprint("✗"), f.Target.DirName(), f.Err)
		}
	}
}

func logInfo(logger archive.Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Info(msg, keyvals...)
	}
}

func logError(logger archive.Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Error(msg, keyvals...)
	}
}
