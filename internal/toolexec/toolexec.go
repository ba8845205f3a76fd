// Package toolexec locates and runs the external archive tools the
// extraction pipeline can fall back on (dpkg-deb, 7z).
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNotFound indicates none of the candidate tool names could be located.
var ErrNotFound = errors.New("tool not found")

// Tool names an external program and how to find it.
type Tool struct {
	// Names are tried on PATH in order.
	Names []string
	// Env is consulted before PATH when set.
	Env string
}

var (
	// DpkgDeb unpacks Debian packages.
	DpkgDeb = Tool{Names: []string{"dpkg-deb"}, Env: "FFBINS_DPKG_DEB"}
	// SevenZip extracts 7z archives.
	SevenZip = Tool{Names: []string{"7zz", "7z", "7za"}, Env: "FFBINS_7Z"}
)

// Runner wraps execution of a located binary.
type Runner struct {
	path string
}

// Locate finds the tool binary to use. Order:
// 1) explicit path argument if non-empty
// 2) the tool's environment variable
// 3) the first of the tool's names found on PATH
func Locate(t Tool, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if t.Env != "" {
		if env := os.Getenv(t.Env); env != "" {
			return env, nil
		}
	}
	for _, name := range t.Names {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, strings.Join(t.Names, ", "))
}

// New creates a Runner using the located tool path.
func New(t Tool, explicit string) (*Runner, error) {
	p, err := Locate(t, explicit)
	if err != nil {
		return nil, err
	}
	return &Runner{path: p}, nil
}

// Run executes the tool with the provided arguments. Combined output is
// folded into the returned error when the command fails.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", r.path, err, msg)
		}
		return fmt.Errorf("%s: %w", r.path, err)
	}
	return nil
}

// Path returns the tool path in use.
func (r *Runner) Path() string {
	return r.path
}
