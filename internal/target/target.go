// Package target describes a single FFmpeg download job and resolves the
// immutable options a pipeline run is executed with.
package target

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
)

// ArchiveType identifies how a downloaded file is turned into binaries.
type ArchiveType string

const (
	TypeZip      ArchiveType = "zip"
	TypeTar      ArchiveType = "tar"
	TypeDeb      ArchiveType = "deb"
	TypeBinary   ArchiveType = "binary"
	TypeSevenZip ArchiveType = "7z"
)

// DefaultOutput is the output directory used when none is given.
const DefaultOutput = "ffmpeg"

// ErrUnsupportedArchiveType indicates an archive type no strategy handles.
var ErrUnsupportedArchiveType = errors.New("unsupported archive type")

// ErrUnsupportedCombination indicates a platform that cannot use the declared
// archive type. It matches ErrUnsupportedArchiveType with errors.Is.
var ErrUnsupportedCombination = fmt.Errorf("platform cannot use this archive type: %w", ErrUnsupportedArchiveType)

// ParseArchiveType normalizes a user supplied type. Empty means zip.
func ParseArchiveType(s string) (ArchiveType, error) {
	t := ArchiveType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TypeZip, nil
	}
	switch t {
	case TypeZip, TypeTar, TypeDeb, TypeBinary, TypeSevenZip:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedArchiveType, s)
	}
}

// Descriptor fully describes one platform/arch/version download job.
type Descriptor struct {
	Platform string      `json:"platform" yaml:"platform" validate:"required,excludesall=/\\"`
	Arch     string      `json:"arch" yaml:"arch" validate:"required,excludesall=/\\"`
	Version  string      `json:"version" yaml:"version" validate:"required,excludesall=/\\"`
	URL      string      `json:"url" yaml:"url" validate:"required,url"`
	Filename string      `json:"filename" yaml:"filename" validate:"required,excludesall=/\\"`
	Type     ArchiveType `json:"type,omitempty" yaml:"type,omitempty"`
	Distro   string      `json:"distro,omitempty" yaml:"distro,omitempty" validate:"omitempty,excludesall=/\\"`
}

// IsWindows reports whether the descriptor targets Windows.
func (d Descriptor) IsWindows() bool {
	p := strings.ToLower(d.Platform)
	return p == "win32" || p == "windows"
}

// CanonicalName is the filename the pipeline guarantees to produce.
func (d Descriptor) CanonicalName() string {
	return BinaryName("ffmpeg", d.IsWindows())
}

// DirName is the per-target directory name used by batch runs.
func (d Descriptor) DirName() string {
	name := fmt.Sprintf("%s-%s-%s", d.Platform, d.Arch, d.Version)
	if d.Distro != "" {
		name += "-" + d.Distro
	}
	return name
}

// BinaryName appends .exe to base on Windows.
func BinaryName(base string, windows bool) string {
	if windows {
		return base + ".exe"
	}
	return base
}

var validate = validator.New()

// Validate checks required fields and normalizes Type in place.
func (d *Descriptor) Validate() error {
	d.Platform = strings.TrimSpace(d.Platform)
	d.Arch = strings.TrimSpace(d.Arch)
	d.Version = strings.TrimSpace(d.Version)
	d.Filename = strings.TrimSpace(d.Filename)
	d.Distro = strings.TrimSpace(d.Distro)

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check", strings.ToLower(fe.Field()), fe.Tag())
		}
		return err
	}
	// These end up as path components of the download and of batch
	// directories.
	for _, f := range []struct{ name, value string }{
		{"platform", d.Platform},
		{"arch", d.Arch},
		{"version", d.Version},
		{"distro", d.Distro},
		{"filename", d.Filename},
	} {
		if f.value == "." || f.value == ".." {
			return fmt.Errorf("invalid %s: %q", f.name, f.value)
		}
	}

	t, err := ParseArchiveType(string(d.Type))
	if err != nil {
		return err
	}
	d.Type = t

	if t == TypeDeb && d.IsWindows() {
		return fmt.Errorf("%s/%s: %w", d.Platform, t, ErrUnsupportedCombination)
	}
	return nil
}

// Options are the resolved execution parameters of one pipeline run.
type Options struct {
	Descriptor
	Output      string
	WithFFprobe bool
}

// Resolve validates d and builds Options with an absolute output directory.
func Resolve(d Descriptor, output string, withFFprobe bool) (Options, error) {
	if err := d.Validate(); err != nil {
		return Options{}, err
	}

	dir, err := ExpandPath(output)
	if err != nil {
		return Options{}, err
	}
	if dir == "" {
		dir = DefaultOutput
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Options{}, fmt.Errorf("resolve output dir: %w", err)
	}

	return Options{
		Descriptor:  d,
		Output:      abs,
		WithFFprobe: withFFprobe,
	}, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	return expanded, nil
}
