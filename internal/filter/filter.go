// Package filter picks the files worth installing out of an extracted
// FFmpeg distribution and copies them, flattened, into the output directory.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/keanucz/ffbins/internal/archive"
	"github.com/keanucz/ffbins/internal/install"
	"github.com/keanucz/ffbins/internal/target"
)

// Exclusion reasons returned by Excluded.
const (
	ReasonExtension = "documentation extension"
	ReasonManPage   = "man page"
	ReasonDocName   = "documentation file"
	ReasonWebAsset  = "web asset"
	ReasonMetadata  = "project metadata"
	ReasonAuxBinary = "auxiliary executable"
)

var (
	docExtensions = map[string]bool{
		"html": true, "htm": true, "css": true, "js": true, "md": true, "txt": true,
	}
	docStems = map[string]bool{
		"readme": true, "license": true, "changelog": true, "authors": true,
		"copying": true, "install": true, "news": true,
	}
	webAssetParts = []string{"bootstrap", ".min.", "style"}
	metadataParts = []string{
		"general", "community", "developer", "platform", "fate", "faq",
		"git-howto", "mailing-list", "nut",
	}
	manPage = regexp.MustCompile(`\.[1-9](\.gz)?$`)
)

// Config selects what a Filter keeps.
type Config struct {
	// Windows marks a Windows target: binaries carry .exe and no mode bits
	// are set.
	Windows     bool
	WithFFprobe bool
	Log         archive.Logger
}

// Filter decides which extracted files are relevant.
type Filter struct {
	cfg Config
}

// New creates a Filter.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Excluded reports whether the file called name is noise, and why.
// Matching is case-insensitive on the base filename.
func (f *Filter) Excluded(name string) (bool, string) {
	lower := strings.ToLower(filepath.Base(name))

	switch lower {
	case "ffplay", "ffplay.exe":
		return true, ReasonAuxBinary
	case "ffprobe", "ffprobe.exe":
		if !f.cfg.WithFFprobe {
			return true, ReasonAuxBinary
		}
	}

	if ext := strings.TrimPrefix(filepath.Ext(lower), "."); docExtensions[ext] {
		return true, ReasonExtension
	}
	if manPage.MatchString(lower) && !strings.Contains(lower, ".so") {
		return true, ReasonManPage
	}
	if stem, _, _ := strings.Cut(lower, "."); docStems[stem] {
		return true, ReasonDocName
	}
	for _, part := range webAssetParts {
		if strings.Contains(lower, part) {
			return true, ReasonWebAsset
		}
	}
	for _, part := range metadataParts {
		if strings.Contains(lower, part) {
			return true, ReasonMetadata
		}
	}
	return false, ""
}

// Executable reports whether name should be installed with exec bits.
func (f *Filter) Executable(name string) bool {
	switch name {
	case f.binary("ffmpeg"), f.binary("ffprobe"), "ffmpeg", "ffprobe":
		return true
	}
	return filepath.Ext(name) == ""
}

// Select returns the records that survive exclusion. When two records share
// a base name the later one wins, so callers must pass records in a stable
// order. The result lists ffmpeg, then ffprobe, then the rest by name.
func (f *Filter) Select(records []archive.FileRecord) []archive.FileRecord {
	byName := make(map[string]archive.FileRecord, len(records))
	for _, r := range records {
		if skip, reason := f.Excluded(r.Name); skip {
			f.debug("excluded", "file", r.Name, "reason", reason)
			continue
		}
		if prev, ok := byName[r.Name]; ok {
			f.debug("duplicate file name, keeping later", "file", r.Name, "dropped", prev.Path)
		}
		byName[r.Name] = r
	}

	kept := make([]archive.FileRecord, 0, len(byName))
	for _, r := range byName {
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool {
		ri, rj := f.rank(kept[i].Name), f.rank(kept[j].Name)
		if ri != rj {
			return ri < rj
		}
		return kept[i].Name < kept[j].Name
	})
	return kept
}

// Apply walks srcDir, copies every relevant file into outDir and returns the
// installed records. It fails with install.ErrBinaryNotFound when the tree
// holds no ffmpeg binary, in which case nothing is copied.
func (f *Filter) Apply(srcDir, outDir string) ([]archive.FileRecord, error) {
	records, err := archive.Walk(srcDir)
	if err != nil {
		return nil, err
	}

	canonical := f.binary("ffmpeg")
	kept := f.Select(records)
	if len(kept) == 0 || kept[0].Name != canonical {
		return nil, fmt.Errorf("%w: no %s among %d extracted files", install.ErrBinaryNotFound, canonical, len(records))
	}

	installed := make([]archive.FileRecord, 0, len(kept))
	for _, r := range kept {
		dest := filepath.Join(outDir, r.Name)
		if err := install.Copy(dest, r.Path); err != nil {
			return nil, err
		}
		if f.Executable(r.Name) {
			if err := install.MakeExecutable(dest, f.cfg.Windows); err != nil {
				return nil, err
			}
		}
		f.debug("installed", "file", r.Name)
		installed = append(installed, archive.FileRecord{Name: r.Name, Path: dest})
	}

	if err := install.Verify(filepath.Join(outDir, canonical)); err != nil {
		return nil, err
	}
	return installed, nil
}

func (f *Filter) binary(base string) string {
	return target.BinaryName(base, f.cfg.Windows)
}

func (f *Filter) rank(name string) int {
	switch name {
	case f.binary("ffmpeg"):
		return 0
	case f.binary("ffprobe"):
		return 1
	default:
		return 2
	}
}

func (f *Filter) debug(msg string, keyvals ...any) {
	if f.cfg.Log != nil {
		f.cfg.Log.Debug(msg, keyvals...)
	}
}
