package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoMatch indicates Find did not locate the requested file.
var ErrNoMatch = errors.New("file not found in extracted tree")

// FileRecord is a regular file discovered in an extracted tree.
type FileRecord struct {
	Name string // base filename
	Path string // absolute or root-relative path on disk
}

// Walk lists every regular file below root. Entries are visited in lexical
// order per directory, so the result is deterministic for a given tree.
// Symlinks are included only when they resolve to a regular file inside root.
func Walk(root string) ([]FileRecord, error) {
	cleanRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	var records []FileRecord
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return nil
		case d.Type().IsRegular():
			records = append(records, FileRecord{Name: d.Name(), Path: path})
		case d.Type()&fs.ModeSymlink != 0:
			if resolvesInside(cleanRoot, path) {
				records = append(records, FileRecord{Name: d.Name(), Path: path})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return records, nil
}

func resolvesInside(root, path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return resolved == root || strings.HasPrefix(resolved, root+string(os.PathSeparator))
}

// Find returns the path of the first file named exactly name below root.
func Find(root, name string) (string, error) {
	records, err := Walk(root)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.Name == name {
			return r.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoMatch, name)
}
