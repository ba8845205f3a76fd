package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/bodgit/sevenzip"

	"github.com/keanucz/ffbins/internal/toolexec"
)

// SevenZipMethods returns the ordered ways of unpacking a 7z archive: the
// native reader first, then an external 7z binary. toolPath overrides
// the binary lookup when non-empty.
func SevenZipMethods(toolPath string) []Method {
	return []Method{
		{Name: "sevenzip", Extract: func(_ context.Context, archivePath, dest string) error {
			return extractSevenZip(archivePath, dest)
		}},
		{Name: "7z tool", Extract: func(ctx context.Context, archivePath, dest string) error {
			runner, err := toolexec.New(toolexec.SevenZip, toolPath)
			if err != nil {
				return err
			}
			return runner.Run(ctx, "x", "-y", "-o"+dest, archivePath)
		}},
	}
}

func extractSevenZip(archivePath, dest string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}

		info := f.FileInfo()
		if info.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open file in archive: %w", err)
		}
		err = writeFile(target, rc, info.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
